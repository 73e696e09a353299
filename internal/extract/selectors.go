package extract

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"lureingest/internal/domain"
)

// HTMLAdapter reads a static page and applies the source's CSS selectors.
type HTMLAdapter struct {
	cfg     SourceConfig
	fetcher *Fetcher
}

func NewHTMLAdapter(cfg SourceConfig, fetcher *Fetcher) *HTMLAdapter {
	return &HTMLAdapter{cfg: cfg, fetcher: fetcher}
}

func (a *HTMLAdapter) Extract(ctx context.Context, rawURL string) (domain.ExtractionResult, error) {
	doc, err := a.fetcher.Document(ctx, rawURL)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	return fromSelectors(doc, rawURL, a.cfg)
}

// fromSelectors maps a parsed page to a result using cfg.Selectors, falling
// back to Open Graph metadata for name, description and image.
func fromSelectors(doc *goquery.Document, pageURL string, cfg SourceConfig) (domain.ExtractionResult, error) {
	sel := cfg.Selectors
	canonical := Canonical(doc, pageURL)

	res := domain.ExtractionResult{
		Source:      cfg.ID,
		Name:        firstNonEmpty(selText(doc, sel.Name), Meta(doc, "og:title")),
		NameKana:    selText(doc, sel.NameKana),
		Description: firstNonEmpty(selText(doc, sel.Description), Meta(doc, "og:description"), Meta(doc, "description")),
		LureType:    cfg.LureType,
		TargetFish:  uniqueStrings(cfg.TargetFish),
		SourceURL:   canonical,
	}
	if sel.MainImage != "" {
		res.MainImage = selImage(doc.Selection, sel.MainImage, "", pageURL)
	}
	if res.MainImage == "" {
		res.MainImage = Resolve(pageURL, Meta(doc, "og:image"))
	}
	slug, err := SlugFromURL(canonical)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	res.Slug = slug

	if sel.Price != "" {
		if p, err := ParsePrice(selText(doc, sel.Price)); err == nil {
			res.Price = TaxInclusive(p, cfg.TaxMultiplier)
		}
	}
	if sel.Weights != "" {
		var parts []string
		doc.Find(sel.Weights).Each(func(_ int, s *goquery.Selection) {
			parts = append(parts, s.Text())
		})
		res.Weights = ParseWeights(strings.Join(parts, " / "), cfg.WeightUnit)
	}
	if sel.Length != "" {
		res.Length = ParseLength(selText(doc, sel.Length), cfg.LengthUnit)
	}
	if sel.ColorItem != "" {
		doc.Find(sel.ColorItem).Each(func(_ int, item *goquery.Selection) {
			name := colorName(item, sel)
			if name == "" {
				return
			}
			c := domain.ColorVariant{
				Name:     name,
				ImageURL: selImage(item, sel.ColorImage, sel.ColorImageAttr, pageURL),
			}
			if sel.ColorWeights != "" {
				if v, ok := item.Attr(sel.ColorWeights); ok {
					c.Weights = ParseWeights(v, cfg.WeightUnit)
				}
			}
			res.Colors = append(res.Colors, c)
		})
	}
	if res.Name == "" {
		return domain.ExtractionResult{}, errors.New("product name not found")
	}
	return res, nil
}

func colorName(item *goquery.Selection, sel Selectors) string {
	target := item
	if sel.ColorName != "" {
		target = item.Find(sel.ColorName).First()
	}
	if sel.ColorNameAttr != "" {
		if v, ok := target.Attr(sel.ColorNameAttr); ok {
			return Clean(v)
		}
		return ""
	}
	return Clean(target.Text())
}

func selText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return Clean(doc.Find(selector).First().Text())
}

// selImage reads an image URL from the first match of selector within s,
// trying attr, then the usual lazy-load attributes.
func selImage(s *goquery.Selection, selector, attr, base string) string {
	target := s
	if selector != "" {
		target = s.Find(selector).First()
	}
	if target.Length() == 0 {
		return ""
	}
	attrs := []string{"data-src", "data-original", "src", "href"}
	if attr != "" {
		attrs = append([]string{attr}, attrs...)
	}
	for _, a := range attrs {
		if v, ok := target.Attr(a); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
			return Resolve(base, v)
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
