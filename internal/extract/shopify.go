package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"lureingest/internal/domain"
)

// ShopifyAdapter reads the storefront product JSON (<product url>.js) that
// every Shopify shop serves.
type ShopifyAdapter struct {
	cfg     SourceConfig
	fetcher *Fetcher
}

func NewShopifyAdapter(cfg SourceConfig, fetcher *Fetcher) *ShopifyAdapter {
	return &ShopifyAdapter{cfg: cfg, fetcher: fetcher}
}

type shopifyProduct struct {
	Title         string           `json:"title"`
	Handle        string           `json:"handle"`
	Description   string           `json:"description"`
	Price         int              `json:"price"`
	FeaturedImage string           `json:"featured_image"`
	Images        []string         `json:"images"`
	Options       []shopifyOption  `json:"options"`
	Variants      []shopifyVariant `json:"variants"`
}

type shopifyOption struct {
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Values   []string `json:"values"`
}

type shopifyVariant struct {
	Option1       string `json:"option1"`
	Option2       string `json:"option2"`
	Option3       string `json:"option3"`
	Price         int    `json:"price"`
	FeaturedImage *struct {
		Src string `json:"src"`
	} `json:"featured_image"`
}

func (v shopifyVariant) option(position int) string {
	switch position {
	case 1:
		return v.Option1
	case 2:
		return v.Option2
	case 3:
		return v.Option3
	}
	return ""
}

var (
	defaultColorOptions  = []string{"color", "colour", "カラー", "色"}
	defaultWeightOptions = []string{"weight", "ウェイト", "重さ", "重量"}
)

func (a *ShopifyAdapter) Extract(ctx context.Context, rawURL string) (domain.ExtractionResult, error) {
	jsURL, err := shopifyJSONURL(rawURL)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	body, err := a.fetcher.Get(ctx, jsURL, "application/json")
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	var p shopifyProduct
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("decode shopify product: %w", err)
	}
	return a.convert(p, rawURL)
}

// shopifyJSONURL strips query and fragment from a product URL and appends .js.
func shopifyJSONURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid product url %q", rawURL)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), ".js") + ".js"
	u.RawPath = ""
	return u.String(), nil
}

func (a *ShopifyAdapter) convert(p shopifyProduct, pageURL string) (domain.ExtractionResult, error) {
	name := Clean(p.Title)
	if name == "" {
		return domain.ExtractionResult{}, errors.New("shopify product has no title")
	}
	slug := strings.ToLower(strings.TrimSpace(p.Handle))
	if slug == "" {
		s, err := SlugFromURL(pageURL)
		if err != nil {
			return domain.ExtractionResult{}, err
		}
		slug = s
	}

	res := domain.ExtractionResult{
		Source:      a.cfg.ID,
		Name:        name,
		Slug:        slug,
		Description: HTMLText(p.Description),
		LureType:    a.cfg.LureType,
		TargetFish:  uniqueStrings(a.cfg.TargetFish),
		MainImage:   Resolve(pageURL, p.FeaturedImage),
		SourceURL:   canonicalProductURL(pageURL),
	}
	if res.MainImage == "" && len(p.Images) > 0 {
		res.MainImage = Resolve(pageURL, p.Images[0])
	}

	price := p.Price
	if price == 0 {
		for _, v := range p.Variants {
			if v.Price > 0 && (price == 0 || v.Price < price) {
				price = v.Price
			}
		}
	}
	divisor := a.cfg.PriceDivisor
	if divisor <= 0 {
		divisor = 100
	}
	res.Price = TaxInclusive(int(float64(price)/float64(divisor)+0.5), a.cfg.TaxMultiplier)

	colorOpt, colorPos := findOption(p.Options, a.cfg.ColorOptions, defaultColorOptions)
	weightOpt, weightPos := findOption(p.Options, a.cfg.WeightOptions, defaultWeightOptions)

	if weightOpt != nil {
		for _, val := range weightOpt.Values {
			for _, w := range ParseWeights(val, a.cfg.WeightUnit) {
				res.Weights = appendWeight(res.Weights, w)
			}
		}
	}
	if colorOpt == nil {
		return res, nil
	}

	colorIdx := map[string]int{}
	for _, val := range colorOpt.Values {
		name := Clean(val)
		if name == "" {
			continue
		}
		if _, ok := colorIdx[name]; ok {
			continue
		}
		colorIdx[name] = len(res.Colors)
		res.Colors = append(res.Colors, domain.ColorVariant{Name: name})
	}
	for _, v := range p.Variants {
		i, ok := colorIdx[Clean(v.option(colorPos))]
		if !ok {
			continue
		}
		if res.Colors[i].ImageURL == "" && v.FeaturedImage != nil {
			res.Colors[i].ImageURL = Resolve(pageURL, v.FeaturedImage.Src)
		}
		if weightPos > 0 {
			for _, w := range ParseWeights(v.option(weightPos), a.cfg.WeightUnit) {
				res.Colors[i].Weights = appendWeight(res.Colors[i].Weights, w)
			}
		}
	}
	for i := range res.Colors {
		if len(res.Colors[i].Weights) == len(res.Weights) {
			res.Colors[i].Weights = nil
		}
	}
	return res, nil
}

// findOption returns the first option whose name matches one of names (or
// defaults when names is empty) and its 1-based variant position.
func findOption(opts []shopifyOption, names, defaults []string) (*shopifyOption, int) {
	if len(names) == 0 {
		names = defaults
	}
	for i := range opts {
		n := strings.ToLower(strings.TrimSpace(opts[i].Name))
		for _, want := range names {
			if n != strings.ToLower(strings.TrimSpace(want)) {
				continue
			}
			if opts[i].Position > 0 {
				return &opts[i], opts[i].Position
			}
			return &opts[i], i + 1
		}
	}
	return nil, 0
}

func canonicalProductURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
