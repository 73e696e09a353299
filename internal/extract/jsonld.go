package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"lureingest/internal/domain"
)

// JSONLDAdapter reads schema.org Product / ProductGroup markup embedded in
// the page. Variants become colors and weights; Open Graph tags fill gaps.
type JSONLDAdapter struct {
	cfg     SourceConfig
	fetcher *Fetcher
}

func NewJSONLDAdapter(cfg SourceConfig, fetcher *Fetcher) *JSONLDAdapter {
	return &JSONLDAdapter{cfg: cfg, fetcher: fetcher}
}

func (a *JSONLDAdapter) Extract(ctx context.Context, rawURL string) (domain.ExtractionResult, error) {
	doc, err := a.fetcher.Document(ctx, rawURL)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	return fromJSONLD(doc, rawURL, a.cfg)
}

type ldNode map[string]any

func fromJSONLD(doc *goquery.Document, pageURL string, cfg SourceConfig) (domain.ExtractionResult, error) {
	product := findProduct(doc)
	if product == nil {
		return domain.ExtractionResult{}, errors.New("no schema.org Product found")
	}
	canonical := Canonical(doc, pageURL)
	if u := ldString(product["url"]); u != "" {
		canonical = Resolve(pageURL, u)
	}

	res := domain.ExtractionResult{
		Source:      cfg.ID,
		Name:        firstNonEmpty(Clean(ldString(product["name"])), Meta(doc, "og:title")),
		NameKana:    Clean(ldString(product["alternateName"])),
		Description: firstNonEmpty(HTMLText(ldString(product["description"])), Meta(doc, "og:description")),
		LureType:    cfg.LureType,
		TargetFish:  uniqueStrings(cfg.TargetFish),
		MainImage:   firstNonEmpty(Resolve(pageURL, ldImage(product["image"])), Resolve(pageURL, Meta(doc, "og:image"))),
		SourceURL:   canonical,
	}
	slug, err := SlugFromURL(canonical)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	res.Slug = slug
	if res.Name == "" {
		return domain.ExtractionResult{}, errors.New("product name not found")
	}

	if p, ok := ldPrice(product["offers"]); ok {
		res.Price = TaxInclusive(p, cfg.TaxMultiplier)
	}
	res.Length = ParseLength(ldAdditional(product, "length"), cfg.LengthUnit)
	res.Weights = ParseWeights(firstNonEmpty(ldQuantity(product["weight"]), ldAdditional(product, "weight")), cfg.WeightUnit)

	colorIdx := map[string]int{}
	for _, v := range ldNodes(product["hasVariant"]) {
		if res.Price == 0 {
			if p, ok := ldPrice(v["offers"]); ok {
				res.Price = TaxInclusive(p, cfg.TaxMultiplier)
			}
		}
		weights := ParseWeights(firstNonEmpty(ldQuantity(v["weight"]), ldAdditional(v, "weight")), cfg.WeightUnit)
		for _, w := range weights {
			res.Weights = appendWeight(res.Weights, w)
		}
		color := Clean(firstNonEmpty(ldString(v["color"]), ldAdditional(v, "color")))
		if color == "" {
			continue
		}
		i, ok := colorIdx[color]
		if !ok {
			colorIdx[color] = len(res.Colors)
			res.Colors = append(res.Colors, domain.ColorVariant{
				Name:     color,
				ImageURL: Resolve(pageURL, ldImage(v["image"])),
			})
			i = len(res.Colors) - 1
		}
		for _, w := range weights {
			res.Colors[i].Weights = appendWeight(res.Colors[i].Weights, w)
		}
	}
	// A color carrying every weight is unrestricted.
	for i := range res.Colors {
		if len(res.Colors[i].Weights) == len(res.Weights) {
			res.Colors[i].Weights = nil
		}
	}
	return res, nil
}

func appendWeight(ws []float64, w float64) []float64 {
	for _, x := range ws {
		if x == w {
			return ws
		}
	}
	return append(ws, w)
}

// findProduct returns the first Product or ProductGroup node on the page,
// looking inside @graph arrays.
func findProduct(doc *goquery.Document) ldNode {
	var found ldNode
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &raw); err != nil {
			return true
		}
		found = searchProduct(raw)
		return found == nil
	})
	return found
}

func searchProduct(raw any) ldNode {
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if p := searchProduct(item); p != nil {
				return p
			}
		}
	case map[string]any:
		n := ldNode(v)
		if n.is("ProductGroup") || n.is("Product") {
			return n
		}
		if g, ok := v["@graph"]; ok {
			return searchProduct(g)
		}
	}
	return nil
}

func (n ldNode) is(typ string) bool {
	switch t := n["@type"].(type) {
	case string:
		return t == typ
	case []any:
		for _, x := range t {
			if s, ok := x.(string); ok && s == typ {
				return true
			}
		}
	}
	return false
}

func ldNodes(raw any) []ldNode {
	switch v := raw.(type) {
	case []any:
		out := make([]ldNode, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, ldNode(m))
			}
		}
		return out
	case map[string]any:
		return []ldNode{ldNode(v)}
	}
	return nil
}

func ldString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any:
		if s, ok := v["@value"].(string); ok {
			return s
		}
		if s, ok := v["name"].(string); ok {
			return s
		}
	}
	return ""
}

func ldImage(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			if s := ldImage(item); s != "" {
				return s
			}
		}
	case map[string]any:
		if s, ok := v["url"].(string); ok {
			return s
		}
		if s, ok := v["contentUrl"].(string); ok {
			return s
		}
	}
	return ""
}

// ldPrice reads price or lowPrice from an Offer, AggregateOffer or list.
func ldPrice(raw any) (int, bool) {
	for _, o := range ldNodes(raw) {
		for _, key := range []string{"price", "lowPrice"} {
			s := ldString(o[key])
			if s == "" {
				continue
			}
			if p, err := ParsePrice(s); err == nil && p > 0 {
				return p, true
			}
		}
		if spec, ok := o["priceSpecification"]; ok {
			if p, ok := ldPrice(spec); ok {
				return p, true
			}
		}
	}
	return 0, false
}

// ldQuantity renders a QuantitativeValue as "<value> <unit>".
func ldQuantity(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return ldString(v)
	case map[string]any:
		val := ldString(v["value"])
		if val == "" {
			return ""
		}
		unit := ldString(v["unitText"])
		if unit == "" {
			switch strings.ToUpper(ldString(v["unitCode"])) {
			case "GRM":
				unit = "g"
			case "ONZ":
				unit = "oz"
			case "MMT":
				unit = "mm"
			case "CMT":
				unit = "cm"
			case "INH":
				unit = "in"
			}
		}
		return strings.TrimSpace(val + unit)
	}
	return ""
}

// ldAdditional looks up an additionalProperty by case-insensitive name.
func ldAdditional(n ldNode, name string) string {
	for _, p := range ldNodes(n["additionalProperty"]) {
		if strings.EqualFold(strings.TrimSpace(ldString(p["name"])), name) {
			return ldQuantity(p["value"]) + ldString(p["unitText"])
		}
	}
	return ""
}
