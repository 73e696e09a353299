// Package normalize turns one extraction result into catalog rows, one per
// color and weight combination.
package normalize

import (
	"lureingest/internal/domain"
)

// PlaceholderColor names the single color synthesized for products that
// list none.
const PlaceholderColor = "standard"

// Resolved holds relocated image URLs. Colors is indexed like the slice
// returned by Colors; an empty entry means that color has no image.
type Resolved struct {
	Main   string
	Colors []string
}

// Colors returns the colors rows will be built from: duplicates by exact name
// are dropped keeping the first, and an empty list becomes the placeholder
// color carrying the main image.
func Colors(res domain.ExtractionResult) []domain.ColorVariant {
	if len(res.Colors) == 0 {
		return []domain.ColorVariant{{Name: PlaceholderColor, ImageURL: res.MainImage}}
	}
	seen := make(map[string]struct{}, len(res.Colors))
	out := make([]domain.ColorVariant, 0, len(res.Colors))
	for _, c := range res.Colors {
		if _, ok := seen[c.Name]; ok {
			continue
		}
		seen[c.Name] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Expand builds the canonical rows of res. Images that were not relocated
// fall back to the relocated main image, then to none.
func Expand(res domain.ExtractionResult, images Resolved) []domain.CanonicalRow {
	colors := Colors(res)
	weights := weightSlots(Weights(res))

	rows := make([]domain.CanonicalRow, 0, len(colors)*len(weights))
	for i, c := range colors {
		img := images.Main
		if i < len(images.Colors) && images.Colors[i] != "" {
			img = images.Colors[i]
		}
		for _, w := range applicableWeights(weights, c.Weights) {
			rows = append(rows, domain.CanonicalRow{
				Source:      res.Source,
				Slug:        res.Slug,
				Name:        res.Name,
				NameKana:    res.NameKana,
				LureType:    res.LureType,
				TargetFish:  append([]string(nil), res.TargetFish...),
				Description: res.Description,
				Price:       res.Price,
				ColorName:   c.Name,
				Weight:      copyFloat(w),
				Length:      copyFloat(res.Length),
				ImageURL:    img,
				SourceURL:   res.SourceURL,
			})
		}
	}
	return rows
}

// Weights returns the product weights with repeats dropped, keeping the
// first occurrence.
func Weights(res domain.ExtractionResult) []float64 {
	seen := make(map[float64]struct{}, len(res.Weights))
	out := make([]float64, 0, len(res.Weights))
	for _, w := range res.Weights {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// weightSlots yields one nil slot when the product lists no weights so every
// color still produces a row.
func weightSlots(weights []float64) []*float64 {
	if len(weights) == 0 {
		return []*float64{nil}
	}
	out := make([]*float64, len(weights))
	for i := range weights {
		w := weights[i]
		out[i] = &w
	}
	return out
}

// applicableWeights filters slots to the color's subset. A subset that
// matches nothing is ignored so a color is never dropped.
func applicableWeights(slots []*float64, subset []float64) []*float64 {
	if len(subset) == 0 {
		return slots
	}
	allowed := make(map[float64]struct{}, len(subset))
	for _, w := range subset {
		allowed[w] = struct{}{}
	}
	var out []*float64
	for _, s := range slots {
		if s == nil {
			continue
		}
		if _, ok := allowed[*s]; ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return slots
	}
	return out
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
