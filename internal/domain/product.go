package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ExtractionResult is the closed shape every source adapter must produce.
// Price is in the smallest currency unit with tax included, weights are grams
// and Length is millimetres.
type ExtractionResult struct {
	Name        string
	NameKana    string
	Slug        string
	Source      string
	LureType    string
	TargetFish  []string
	Description string
	Price       int
	Colors      []ColorVariant
	Weights     []float64
	Length      *float64
	MainImage   string
	SourceURL   string
}

// ColorVariant is a single color of a product. Weights optionally restricts
// the product weights this color is sold in.
type ColorVariant struct {
	Name     string
	ImageURL string
	Weights  []float64
}

// Validate checks the fields the pipeline cannot do without.
func (r ExtractionResult) Validate() error {
	if strings.TrimSpace(r.Slug) == "" {
		return errors.New("slug is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	return nil
}

// DedupKey uniquely identifies a catalog row.
type DedupKey struct {
	Source    string
	Slug      string
	ColorName string
	Weight    *float64
}

func (k DedupKey) String() string {
	w := "-"
	if k.Weight != nil {
		w = strconv.FormatFloat(*k.Weight, 'f', -1, 64)
	}
	return fmt.Sprintf("%s/%s/%s/%s", k.Source, k.Slug, k.ColorName, w)
}

// CanonicalRow is one color x weight variant ready for the catalog. An empty
// ImageURL is persisted as NULL.
type CanonicalRow struct {
	Source      string
	Slug        string
	Name        string
	NameKana    string
	LureType    string
	TargetFish  []string
	Description string
	Price       int
	ColorName   string
	Weight      *float64
	Length      *float64
	ImageURL    string
	SourceURL   string
}

// Key returns the dedup key of the row.
func (r CanonicalRow) Key() DedupKey {
	return DedupKey{Source: r.Source, Slug: r.Slug, ColorName: r.ColorName, Weight: r.Weight}
}
