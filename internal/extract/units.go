package extract

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Conversion factors used by every adapter.
const (
	GramsPerOunce      = 28.3495
	MillimetresPerInch = 25.4
)

var (
	numberRe   = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	quantityRe = regexp.MustCompile(`(?i)(\d+\s*/\s*\d+|\d+(?:\.\d+)?)\s*((?:oz|grams?|g|mm|cm|inch(?:es)?|in)\b|グラム|")?`)
)

// Fold maps full-width ASCII (common on Japanese maker sites) to narrow form.
func Fold(s string) string {
	return width.Fold.String(s)
}

// ParsePrice reads the first number in s, ignoring currency symbols and
// thousands separators. Fractions are rounded half-up.
func ParsePrice(s string) (int, error) {
	m := numberRe.FindString(Fold(s))
	if m == "" {
		return 0, errors.New("price: no digits")
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}

// TaxInclusive converts a tax-exclusive price with multiplier (e.g. 1.1).
// Multipliers at or below 1 mean the price already includes tax.
func TaxInclusive(price int, multiplier float64) int {
	if multiplier <= 1 {
		return price
	}
	return int(math.Round(float64(price) * multiplier))
}

// OuncesToGrams converts with one decimal of precision.
func OuncesToGrams(oz float64) float64 {
	return math.Round(oz*GramsPerOunce*10) / 10
}

// InchesToMillimetres converts to whole millimetres.
func InchesToMillimetres(in float64) float64 {
	return math.Round(in * MillimetresPerInch)
}

// ParseWeights returns every weight in s as grams, in order of appearance and
// without duplicates. Numbers without a unit use defaultUnit ("g" or "oz");
// numbers tagged with a length unit are ignored.
func ParseWeights(s, defaultUnit string) []float64 {
	var out []float64
	seen := map[float64]struct{}{}
	for _, q := range quantities(s) {
		unit := q.unit
		if unit == "" {
			unit = strings.ToLower(defaultUnit)
		}
		var g float64
		switch unit {
		case "oz":
			g = OuncesToGrams(q.value)
		case "", "g", "gram", "grams", "グラム":
			g = math.Round(q.value*10) / 10
		default:
			continue
		}
		if g <= 0 {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

// ParseLength returns the first length in s as millimetres, or nil.
func ParseLength(s, defaultUnit string) *float64 {
	for _, q := range quantities(s) {
		unit := q.unit
		if unit == "" {
			unit = strings.ToLower(defaultUnit)
		}
		var mm float64
		switch unit {
		case "", "mm":
			mm = q.value
		case "cm":
			mm = q.value * 10
		case "in", "inch", "inches", `"`:
			mm = InchesToMillimetres(q.value)
		default:
			continue
		}
		if mm > 0 {
			return &mm
		}
	}
	return nil
}

type quantity struct {
	value float64
	unit  string
}

func quantities(s string) []quantity {
	var out []quantity
	for _, m := range quantityRe.FindAllStringSubmatch(Fold(s), -1) {
		v, ok := parseNumber(m[1])
		if !ok {
			continue
		}
		out = append(out, quantity{value: v, unit: strings.ToLower(m[2])})
	}
	return out
}

func parseNumber(s string) (float64, bool) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
