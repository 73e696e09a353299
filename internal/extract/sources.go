package extract

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Adapter kinds a source can be configured with.
const (
	KindJSONLD   = "jsonld"
	KindShopify  = "shopify"
	KindHTML     = "html"
	KindHeadless = "headless"
)

// SourceConfig describes one source site in sources.yaml.
type SourceConfig struct {
	ID         string   `yaml:"id"`
	Adapter    string   `yaml:"adapter"`
	Referer    string   `yaml:"referer"`
	LureType   string   `yaml:"lure_type"`
	TargetFish []string `yaml:"target_fish"`

	// TaxMultiplier converts tax-exclusive list prices, e.g. 1.1. Values at
	// or below 1 mean listed prices already include tax.
	TaxMultiplier float64 `yaml:"tax_multiplier"`
	// PriceDivisor turns Shopify minor units into the catalog unit. Default 100.
	PriceDivisor int    `yaml:"price_divisor"`
	WeightUnit   string `yaml:"weight_unit"`
	LengthUnit   string `yaml:"length_unit"`

	ColorOptions  []string `yaml:"color_options"`
	WeightOptions []string `yaml:"weight_options"`

	Wait      time.Duration `yaml:"wait"`
	Timeout   time.Duration `yaml:"timeout"`
	Selectors Selectors     `yaml:"selectors"`
}

// Selectors are CSS selectors used by the html and headless kinds.
type Selectors struct {
	Name           string `yaml:"name"`
	NameKana       string `yaml:"name_kana"`
	Description    string `yaml:"description"`
	Price          string `yaml:"price"`
	MainImage      string `yaml:"main_image"`
	Weights        string `yaml:"weights"`
	Length         string `yaml:"length"`
	ColorItem      string `yaml:"color_item"`
	ColorName      string `yaml:"color_name"`
	ColorNameAttr  string `yaml:"color_name_attr"`
	ColorImage     string `yaml:"color_image"`
	ColorImageAttr string `yaml:"color_image_attr"`
	ColorWeights   string `yaml:"color_weights"`
}

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSources reads a sources.yaml file.
func LoadSources(path string) ([]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes and validates sources.yaml content.
func ParseSources(data []byte) ([]SourceConfig, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	seen := map[string]struct{}{}
	for i := range f.Sources {
		s := &f.Sources[i]
		s.ID = strings.TrimSpace(s.ID)
		s.Adapter = strings.ToLower(strings.TrimSpace(s.Adapter))
		if s.ID == "" {
			return nil, fmt.Errorf("sources[%d]: id is required", i)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("sources[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = struct{}{}
		switch s.Adapter {
		case KindJSONLD, KindShopify, KindHTML, KindHeadless:
		case "":
			return nil, fmt.Errorf("source %q: adapter is required", s.ID)
		default:
			return nil, fmt.Errorf("source %q: unknown adapter %q", s.ID, s.Adapter)
		}
		if (s.Adapter == KindHTML || s.Adapter == KindHeadless) && s.Selectors.Name == "" {
			return nil, fmt.Errorf("source %q: selectors.name is required for %s", s.ID, s.Adapter)
		}
	}
	return f.Sources, nil
}

// Referers maps source ids to their configured Referer header.
func Referers(sources []SourceConfig) map[string]string {
	out := map[string]string{}
	for _, s := range sources {
		if s.Referer != "" {
			out[s.ID] = s.Referer
		}
	}
	return out
}

// BuildOptions are shared by every adapter built from config.
type BuildOptions struct {
	Client    *http.Client
	UserAgent string
	Headless  bool
	Logger    zerolog.Logger
}

// Build constructs the registry for sources.
func Build(sources []SourceConfig, opts BuildOptions) (*Registry, error) {
	adapters := make(map[string]Adapter, len(sources))
	for _, s := range sources {
		fetcher := NewFetcher(opts.Client, opts.UserAgent, s.Referer)
		logger := opts.Logger.With().Str("source", s.ID).Logger()
		switch s.Adapter {
		case KindJSONLD:
			adapters[s.ID] = NewJSONLDAdapter(s, fetcher)
		case KindShopify:
			adapters[s.ID] = NewShopifyAdapter(s, fetcher)
		case KindHTML:
			adapters[s.ID] = NewHTMLAdapter(s, fetcher)
		case KindHeadless:
			if !opts.Headless {
				logger.Warn().Msg("extract: headless browser disabled, falling back to static html")
				adapters[s.ID] = NewHTMLAdapter(s, fetcher)
				continue
			}
			adapters[s.ID] = NewHeadlessAdapter(s, fetcher.UserAgent, logger)
		default:
			return nil, errors.New("extract: unknown adapter " + s.Adapter)
		}
	}
	return NewRegistry(adapters), nil
}
