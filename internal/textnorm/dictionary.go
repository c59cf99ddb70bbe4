package textnorm

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Dictionary is the on-disk form of normalizer configuration.
//
//	replace_stopwords = false
//	stopwords = ["reuters", "据悉"]
//	keep = ["ai", "5g"]
//	lexicon = ["人工智能", "通货膨胀"]
type Dictionary struct {
	ReplaceStopwords bool     `toml:"replace_stopwords"`
	Stopwords        []string `toml:"stopwords"`
	Keep             []string `toml:"keep"`
	Lexicon          []string `toml:"lexicon"`
	MinRunes         int      `toml:"min_runes"`
}

// LoadDictionary reads a TOML dictionary file.
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary %s: %w", path, err)
	}
	return ParseDictionary(data)
}

// ParseDictionary decodes TOML dictionary content. Unknown keys are rejected so
// typos do not silently fall back to defaults.
func ParseDictionary(data []byte) (*Dictionary, error) {
	var d Dictionary
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary: %w", err)
	}
	var strict map[string]any
	_ = toml.Unmarshal(data, &strict)
	for key := range strict {
		switch key {
		case "replace_stopwords", "stopwords", "keep", "lexicon", "min_runes":
		default:
			return nil, fmt.Errorf("failed to parse dictionary: unknown key %q", key)
		}
	}
	if d.MinRunes < 0 {
		return nil, fmt.Errorf("failed to parse dictionary: min_runes must not be negative")
	}
	return &d, nil
}

// Options merges the dictionary over the defaults.
func (d *Dictionary) Options() Options {
	opts := DefaultOptions()
	if d == nil {
		return opts
	}
	if d.ReplaceStopwords {
		opts.Stopwords = append([]string(nil), d.Stopwords...)
	} else {
		opts.Stopwords = append(opts.Stopwords, d.Stopwords...)
	}
	opts.Keep = append(opts.Keep, d.Keep...)
	opts.Lexicon = append(opts.Lexicon, d.Lexicon...)
	if d.MinRunes > 0 {
		opts.MinRunes = d.MinRunes
	}
	return opts
}

// FromFile builds a Normalizer from an optional dictionary path. An empty path
// yields the default normalizer.
func FromFile(path string) (*Normalizer, error) {
	if path == "" {
		return NewDefault(), nil
	}
	d, err := LoadDictionary(path)
	if err != nil {
		return nil, err
	}
	return New(d.Options()), nil
}
