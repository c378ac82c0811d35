package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/grocery-field/card/internal/domain"
)

// CardConfig is the construction-time configuration of a card instance,
// mirroring the dashboard card YAML.
type CardConfig struct {
	Title             string `yaml:"title"`
	ShortcutAddName   string `yaml:"ios_shortcut_add"`
	ShortcutRemove    string `yaml:"ios_shortcut_remove"`
	DefaultLocation   string `yaml:"default_location"`
	ShowFallbackGuide *bool  `yaml:"show_fallback_guide"`
}

// DefaultCardConfig returns the settings used when no card file is given.
func DefaultCardConfig() CardConfig {
	show := true
	return CardConfig{
		Title:             "Matscanner",
		ShortcutAddName:   "Lägg till vara",
		ShortcutRemove:    "Ta bort vara",
		DefaultLocation:   "fridge",
		ShowFallbackGuide: &show,
	}
}

// GuideEnabled reports whether the fallback guidance screen is shown.
func (c CardConfig) GuideEnabled() bool {
	return c.ShowFallbackGuide == nil || *c.ShowFallbackGuide
}

// LoadCardFile reads a card YAML file.
func LoadCardFile(path string) (CardConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return CardConfig{}, fmt.Errorf("config: open card file: %w", err)
	}
	defer f.Close()
	return ParseCard(f)
}

// ParseCard decodes card YAML over DefaultCardConfig. Unknown keys are
// rejected; an empty document yields the defaults.
func ParseCard(r io.Reader) (CardConfig, error) {
	cfg := DefaultCardConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return CardConfig{}, fmt.Errorf("config: parse card file: %w", err)
	}
	cfg.Title = strings.TrimSpace(cfg.Title)
	cfg.ShortcutAddName = strings.TrimSpace(cfg.ShortcutAddName)
	cfg.ShortcutRemove = strings.TrimSpace(cfg.ShortcutRemove)

	var invalid []string
	if cfg.ShortcutAddName == "" {
		invalid = append(invalid, "Card.ShortcutAddName")
	}
	if cfg.ShortcutRemove == "" {
		invalid = append(invalid, "Card.ShortcutRemove")
	}
	// Host codes (kyl, frys, skafferi) are accepted and stored by name.
	if loc, ok := domain.ParseLocation(cfg.DefaultLocation); ok && loc != domain.LocationUnset {
		cfg.DefaultLocation = string(loc)
	} else {
		invalid = append(invalid, "Card.DefaultLocation")
	}
	if len(invalid) > 0 {
		return CardConfig{}, &ValidationError{fields: invalid}
	}
	return cfg, nil
}
