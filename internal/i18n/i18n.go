// Package i18n serves the card's label bundles and guide texts.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

//go:embed locales/*.json guides/*.md
var files embed.FS

// DefaultLanguage is used when nothing better matches.
const DefaultLanguage = "sv"

// Bundle holds translations for a set of languages.
type Bundle struct {
	dict      map[string]map[string]string
	guides    map[string]string
	fallback  string
	supported []string
	matcher   language.Matcher
}

// Default loads the embedded Swedish and English bundles.
func Default() (*Bundle, error) {
	return Load(files, DefaultLanguage, []string{"sv", "en"})
}

// Load reads locales/<lang>.json and guides/<lang>.md from fsys. Only the
// fallback language is required.
func Load(fsys fs.FS, fallback string, supported []string) (*Bundle, error) {
	b := &Bundle{
		dict:     map[string]map[string]string{},
		guides:   map[string]string{},
		fallback: fallback,
	}
	if len(supported) == 0 {
		supported = []string{fallback}
	}
	for _, l := range supported {
		raw, err := fs.ReadFile(fsys, path.Join("locales", l+".json"))
		if err != nil {
			if l == fallback {
				return nil, fmt.Errorf("load locale %s: %w", l, err)
			}
			continue
		}
		var m map[string]string
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", l, err)
		}
		b.dict[l] = m
		if guide, err := fs.ReadFile(fsys, path.Join("guides", l+".md")); err == nil {
			b.guides[l] = string(guide)
		}
		b.supported = append(b.supported, l)
	}
	if _, ok := b.dict[fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %s not loaded", fallback)
	}
	ordered := b.orderedSupported()
	tags := make([]language.Tag, 0, len(ordered))
	for _, l := range ordered {
		tags = append(tags, language.Make(l))
	}
	b.matcher = language.NewMatcher(tags)
	return b, nil
}

// Supported lists the loaded languages.
func (b *Bundle) Supported() []string {
	out := append([]string(nil), b.supported...)
	sort.Strings(out)
	return out
}

// Fallback returns the configured fallback language.
func (b *Bundle) Fallback() string { return b.fallback }

// T returns the translation for key in lang, falling back to the default
// language and finally the key itself.
func (b *Bundle) T(lang, key string) string {
	if m, ok := b.dict[lang]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := b.dict[b.fallback][key]; ok {
		return v
	}
	return key
}

// Tf formats the translation of key with args.
func (b *Bundle) Tf(lang, key string, args ...any) string {
	return fmt.Sprintf(b.T(lang, key), args...)
}

// Guide returns the fallback guide markdown for lang with the shortcut names
// substituted.
func (b *Bundle) Guide(lang, addName, removeName string) string {
	text, ok := b.guides[lang]
	if !ok {
		text = b.guides[b.fallback]
	}
	return strings.NewReplacer("{{add}}", addName, "{{remove}}", removeName).Replace(text)
}

// Resolve picks the best supported language for an Accept-Language header
// or a bare language code.
func (b *Bundle) Resolve(accept string) string {
	accept = strings.TrimSpace(accept)
	if accept == "" {
		return b.fallback
	}
	prefs, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(prefs) == 0 {
		return b.fallback
	}
	_, idx, conf := b.matcher.Match(prefs...)
	if conf == language.No {
		return b.fallback
	}
	return b.orderedSupported()[idx]
}

// orderedSupported puts the fallback first so it is the matcher's default.
func (b *Bundle) orderedSupported() []string {
	out := make([]string, 0, len(b.supported))
	out = append(out, b.fallback)
	for _, l := range b.supported {
		if l != b.fallback {
			out = append(out, l)
		}
	}
	return out
}
