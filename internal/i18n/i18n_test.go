package i18n

import (
	"testing"
	"testing/fstest"
)

func TestDefaultBundleTranslates(t *testing.T) {
	b, err := Default()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := b.T("sv", "tab.scan"); got != "📷 Skanna" {
		t.Fatalf("unexpected sv label %q", got)
	}
	if got := b.T("en", "tab.inventory"); got != "📦 Stock" {
		t.Fatalf("unexpected en label %q", got)
	}
	if got := b.T("de", "location.all"); got != "🛒 Alla" {
		t.Fatalf("expected fallback to sv, got %q", got)
	}
	if got := b.T("sv", "missing.key"); got != "missing.key" {
		t.Fatalf("expected key echo, got %q", got)
	}
	if got := b.Tf("sv", "stock.low", 2, "st"); got != "🟠 Lågt lager (min 2 st)" {
		t.Fatalf("unexpected formatted label %q", got)
	}
}

func TestResolveHonorsQValues(t *testing.T) {
	b, err := Default()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cases := map[string]string{
		"":                   "sv",
		"sv;q=0.5, en;q=0.9": "en",
		"en-GB,en;q=0.8":     "en",
		"sv-SE":              "sv",
	}
	for header, want := range cases {
		if got := b.Resolve(header); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestGuideSubstitutesShortcutNames(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/sv.json": {Data: []byte(`{"a":"b"}`)},
		"guides/sv.md":    {Data: []byte("Namnge: **{{add}}** / **{{remove}}**")},
	}
	b, err := Load(fsys, "sv", []string{"sv", "en"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := b.Guide("en", "Add item", "Remove item"); got != "Namnge: **Add item** / **Remove item**" {
		t.Fatalf("unexpected guide %q", got)
	}
	if len(b.Supported()) != 1 {
		t.Fatalf("expected only sv loaded, got %v", b.Supported())
	}
}

func TestLoadRequiresFallback(t *testing.T) {
	if _, err := Load(fstest.MapFS{}, "sv", []string{"sv"}); err == nil {
		t.Fatal("expected error when fallback locale is missing")
	}
}
