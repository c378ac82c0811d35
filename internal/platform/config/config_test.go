package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Host.Transport != TransportREST {
		t.Errorf("expected rest transport, got %s", cfg.Host.Transport)
	}
	if cfg.Host.Domain != "pyscript" {
		t.Errorf("expected pyscript domain, got %s", cfg.Host.Domain)
	}
	if cfg.Lookup.BaseURL != defaultLookupBaseURL {
		t.Errorf("unexpected lookup base url %s", cfg.Lookup.BaseURL)
	}
	if cfg.Lookup.UserAgent != "HomeAssistant-GroceryTracker/1.0" {
		t.Errorf("unexpected lookup user agent %s", cfg.Lookup.UserAgent)
	}
	if cfg.Scanner.FrameInterval != 16*time.Millisecond {
		t.Errorf("unexpected frame interval %s", cfg.Scanner.FrameInterval)
	}
	if cfg.Scanner.Locale != "sv" {
		t.Errorf("expected sv locale, got %s", cfg.Scanner.Locale)
	}
	if cfg.Card.ShortcutAddName != "Lägg till vara" || cfg.Card.ShortcutRemove != "Ta bort vara" {
		t.Errorf("unexpected shortcut defaults: %+v", cfg.Card)
	}
	if !cfg.Host.Subscribe {
		t.Errorf("expected host subscription enabled by default")
	}
}

func TestLoadOverridesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "CARD_SERVER_PORT=9000\nexport CARD_HOST_URL=\"http://ha.local:8123/\"\n# comment\nCARD_FRAME_INTERVAL=40ms\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithEnvFile(envPath),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"CARD_SERVER_PORT": "9100", "CARD_HOST_SUBSCRIBE": "off", "CARD_HARDWARE_DETECTOR": "true"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9100" {
		t.Errorf("explicit map should win, got %s", cfg.Server.Port)
	}
	if cfg.Host.BaseURL != "http://ha.local:8123" {
		t.Errorf("expected trimmed host url, got %s", cfg.Host.BaseURL)
	}
	if cfg.Scanner.FrameInterval != 40*time.Millisecond {
		t.Errorf("expected 40ms frame interval, got %s", cfg.Scanner.FrameInterval)
	}
	if cfg.Host.Subscribe {
		t.Errorf("expected subscription disabled")
	}
	if !cfg.Scanner.HardwareDetector {
		t.Errorf("expected hardware detector relay enabled")
	}
	if cfg.Lookup.Timeout != 0 {
		t.Errorf("expected unbounded lookup, got %s", cfg.Lookup.Timeout)
	}
}

func TestLoadResolvesHostTokenSecret(t *testing.T) {
	var seen string
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		seen = ref
		return "resolved-token", nil
	})

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""),
		WithEnvMap(map[string]string{"CARD_HOST_TOKEN": "sm://ha-token"}),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if seen != "secret://ha-token" {
		t.Errorf("expected normalised ref, got %s", seen)
	}
	if cfg.Host.Token != "resolved-token" {
		t.Errorf("expected resolved token, got %s", cfg.Host.Token)
	}
}

func TestLoadSecretWithoutResolver(t *testing.T) {
	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""),
		WithEnvMap(map[string]string{"CARD_HOST_TOKEN": "secret://ha-token"}))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if !errors.Is(err, errNoSecretResolver) {
		t.Errorf("expected unwrap to resolver error, got %v", err)
	}
}

func TestLoadValidatesPubSubTransport(t *testing.T) {
	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""),
		WithEnvMap(map[string]string{"CARD_COMMAND_TRANSPORT": "pubsub"}))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := strings.Join(validation.Fields(), ",")
	if fields != "Host.PubSubProject,Host.PubSubTopic" {
		t.Errorf("unexpected fields %s", fields)
	}

	_, err = Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""),
		WithEnvMap(map[string]string{"CARD_COMMAND_TRANSPORT": "carrier-pigeon"}))
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestParseCard(t *testing.T) {
	cfg, err := ParseCard(strings.NewReader("title: Kylskåp\nios_shortcut_add: Handla\n"))
	if err != nil {
		t.Fatalf("ParseCard returned error: %v", err)
	}
	if cfg.Title != "Kylskåp" || cfg.ShortcutAddName != "Handla" {
		t.Errorf("unexpected card config %+v", cfg)
	}
	if cfg.ShortcutRemove != "Ta bort vara" {
		t.Errorf("expected default remove shortcut, got %s", cfg.ShortcutRemove)
	}
	if !cfg.GuideEnabled() {
		t.Errorf("expected guide enabled by default")
	}

	empty, err := ParseCard(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty document: %v", err)
	}
	if empty.Title != "Matscanner" {
		t.Errorf("expected default title, got %s", empty.Title)
	}

	if _, err := ParseCard(strings.NewReader("unknown_key: 1\n")); err == nil {
		t.Errorf("expected unknown keys to be rejected")
	}
	var validation *ValidationError
	if _, err := ParseCard(strings.NewReader("default_location: garage\n")); !errors.As(err, &validation) {
		t.Errorf("expected ValidationError for bad location, got %v", err)
	}
	if _, err := ParseCard(strings.NewReader("default_location: \"\"\n")); !errors.As(err, &validation) {
		t.Errorf("expected ValidationError for empty location, got %v", err)
	}
}

func TestParseCardAcceptsHostLocationCodes(t *testing.T) {
	cases := map[string]string{
		"kyl":      "fridge",
		"FRYS":     "freezer",
		"skafferi": "pantry",
		" Pantry ": "pantry",
	}
	for raw, want := range cases {
		cfg, err := ParseCard(strings.NewReader("default_location: \"" + raw + "\"\n"))
		if err != nil {
			t.Fatalf("default_location %q: %v", raw, err)
		}
		if cfg.DefaultLocation != want {
			t.Errorf("default_location %q: expected %s, got %s", raw, want, cfg.DefaultLocation)
		}
	}
}

func TestLoadReadsCardFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.yaml")
	if err := os.WriteFile(path, []byte("title: Skafferiet\nshow_fallback_guide: false\n"), 0o600); err != nil {
		t.Fatalf("write card: %v", err)
	}
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""),
		WithEnvMap(map[string]string{"CARD_CONFIG_FILE": path}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Card.Title != "Skafferiet" || cfg.Card.GuideEnabled() {
		t.Errorf("unexpected card config %+v", cfg.Card)
	}
}
