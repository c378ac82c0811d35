package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile        = ".env"
	defaultPort           = "8080"
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 120 * time.Second
	defaultLocale         = "sv"
	defaultHostDomain     = "pyscript"
	defaultLookupBaseURL  = "https://world.openfoodfacts.org/api/v2/product"
	defaultLookupAgent    = "HomeAssistant-GroceryTracker/1.0"
	defaultFrameInterval  = 16 * time.Millisecond
	defaultCommandTimeout = 10 * time.Second

	// TransportREST sends host commands through the Home Assistant REST API.
	TransportREST = "rest"
	// TransportPubSub publishes host commands to a Pub/Sub topic.
	TransportPubSub = "pubsub"
)

// Config groups the runtime settings of the card binaries.
type Config struct {
	Server  ServerConfig
	Card    CardConfig
	Host    HostConfig
	Lookup  LookupConfig
	Scanner ScannerConfig
	Trace   TraceConfig
	Log     LogConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// HostConfig describes the automation host that owns inventory state.
type HostConfig struct {
	BaseURL        string
	Token          string
	Domain         string
	Transport      string
	PubSubProject  string
	PubSubTopic    string
	CommandTimeout time.Duration
	Subscribe      bool
}

// LookupConfig configures the product catalogue client.
type LookupConfig struct {
	BaseURL   string
	UserAgent string
	// Timeout bounds one lookup. Zero leaves the request unbounded.
	Timeout time.Duration
}

// ScannerConfig configures camera access and the detection loop.
type ScannerConfig struct {
	FrameInterval   time.Duration
	DeviceSignature string
	CameraDevice    string
	Locale          string
	// HardwareDetector reports that the browser front-end relays detections
	// from a native barcode detector.
	HardwareDetector bool
}

// TraceConfig carries the Cloud Trace project used for log correlation.
type TraceConfig struct {
	ProjectID string
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string
}

// SecretResolver resolves secret:// references.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret calls f.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists configuration fields that are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending field names.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// SecretError wraps a failed secret reference lookup.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

var errNoSecretResolver = errors.New("secret resolver not configured")

// Option customises Load.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the dotenv file path.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects explicit values that win over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv stops Load from reading the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// and sm:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// EnvironmentValues returns the merged environment (dotenv < OS env < explicit map)
// so callers can build dependencies, such as the secret fetcher, before Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := defaultOptions(opts)
	dotenv, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(dotenv))
	for k, v := range dotenv {
		values[k] = v
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			if k, v, ok := strings.Cut(entry, "="); ok && strings.TrimSpace(k) != "" {
				values[strings.TrimSpace(k)] = v
			}
		}
	}
	for k, v := range options.envMap {
		values[k] = v
	}
	return values, nil
}

// Load builds Config from defaults, the dotenv file, the environment and
// optional Secret Manager references. The YAML card file named by
// CARD_CONFIG_FILE, when set, is merged over the card defaults.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	values, err := EnvironmentValues(opts...)
	if err != nil {
		return Config{}, err
	}
	options := defaultOptions(opts)
	lookup := func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "CARD_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "CARD_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "CARD_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "CARD_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Card: DefaultCardConfig(),
		Host: HostConfig{
			BaseURL:        strings.TrimRight(stringWithDefault(lookup, "CARD_HOST_URL", ""), "/"),
			Token:          stringWithDefault(lookup, "CARD_HOST_TOKEN", ""),
			Domain:         stringWithDefault(lookup, "CARD_HOST_DOMAIN", defaultHostDomain),
			Transport:      strings.ToLower(stringWithDefault(lookup, "CARD_COMMAND_TRANSPORT", TransportREST)),
			PubSubProject:  stringWithDefault(lookup, "CARD_PUBSUB_PROJECT", ""),
			PubSubTopic:    stringWithDefault(lookup, "CARD_PUBSUB_TOPIC", ""),
			CommandTimeout: durationWithDefault(lookup, "CARD_COMMAND_TIMEOUT", defaultCommandTimeout),
			Subscribe:      boolWithDefault(lookup, "CARD_HOST_SUBSCRIBE", true),
		},
		Lookup: LookupConfig{
			BaseURL:   strings.TrimRight(stringWithDefault(lookup, "CARD_LOOKUP_BASE_URL", defaultLookupBaseURL), "/"),
			UserAgent: stringWithDefault(lookup, "CARD_LOOKUP_USER_AGENT", defaultLookupAgent),
			Timeout:   durationWithDefault(lookup, "CARD_LOOKUP_TIMEOUT", 0),
		},
		Scanner: ScannerConfig{
			FrameInterval:    durationWithDefault(lookup, "CARD_FRAME_INTERVAL", defaultFrameInterval),
			DeviceSignature:  stringWithDefault(lookup, "CARD_DEVICE_USER_AGENT", ""),
			CameraDevice:     stringWithDefault(lookup, "CARD_CAMERA_DEVICE", ""),
			Locale:           strings.ToLower(stringWithDefault(lookup, "CARD_LOCALE", defaultLocale)),
			HardwareDetector: boolWithDefault(lookup, "CARD_HARDWARE_DETECTOR", false),
		},
		Trace: TraceConfig{ProjectID: stringWithDefault(lookup, "CARD_TRACE_PROJECT", "")},
		Log:   LogConfig{Level: stringWithDefault(lookup, "LOG_LEVEL", "info")},
	}

	if path := stringWithDefault(lookup, "CARD_CONFIG_FILE", ""); path != "" {
		card, err := LoadCardFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Card = card
	}

	resolved, err := resolveSecret(ctx, cfg.Host.Token, options.secret)
	if err != nil {
		return Config{}, err
	}
	cfg.Host.Token = resolved

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultOptions(opts []Option) loaderOptions {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func validateConfig(cfg Config) error {
	var invalid []string
	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	switch cfg.Host.Transport {
	case TransportREST:
	case TransportPubSub:
		if cfg.Host.PubSubProject == "" {
			invalid = append(invalid, "Host.PubSubProject")
		}
		if cfg.Host.PubSubTopic == "" {
			invalid = append(invalid, "Host.PubSubTopic")
		}
	default:
		invalid = append(invalid, "Host.Transport")
	}
	if cfg.Lookup.BaseURL == "" {
		invalid = append(invalid, "Lookup.BaseURL")
	}
	if cfg.Lookup.Timeout < 0 {
		invalid = append(invalid, "Lookup.Timeout")
	}
	if cfg.Scanner.FrameInterval <= 0 {
		invalid = append(invalid, "Scanner.FrameInterval")
	}
	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "secret://") && !strings.HasPrefix(trimmed, "sm://") {
		return value, nil
	}
	ref := "secret://" + strings.TrimPrefix(strings.TrimPrefix(trimmed, "sm://"), "secret://")
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errNoSecretResolver}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		}
	}
	return fallback
}
