package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/grocery-field/card/internal/capability"
	"github.com/grocery-field/card/internal/card"
	"github.com/grocery-field/card/internal/decoder"
	"github.com/grocery-field/card/internal/handlers"
	"github.com/grocery-field/card/internal/host"
	"github.com/grocery-field/card/internal/i18n"
	"github.com/grocery-field/card/internal/inventory"
	"github.com/grocery-field/card/internal/platform/config"
	"github.com/grocery-field/card/internal/platform/observability"
	"github.com/grocery-field/card/internal/platform/secrets"
	"github.com/grocery-field/card/internal/product"
	"github.com/grocery-field/card/internal/scan"
	"github.com/grocery-field/card/internal/shortcut"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("card")

	secretOpts := []secrets.Option{
		secrets.WithProject(envValues["CARD_SECRET_PROJECT_ID"]),
		secrets.WithLogger(logger.Named("secrets")),
	}
	if path := strings.TrimSpace(envValues["CARD_SECRET_FALLBACK_FILE"]); path != "" {
		secretOpts = append(secretOpts, secrets.WithFallbackFile(path))
	}
	fetcher, err := secrets.NewFetcher(ctx, secretOpts...)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	bundle, err := i18n.Default()
	if err != nil {
		logger.Fatal("failed to load labels", zap.Error(err))
	}
	lang := bundle.Resolve(cfg.Scanner.Locale)

	rest, err := host.NewRESTClient(cfg.Host.BaseURL, cfg.Host.Token, cfg.Host.Domain, &http.Client{Timeout: cfg.Host.CommandTimeout})
	if err != nil {
		logger.Fatal("failed to initialise host client", zap.Error(err))
	}

	var channel host.CommandChannel = rest
	if cfg.Host.Transport == config.TransportPubSub {
		psClient, err := pubsub.NewClient(ctx, cfg.Host.PubSubProject)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		topic := psClient.Topic(cfg.Host.PubSubTopic)
		defer topic.Stop()
		psChannel, err := host.NewPubSubChannel(topic)
		if err != nil {
			logger.Fatal("failed to initialise pubsub channel", zap.Error(err))
		}
		channel = psChannel
	}
	commands := host.Instrument(channel, observability.ServiceLogger(logger.Named("host")))

	lookupOpts := []product.Option{
		product.WithUserAgent(cfg.Lookup.UserAgent),
		product.WithLocale(lang),
	}
	if cfg.Lookup.Timeout > 0 {
		lookupOpts = append(lookupOpts, product.WithHTTPClient(&http.Client{Timeout: cfg.Lookup.Timeout}))
	}
	catalogue, err := product.NewClient(cfg.Lookup.BaseURL, lookupOpts...)
	if err != nil {
		logger.Fatal("failed to initialise product client", zap.Error(err))
	}
	resolver := product.NewResolver(catalogue, observability.ServiceLogger(logger.Named("product")))

	devices, err := cameraDevices(cfg.Scanner)
	if err != nil {
		logger.Fatal("failed to open camera devices", zap.Error(err))
	}

	probe := capability.NewProbe(capability.Environment{
		Signature: cfg.Scanner.DeviceSignature,
		Features:  capability.FeatureSet{capability.FeatureBarcodeDetector: cfg.Scanner.HardwareDetector},
		Devices:   devices,
	})
	if !probe.CameraAvailable(ctx) {
		logger.Warn("no camera found; scanning will report no camera until one is attached")
	}

	selector := decoder.Selector{Engines: decoder.DefaultEngineCache()}
	var relay *decoder.Relay
	if cfg.Scanner.HardwareDetector {
		relay = &decoder.Relay{}
		selector.Hardware = relay.Factory()
	}

	session, err := scan.NewSession(scan.Deps{
		Capabilities: probe,
		Devices:      devices,
		Selector:     selector,
		Resolver:     resolver,
		Scheduler:    scan.TimerScheduler{Interval: cfg.Scanner.FrameInterval},
		Logger:       observability.ServiceLogger(logger.Named("scan")),
	})
	if err != nil {
		logger.Fatal("failed to initialise scan session", zap.Error(err))
	}

	nav := &shortcut.NavigationLauncher{}
	controller, err := card.New(card.Deps{
		Config:         cfg.Card,
		Session:        session,
		Commands:       commands,
		Launcher:       nav,
		Bundle:         bundle,
		Language:       lang,
		Ranker:         inventory.NewRanker(lang),
		CommandTimeout: cfg.Host.CommandTimeout,
		Logger:         observability.ServiceLogger(logger.Named("card")),
	})
	if err != nil {
		logger.Fatal("failed to initialise card", zap.Error(err))
	}

	renderer, err := card.NewRenderer(card.RenderOptions{
		ActionBase: "/api/v1/card",
		AssetBase:  "/static",
		Labels:     bundle.T,
	})
	if err != nil {
		logger.Fatal("failed to initialise renderer", zap.Error(err))
	}

	subCtx, subCancel := context.WithCancel(context.Background())
	var subWG sync.WaitGroup
	if cfg.Host.Subscribe {
		if snap, err := rest.Snapshot(ctx); err != nil {
			logger.Warn("initial host snapshot failed", zap.Error(err))
		} else {
			controller.UpdateHost(snap)
		}
		sub, err := host.NewSubscriber(cfg.Host.BaseURL, cfg.Host.Token, controller.UpdateHost,
			host.WithSubscriberLogger(observability.ServiceLogger(logger.Named("subscriber"))))
		if err != nil {
			logger.Fatal("failed to initialise host subscriber", zap.Error(err))
		}
		subWG.Add(1)
		go func() {
			defer subWG.Done()
			if err := sub.Run(subCtx); err != nil {
				logger.Error("host subscription stopped", zap.Error(err))
			}
		}()
	}

	health := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(handlers.BuildInfo{
			Version:   strings.TrimSpace(envValues["CARD_BUILD_VERSION"]),
			CommitSHA: strings.TrimSpace(envValues["CARD_BUILD_COMMIT_SHA"]),
			StartedAt: startedAt,
		}),
		handlers.WithReadinessCheck("host", func(ctx context.Context) error {
			_, err := rest.State(ctx, host.SensorTotalItems)
			return err
		}),
	)

	cardHandlers := handlers.NewCardHandlers(controller, renderer, handlers.WithRelay(relay), handlers.WithNavigation(nav))
	productHandlers := handlers.NewProductHandlers(catalogue)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.TraceMiddleware(cfg.Trace.ProjectID),
			observability.InjectLoggerMiddleware(logger),
			cardHandlers.SessionContext,
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithPage(cardHandlers.Page),
		handlers.WithCardRoutes(cardHandlers.Routes),
		handlers.WithProductRoutes(productHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("grocery card listening", zap.String("lang", lang), zap.Bool("hardware_detector", cfg.Scanner.HardwareDetector))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")
	session.Cancel()
	subCancel()
	subWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
