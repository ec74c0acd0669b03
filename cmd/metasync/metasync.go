package main

import (
	"context"
	"net/http"
	"os"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"

	"github.com/openmetalab/metasync/internal/pkg/application/catalog"
	"github.com/openmetalab/metasync/internal/pkg/application/subscriptions"
	"github.com/openmetalab/metasync/internal/pkg/infrastructure/router"
	"github.com/openmetalab/metasync/internal/pkg/presentation/api"
	"github.com/openmetalab/metasync/pkg/metadata/cache"
)

const appName string = "metasync"

func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	cfg := LoadConfiguration(ctx)

	originsFile, err := os.Open(cfg.originsPath)
	if err != nil {
		log.Error("failed to open origins configuration", "path", cfg.originsPath, "err", err.Error())
		os.Exit(1)
	}

	origins, err := catalog.LoadConfiguration(originsFile)
	originsFile.Close()
	if err != nil {
		log.Error("failed to parse origins configuration", "err", err.Error())
		os.Exit(1)
	}

	store, err := cache.Open(ctx, cfg.cachePath)
	if err != nil {
		log.Error("failed to open snapshot store", "path", cfg.cachePath, "err", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	options := []catalog.Option{}

	if cfg.notifierEndpoint != "" {
		notifier, err := subscriptions.NewNotifier(ctx, cfg.notifierEndpoint)
		if err != nil {
			log.Error("failed to create notifier", "err", err.Error())
			os.Exit(1)
		}

		notifier.Start()
		defer notifier.Stop()

		options = append(options, catalog.WithNotifier(notifier))
	}

	app, err := catalog.New(ctx, origins, store, options...)
	if err != nil {
		log.Error("failed to create catalog", "err", err.Error())
		os.Exit(1)
	}

	// warm up every configured origin; a failed refresh is not fatal since
	// the catalog can still serve the last persisted snapshot
	for _, origin := range origins.Origins {
		if err := app.Refresh(ctx, origin.Key); err != nil {
			log.Warn("initial refresh failed", "origin", origin.Key, "err", err.Error())
		}
	}

	policies, err := os.Open(cfg.policiesPath)
	if err != nil {
		log.Error("failed to open authz policies", "path", cfg.policiesPath, "err", err.Error())
		os.Exit(1)
	}

	r := router.New(appName)

	err = api.RegisterHandlers(ctx, r, policies, app)
	policies.Close()
	if err != nil {
		log.Error("failed to register handlers", "err", err.Error())
		os.Exit(1)
	}

	log.Info("starting to listen for connections", "port", cfg.servicePort)

	err = http.ListenAndServe(":"+cfg.servicePort, r)
	if err != nil {
		log.Error("failed to listen for connections", "err", err.Error())
		os.Exit(1)
	}
}

type Config struct {
	originsPath      string
	policiesPath     string
	cachePath        string
	servicePort      string
	notifierEndpoint string
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		originsPath:      env.GetVariableOrDefault(ctx, "ORIGINS_CONFIG", "/opt/metasync/config/origins.yaml"),
		policiesPath:     env.GetVariableOrDefault(ctx, "AUTHZ_POLICIES", "/opt/metasync/config/authz.rego"),
		cachePath:        env.GetVariableOrDefault(ctx, "SNAPSHOT_STORE", "/var/lib/metasync/snapshots.db"),
		servicePort:      env.GetVariableOrDefault(ctx, "SERVICE_PORT", "8080"),
		notifierEndpoint: env.GetVariableOrDefault(ctx, "NOTIFIER_ENDPOINT", ""),
	}
}
