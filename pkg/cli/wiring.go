package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"screenlist/pkg/browser"
	"screenlist/pkg/cache"
	"screenlist/pkg/config"
	"screenlist/pkg/db"
	"screenlist/pkg/httpclient"
	"screenlist/pkg/logger"
	"screenlist/pkg/sites"
)

// httpClient builds the shared HTTP client from the http section
func httpClient(cfg *config.Config) *httpclient.HTTPClient {
	return httpclient.NewClientWithOptions(httpclient.Options{
		Type:          httpclient.ClientType(cfg.HTTP.ClientType),
		Timeout:       cfg.HTTP.Timeout,
		UserAgent:     cfg.HTTP.UserAgent,
		RatePerSecond: cfg.HTTP.RatePerSecond,
		Burst:         cfg.HTTP.Burst,
	})
}

// sessionFactory picks the page backend
func sessionFactory(cfg *config.Config, client *httpclient.HTTPClient) (browser.Factory, error) {
	switch browser.Backend(cfg.Browser.Backend) {
	case browser.StaticBackend:
		return browser.StaticFactory(client), nil
	case browser.ChromeBackend:
		return browser.ChromeFactory(browser.ChromeOptions{
			Headless:  cfg.Browser.Headless,
			ExecPath:  cfg.Browser.ExecPath,
			UserAgent: cfg.HTTP.UserAgent,
		}), nil
	}
	return nil, fmt.Errorf("unknown browser backend %q", cfg.Browser.Backend)
}

// loadProfiles merges the selector file, when there is one, over the built-in catalogue
func loadProfiles(cfg *config.Config) (sites.Profiles, error) {
	defaults := sites.DefaultProfiles()
	if cfg.App.Selectors == "" {
		return defaults, nil
	}

	override, err := config.ReadConfig[sites.Profiles](cfg.App.Selectors)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("CLI: no selector file, using built-in profiles", "path", cfg.App.Selectors)
		return defaults, nil
	}
	if err != nil {
		return sites.Profiles{}, fmt.Errorf("failed to read selector profiles: %w", err)
	}
	return defaults.Merge(override)
}

type mirrorClient interface {
	cache.Mirror
	Connect(ctx context.Context) error
}

type closeFunc func()

// openMirrors connects every configured mirror. A mirror that cannot connect is
// logged and left out; it never stops a run.
func openMirrors(ctx context.Context, cfg config.Mirrors) ([]cache.Mirror, closeFunc) {
	var candidates []mirrorClient
	var closers []func()

	if cfg.MongoURI != "" {
		c := db.NewMongoClient(db.MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDB, Collection: cfg.MongoCollection})
		candidates = append(candidates, c)
		closers = append(closers, func() { _ = c.Close(context.WithoutCancel(ctx)) })
	}
	if cfg.PostgresDSN != "" {
		c := db.NewPostgresClient(db.PostgresConfig{DSN: cfg.PostgresDSN})
		candidates = append(candidates, c)
		closers = append(closers, func() { _ = c.Close() })
	}
	if cfg.SupabaseURL != "" || cfg.SupabasePassword != "" {
		c := db.NewSupabaseClient(db.SupabaseConfig{
			SupabaseURL: cfg.SupabaseURL,
			SupabaseKey: cfg.SupabaseKey,
			Password:    cfg.SupabasePassword,
		})
		candidates = append(candidates, c)
		closers = append(closers, func() { _ = c.Close() })
	}
	if cfg.SQLitePath != "" {
		c := db.NewSQLiteClient(cfg.SQLitePath)
		candidates = append(candidates, c)
		closers = append(closers, func() { _ = c.Close() })
	}

	var mirrors []cache.Mirror
	for _, c := range candidates {
		if err := c.Connect(ctx); err != nil {
			logger.Warn("CLI: mirror unavailable", "mirror", c.Name(), "error", err)
			continue
		}
		logger.Info("CLI: mirror connected", "mirror", c.Name())
		mirrors = append(mirrors, c)
	}

	return mirrors, func() {
		for _, closeMirror := range closers {
			closeMirror()
		}
	}
}

// cacheStore returns the preset's file store, wrapped with mirrors when any are connected
func cacheStore(cfg *config.Config, preset string, mirrors []cache.Mirror) cache.Store {
	file := cache.NewFileStore(cfg.CachePath(preset))
	if len(mirrors) == 0 {
		return file
	}
	return cache.NewMirroredStore(file, mirrors...)
}
