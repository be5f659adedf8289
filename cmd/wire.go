package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	chainstore "github.com/bnema/offlinectl/internal/adapters/kv/chain"
	filestore "github.com/bnema/offlinectl/internal/adapters/kv/file"
	memorystore "github.com/bnema/offlinectl/internal/adapters/kv/memory"
	sqlitestore "github.com/bnema/offlinectl/internal/adapters/kv/sqlite"
	tomlstore "github.com/bnema/offlinectl/internal/adapters/kv/toml"
	"github.com/bnema/offlinectl/internal/adapters/presence/netif"
	"github.com/bnema/offlinectl/internal/adapters/presence/static"
	"github.com/bnema/offlinectl/internal/adapters/probe/httpprobe"
	statusadapter "github.com/bnema/offlinectl/internal/adapters/render/status"
	"github.com/bnema/offlinectl/internal/application"
	"github.com/bnema/offlinectl/internal/config"
	"github.com/bnema/offlinectl/internal/logger"
	"github.com/bnema/offlinectl/internal/ports"
	"github.com/bnema/offlinectl/internal/version"
	"github.com/spf13/viper"
)

type app struct {
	cfg            config.Config
	logger         *slog.Logger
	service        *application.OfflineService
	endpoint       string
	startPresence  func(context.Context)
	statusRenderer func(application.Status, statusadapter.RenderOptions) (string, error)
	now            func() time.Time
	closers        []func() error
}

func wireApp(configPath string, logOutput io.Writer) (*app, error) {
	cfg, v, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Format, cfg.Log.Level, logOutput)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	a := &app{
		cfg:            cfg,
		logger:         log,
		statusRenderer: statusadapter.Render,
		now:            time.Now,
	}

	store, err := a.wireStore(v)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("wire store: %w", err), a.Close())
	}

	checker, err := wireChecker(cfg.Probe)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("wire health checker: %w", err), a.Close())
	}
	a.endpoint = checker.Endpoint()

	clock := ports.SystemClock{}
	prober := application.NewProber(checker, application.ProbeConfig{
		Interval:    cfg.Probe.Interval,
		Timeout:     cfg.Probe.Timeout,
		MaxRetries:  cfg.Probe.MaxRetries,
		BackoffBase: cfg.Probe.BackoffBase,
	}, clock, log)

	presence := a.wirePresence(clock)
	a.service = application.NewOfflineService(store, prober, presence, clock, log)
	a.closers = append(a.closers, func() error {
		a.service.Close()
		return nil
	})

	log.Debug("engine wired",
		"endpoint", a.endpoint,
		"store", cfg.Store.Backend,
		"fallback", cfg.Store.Fallback,
		"presence", cfg.Presence.Mode,
	)

	return a, nil
}

func (a *app) wireStore(v *viper.Viper) (ports.KVStore, error) {
	path, err := a.cfg.StorePath()
	if err != nil {
		return nil, err
	}

	var primary ports.KVStore
	switch a.cfg.Store.Backend {
	case config.BackendMemory:
		primary = memorystore.NewStore()
	case config.BackendFile:
		primary = filestore.NewStore(path)
	case config.BackendTOML:
		v.Set(tomlstore.StorePathKey, path)
		store, err := tomlstore.NewStore(v)
		if err != nil {
			return nil, err
		}
		primary = store
	case config.BackendSQLite:
		store, err := sqlitestore.NewStore(path, nil)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		primary = store
	default:
		return nil, fmt.Errorf("unsupported store backend %q", a.cfg.Store.Backend)
	}

	if a.cfg.Store.Fallback != config.BackendFile {
		return primary, nil
	}

	fallbackPath, err := a.cfg.FallbackPath()
	if err != nil {
		return nil, err
	}

	chained, err := chainstore.NewStoreChecked(primary, filestore.NewStore(fallbackPath))
	if err != nil {
		return nil, err
	}

	return chained, nil
}

func wireChecker(cfg config.ProbeConfig) (*httpprobe.Checker, error) {
	var client *http.Client
	if cfg.HTTP2 {
		h2, err := httpprobe.BuildHTTP2Client(cfg.BaseURL, nil)
		if err != nil {
			return nil, err
		}
		client = h2
	}

	return httpprobe.NewChecker(httpprobe.Options{
		BaseURL:    cfg.BaseURL,
		Path:       cfg.Path,
		HTTPClient: client,
		UserAgent:  version.UserAgent(),
	})
}

func (a *app) wirePresence(clock ports.Clock) ports.PresenceSource {
	if a.cfg.Presence.Mode == config.PresenceModeAssumeOnline {
		return static.NewSource(true)
	}

	source := netif.NewSource(netif.Options{
		Interval: a.cfg.Presence.Interval,
		Clock:    clock,
		Logger:   a.logger,
	})
	a.startPresence = source.Start
	a.closers = append(a.closers, func() error {
		source.Close()
		return nil
	})

	return source
}

// start begins presence polling and the periodic prober. Only long-running commands
// need it; one-shot commands probe on demand.
func (a *app) start(ctx context.Context) error {
	if a.startPresence != nil {
		a.startPresence(ctx)
	}

	return a.service.Start(ctx)
}

func (a *app) status() application.Status {
	status := a.service.Snapshot()
	status.Endpoint = a.endpoint
	return status
}

// Close releases resources in reverse wiring order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	return errors.Join(errs...)
}
