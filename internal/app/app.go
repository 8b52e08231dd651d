// Package app arma el contenedor del daemon a partir de la configuración.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dropDatabas3/clustertier/internal/config"
	"github.com/dropDatabas3/clustertier/internal/entity"
	adminhttp "github.com/dropDatabas3/clustertier/internal/http"
	"github.com/dropDatabas3/clustertier/internal/metrics"
	"github.com/dropDatabas3/clustertier/internal/observability/logger"
	"github.com/dropDatabas3/clustertier/internal/replication"
	"github.com/dropDatabas3/clustertier/internal/store"
	"github.com/dropDatabas3/clustertier/internal/stripe"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Container struct {
	Config   *config.Config
	Stripe   *stripe.Stripe
	Registry *prometheus.Registry
	Admin    http.Handler
	Log      *zap.Logger
}

// New levanta el stripe y el admin según cfg. Si tier.auto_configure está
// activo, configura el tier manager con un cliente propio.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Container, error) {
	if log == nil {
		log = logger.Named("app")
	}

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}
	mh, err := adminhttp.RegisterMetrics(reg, reg)
	if err != nil {
		return nil, fmt.Errorf("app: admin metrics: %w", err)
	}

	s, err := stripe.New(ctx, StripeOptions(cfg, log))
	if err != nil {
		return nil, fmt.Errorf("app: stripe: %w", err)
	}

	if cfg.Tier.AutoConfigure {
		c := s.Connect(uuid.New())
		if err := c.Configure(ctx, cfg.ServerSide()); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("app: auto configure: %w", err)
		}
		log.Info("tier manager auto-configured", logger.Count(len(cfg.Tier.ResourcePools)))
	}

	return &Container{
		Config:   cfg,
		Stripe:   s,
		Registry: reg,
		Admin:    adminhttp.NewRouter(adminhttp.Deps{Cluster: s, Metrics: mh, Logger: log.Named("admin")}),
		Log:      log,
	}, nil
}

// StripeOptions traduce la configuración a opciones del stripe.
func StripeOptions(cfg *config.Config, log *zap.Logger) stripe.Options {
	opts := stripe.Options{
		Passives: cfg.Stripe.Passives,
		Server: entity.Options{
			Lanes:      cfg.Replication.Lanes,
			LaneDepth:  cfg.Replication.LaneDepth,
			AckTimeout: cfg.AckTimeout(),
			QueueDepth: cfg.Replication.QueueDepth,
			Journal: replication.JournalConfig{
				Driver: cfg.Journal.Driver,
				Dir:    cfg.Journal.Dir,
				Retain: cfg.Journal.Retain,
			},
		},
		Logger: log.Named("stripe"),
	}
	if cfg.Storage.Driver != "memory" {
		opts.Backend = func(ctx context.Context, server string) (store.ChainBackend, error) {
			// cada servidor del stripe tiene su propio espacio de keys
			return store.NewBackend(ctx, store.BackendConfig{
				Driver:    cfg.Storage.Driver,
				RedisAddr: cfg.Storage.Redis.Addr,
				Password:  cfg.Storage.Redis.Password,
				DB:        cfg.Storage.Redis.DB,
				Prefix:    cfg.Storage.Redis.Prefix + ":" + server,
			})
		}
	}
	return opts
}

// Run sirve el admin hasta que ctx se cancela.
func (c *Container) Run(ctx context.Context) error {
	c.Log.Info("admin listening", logger.Addr(c.Config.Admin.Addr))
	return adminhttp.Start(ctx, c.Config.Admin.Addr, c.Admin)
}

func (c *Container) Close() error {
	return c.Stripe.Close()
}
