package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/clustertier/internal/app"
	"github.com/dropDatabas3/clustertier/internal/config"
	"github.com/dropDatabas3/clustertier/internal/observability/logger"
)

var version = "dev"

type adminClient struct {
	BaseURL   string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *adminClient) get(path string) (int, []byte, error) {
	resp, err := c.HTTP.Get(strings.TrimRight(c.BaseURL, "/") + path)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *adminClient) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(strings.TrimSpace(string(body)))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	// .env opcional
	_ = godotenv.Load()

	var (
		configPath = envOr("CONFIG_PATH", "")
		adminURL   = envOr("TIERD_ADMIN_URL", "http://localhost:8090")
		out        = envOr("TIERD_OUT", "json")
	)

	root := &cobra.Command{
		Use:           "tierd",
		Short:         "Stripe en proceso del clustered tier (active + passives) con admin HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Arranca el stripe y el admin HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.Log.Level,
				ServiceName: cfg.Log.ServiceName,
				Version:     version,
			})
			defer func() { _ = logger.Sync() }()
			log := logger.Named("tierd")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					log.Warn("shutdown", logger.Err(err))
				}
			}()

			log.Info("stripe started",
				logger.Count(len(c.Stripe.Passives())),
				logger.Component(c.Stripe.Active().Name()))
			return c.Run(ctx)
		},
	}
	serveCmd.Flags().StringVar(&configPath, "config", configPath, "Ruta del YAML de configuración (env CONFIG_PATH)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Imprime la versión",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	cl := &adminClient{HTTP: &http.Client{Timeout: 10 * time.Second}}
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Consultas al admin HTTP de un tierd en marcha",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cl.BaseURL, cl.OutFormat = adminURL, out
		},
	}
	adminCmd.PersistentFlags().StringVar(&adminURL, "admin-url", adminURL, "URL base del admin (env TIERD_ADMIN_URL)")
	adminCmd.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	for _, v := range []struct{ use, short, path string }{
		{"cluster", "Active, epoch y estado de cada passive", "/v1/cluster"},
		{"stores", "Server stores del active", "/v1/stores"},
		{"clients", "Clientes trackeados por el active", "/v1/clients"},
		{"ready", "Readiness del active", "/readyz"},
	} {
		v := v
		adminCmd.AddCommand(&cobra.Command{
			Use:   v.use,
			Short: v.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				status, body, err := cl.get(v.path)
				if err != nil {
					return err
				}
				if status/100 != 2 {
					return fmt.Errorf("%s fallo: status=%d body=%s", v.use, status, strings.TrimSpace(string(body)))
				}
				cl.print(status, body)
				return nil
			},
		})
	}

	root.AddCommand(serveCmd, versionCmd, adminCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
