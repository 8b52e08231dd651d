package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/clustertier/internal/tier"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Log struct {
		Level       string `yaml:"level"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"log"`

	Admin struct {
		Addr string `yaml:"addr"`
	} `yaml:"admin"`

	Stripe struct {
		Passives int `yaml:"passives"`
	} `yaml:"stripe"`

	Replication struct {
		AckTimeout string `yaml:"ack_timeout"`
		Lanes      int    `yaml:"lanes"`
		LaneDepth  int    `yaml:"lane_depth"`
		QueueDepth int    `yaml:"queue_depth"` // 0 = sin límite
	} `yaml:"replication"`

	Journal struct {
		Driver string `yaml:"driver"` // memory | bolt
		Dir    string `yaml:"dir"`
		Retain uint64 `yaml:"retain"`
	} `yaml:"journal"`

	Storage struct {
		Driver string `yaml:"driver"` // memory | redis
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"storage"`

	// Tier manager que el daemon configura al arrancar (opcional).
	Tier struct {
		AutoConfigure         bool                 `yaml:"auto_configure"`
		DefaultServerResource string               `yaml:"default_server_resource"`
		ResourcePools         map[string]tier.Pool `yaml:"resource_pools"`
	} `yaml:"tier"`
}

// Load lee path (vacío = solo defaults), aplica defaults, env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyDefaults()

	// Overrides por env
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// Normalizar dir del journal (si relativo) respecto al directorio del YAML
	if d := strings.TrimSpace(c.Journal.Dir); d != "" && path != "" && !filepath.IsAbs(d) {
		c.Journal.Dir = filepath.Clean(filepath.Join(filepath.Dir(path), d))
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.ServiceName == "" {
		c.Log.ServiceName = "tierd"
	}
	if c.Admin.Addr == "" {
		c.Admin.Addr = ":8090"
	}
	if c.Stripe.Passives == 0 {
		c.Stripe.Passives = 1
	}
	if c.Replication.AckTimeout == "" {
		c.Replication.AckTimeout = "5s"
	}
	if c.Replication.Lanes == 0 {
		c.Replication.Lanes = 8
	}
	if c.Replication.LaneDepth == 0 {
		c.Replication.LaneDepth = 64
	}
	if c.Journal.Driver == "" {
		c.Journal.Driver = "memory"
	}
	if c.Journal.Driver == "bolt" && c.Journal.Dir == "" {
		c.Journal.Dir = "./data/journal"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "tier"
	}
	if c.Tier.ResourcePools == nil {
		c.Tier.ResourcePools = map[string]tier.Pool{}
	}
}

// AckTimeout devuelve replication.ack_timeout ya validado.
func (c *Config) AckTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Replication.AckTimeout)
	return d
}

// ServerSide arma la configuración del tier manager del bloque tier.
func (c *Config) ServerSide() tier.ServerSideConfiguration {
	return tier.ServerSideConfiguration{
		DefaultServerResource: c.Tier.DefaultServerResource,
		ResourcePools:         c.Tier.ResourcePools,
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvUint(key string) (uint64, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP / LOG
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVICE_NAME"); ok {
		c.Log.ServiceName = v
	}

	// ADMIN
	if v, ok := getEnvStr("ADMIN_ADDR"); ok {
		c.Admin.Addr = v
	}

	// STRIPE / REPLICATION
	if v, ok := getEnvInt("STRIPE_PASSIVES"); ok {
		c.Stripe.Passives = v
	}
	if v, ok := getEnvDur("REPLICATION_ACK_TIMEOUT"); ok {
		c.Replication.AckTimeout = v.String()
	}
	if v, ok := getEnvInt("REPLICATION_LANES"); ok {
		c.Replication.Lanes = v
	}
	if v, ok := getEnvInt("REPLICATION_QUEUE_DEPTH"); ok {
		c.Replication.QueueDepth = v
	}

	// JOURNAL
	if v, ok := getEnvStr("JOURNAL_DRIVER"); ok {
		c.Journal.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("JOURNAL_DIR"); ok {
		c.Journal.Dir = v
	}
	if v, ok := getEnvUint("JOURNAL_RETAIN"); ok {
		c.Journal.Retain = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Storage.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Storage.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Storage.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Storage.Redis.Prefix = v
	}

	// TIER
	if v, ok := getEnvBool("TIER_AUTO_CONFIGURE"); ok {
		c.Tier.AutoConfigure = v
	}
	if v, ok := getEnvStr("TIER_DEFAULT_SERVER_RESOURCE"); ok {
		c.Tier.DefaultServerResource = v
	}
}

// Validate rechaza drivers desconocidos y valores fuera de rango.
func (c *Config) Validate() error {
	if d, err := time.ParseDuration(c.Replication.AckTimeout); err != nil {
		return fmt.Errorf("config: replication.ack_timeout: %w", err)
	} else if d <= 0 {
		return fmt.Errorf("config: replication.ack_timeout must be positive")
	}
	if c.Stripe.Passives < 0 {
		return fmt.Errorf("config: stripe.passives must be >= 0")
	}
	if c.Replication.Lanes < 1 {
		return fmt.Errorf("config: replication.lanes must be >= 1")
	}
	if c.Replication.QueueDepth < 0 {
		return fmt.Errorf("config: replication.queue_depth must be >= 0")
	}
	switch c.Journal.Driver {
	case "memory":
	case "bolt":
		if strings.TrimSpace(c.Journal.Dir) == "" {
			return fmt.Errorf("config: journal.dir is required for bolt")
		}
	default:
		return fmt.Errorf("config: unknown journal.driver %q", c.Journal.Driver)
	}
	switch c.Storage.Driver {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Storage.Redis.Addr) == "" {
			return fmt.Errorf("config: storage.redis.addr is required for redis")
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	return nil
}
