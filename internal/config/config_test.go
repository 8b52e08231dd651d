package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tierd.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "dev", c.App.Env)
	assert.Equal(t, ":8090", c.Admin.Addr)
	assert.Equal(t, 1, c.Stripe.Passives)
	assert.Equal(t, 5*time.Second, c.AckTimeout())
	assert.Equal(t, 8, c.Replication.Lanes)
	assert.Equal(t, "memory", c.Journal.Driver)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.NotNil(t, c.Tier.ResourcePools)
}

func TestLoad_YAML(t *testing.T) {
	p := writeYAML(t, `
app:
  app_env: prod
stripe:
  passives: 2
replication:
  ack_timeout: 250ms
  queue_depth: 128
journal:
  driver: bolt
  dir: journal
tier:
  auto_configure: true
  default_server_resource: primary
  resource_pools:
    pool-a:
      size: 1048576
      server_resource: primary
`)
	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "prod", c.App.Env)
	assert.Equal(t, 2, c.Stripe.Passives)
	assert.Equal(t, 250*time.Millisecond, c.AckTimeout())
	assert.Equal(t, 128, c.Replication.QueueDepth)
	assert.Equal(t, filepath.Join(filepath.Dir(p), "journal"), c.Journal.Dir)

	ss := c.ServerSide()
	assert.Equal(t, "primary", ss.DefaultServerResource)
	assert.Equal(t, uint64(1048576), ss.ResourcePools["pool-a"].Size)
	assert.True(t, c.Tier.AutoConfigure)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STRIPE_PASSIVES", "3")
	t.Setenv("REPLICATION_ACK_TIMEOUT", "2s")
	t.Setenv("STORAGE_DRIVER", "REDIS")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "4")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Stripe.Passives)
	assert.Equal(t, 2*time.Second, c.AckTimeout())
	assert.Equal(t, "redis", c.Storage.Driver)
	assert.Equal(t, 4, c.Storage.Redis.DB)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"ack timeout": "replication:\n  ack_timeout: soon\n",
		"journal":     "journal:\n  driver: sqlite\n",
		"storage":     "storage:\n  driver: redis\n",
		"passives":    "stripe:\n  passives: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, body))
			assert.Error(t, err)
		})
	}
}
