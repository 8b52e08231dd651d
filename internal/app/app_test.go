package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dropDatabas3/clustertier/internal/config"
	"github.com/dropDatabas3/clustertier/internal/tier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_AutoConfiguresWithBoltJournal(t *testing.T) {
	t.Setenv("JOURNAL_DRIVER", "bolt")
	t.Setenv("JOURNAL_DIR", t.TempDir())
	t.Setenv("STRIPE_PASSIVES", "2")
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Tier.AutoConfigure = true
	cfg.Tier.DefaultServerResource = "primary"
	cfg.Tier.ResourcePools = map[string]tier.Pool{"a": {Size: 1 << 20}}

	c, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ss, ok := c.Stripe.Active().ServerConfig()
	require.True(t, ok)
	assert.Equal(t, "primary", ss.DefaultServerResource)
	assert.Len(t, c.Stripe.Passives(), 2)
	assert.Equal(t, 1, c.Stripe.Active().Tracker().Len())

	rr := httptest.NewRecorder()
	c.Admin.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStripeOptions_RedisBackendPerServer(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	cfg, err := config.Load("")
	require.NoError(t, err)

	opts := StripeOptions(cfg, zap.NewNop())
	assert.NotNil(t, opts.Backend)
	assert.Equal(t, cfg.AckTimeout(), opts.Server.AckTimeout)

	cfg.Storage.Driver = "memory"
	assert.Nil(t, StripeOptions(cfg, zap.NewNop()).Backend)
}
