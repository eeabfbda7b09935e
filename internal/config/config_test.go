package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sacarolha/sacarolha/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("IDENTITY_API_KEY", "test-key")
	t.Setenv("MONGODB_URL", "mongodb://localhost:27017")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Server.FailSafe)
	assert.Equal(t, "data/labels", cfg.Labels.Dir)
	assert.Equal(t, int64(10485760), cfg.Labels.MaxSize)
	assert.Equal(t, "test-key", cfg.Identity.APIKey)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URL)
	assert.Equal(t, "vinhos", cfg.Mongo.Collection)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("IDENTITY_API_KEY", "test-key")
	t.Setenv("MONGODB_URL", "mongodb://localhost:27017")
	t.Setenv("SERVER_ADDR", ":9000")
	t.Setenv("AUTH_FAILSAFE", "500ms")
	t.Setenv("LABELS_S3_BUCKET", "sacarolha-labels")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 500*time.Millisecond, cfg.Server.FailSafe)
	assert.Equal(t, "sacarolha-labels", cfg.Labels.S3Bucket)
}

func TestLoad_MissingRequired(t *testing.T) {
	// t.Setenv registers the restore; unset to exercise the required tag.
	t.Setenv("IDENTITY_API_KEY", "test-key")
	os.Unsetenv("IDENTITY_API_KEY")
	t.Setenv("MONGODB_URL", "mongodb://localhost:27017")

	_, err := config.Load()
	require.Error(t, err)
}
