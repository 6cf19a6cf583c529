package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, "data/accounts.db", cfg.Database.Path)
	assert.Equal(t, 60, cfg.Auth.TokenTTLMinutes)
	assert.Equal(t, 10, cfg.Hash.Cost)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ACCOUNTGRAPH_STORE_DRIVER", "Mongo")
	t.Setenv("ACCOUNTGRAPH_MONGO_URI", "mongodb://db:27017")
	t.Setenv("ACCOUNTGRAPH_AUTH_JWTSECRET", "s3cret")
	t.Setenv("ACCOUNTGRAPH_HASH_COST", "12")
	t.Setenv("ACCOUNTGRAPH_CORS_ALLOWORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMongo, cfg.Store.Driver)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 12, cfg.Hash.Cost)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins())
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("ACCOUNTGRAPH_STORE_DRIVER", "postgres")

	_, err := Load()
	assert.Error(t, err)
}
