package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Store struct {
		Driver string
	}
	Database struct {
		Path string
	}
	Mongo struct {
		URI        string
		Database   string
		Collection string
	}
	Auth struct {
		JWTSecret       string
		TokenTTLMinutes int
	}
	Hash struct {
		Cost int
	}
	Log struct {
		Level  string
		Format string
	}
	CORS struct {
		AllowOrigins string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	// existing environment wins over .env
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ACCOUNTGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("store.driver", StoreSQLite)
	v.SetDefault("database.path", "data/accounts.db")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "accountgraph")
	v.SetDefault("mongo.collection", "accounts")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 60)
	v.SetDefault("hash.cost", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("cors.alloworigins", "*")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	switch cfg.Store.Driver {
	case StoreSQLite, StoreMongo:
	default:
		return Config{}, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	return cfg, nil
}

// CORSOrigins returns the allowed origins as a slice.
func (c Config) CORSOrigins() []string {
	parts := strings.Split(c.CORS.AllowOrigins, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}
