// Command token mints a bearer token for an account id using the server's
// auth configuration. Intended for local development.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"account-graph/internal/auth"
	"account-graph/internal/config"
	"account-graph/internal/domain"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	account := flag.String("account", "", "account id to issue the token for")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to auth.tokenttlminutes")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	id, err := domain.ParseID(*account)
	if err != nil {
		logger.Fatalf("account %q: %v", *account, err)
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute
	}

	token, err := auth.NewTokens(cfg.Auth.JWTSecret, lifetime).Issue(id)
	if err != nil {
		logger.Fatalf("issue token: %v", err)
	}
	fmt.Fprintln(os.Stdout, token)
}
