package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// loadConfig builds the configuration for the selected tier and applies
// KESTREL_* environment overrides.
func loadConfig(getenv func(string) string) (*domain.Config, []string, error) {
	cfg := domain.DefaultConfig()
	if getenv("KESTREL_TIER") == string(domain.TierPro) {
		cfg = domain.ProConfig()
	}

	if v := getenv("KESTREL_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, nil, fmt.Errorf("invalid KESTREL_PORT %q", v)
		}
		cfg.Server.Port = port
	}
	if v := getenv("KESTREL_CORS_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	if v := getenv("KESTREL_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := getenv("KESTREL_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := getenv("KESTREL_POSTGRES_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid KESTREL_POSTGRES_PORT %q", v)
		}
		cfg.Repository.PostgresPort = port
	}
	if v := getenv("KESTREL_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := getenv("KESTREL_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := getenv("KESTREL_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := getenv("KESTREL_POSTGRES_SSLMODE"); v != "" {
		cfg.Repository.PostgresSSLMode = v
	}

	if v := getenv("KESTREL_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := getenv("KESTREL_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}

	if v := getenv("KESTREL_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := getenv("KESTREL_NATS_TOKEN"); v != "" {
		cfg.EventBus.NATSToken = v
	}

	if v := getenv("KESTREL_ASYNC_WORKER"); v != "" {
		async, err := strconv.ParseBool(v)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid KESTREL_ASYNC_WORKER %q", v)
		}
		cfg.AsyncEvaluation = async
	}

	if getenv("KESTREL_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}

	tenants := splitList(getenv("KESTREL_TENANTS"))
	if cfg.AsyncEvaluation && len(tenants) == 0 {
		return nil, nil, fmt.Errorf("KESTREL_TENANTS is required when evaluation is asynchronous")
	}
	return cfg, tenants, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getenv is the process environment lookup used outside tests.
var getenv = os.Getenv
