package config

import (
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/campushub/campushub/internal/cache"
)

// LoadRedis assembles the resilient cache client configuration.
// Supported variables:
//
//	REDIS_HOST / REDIS_PORT  server address parts (win over REDIS_ADDR)
//	REDIS_ADDR               host:port shorthand
//	REDIS_PASSWORD           optional password
//	REDIS_DB                 database number (default 0)
//	REDIS_TLS                enable TLS when "true" or "1"
//
// Connection resilience is tuned by the CACHE_* variables.
func LoadRedis() cache.ClientConfig {
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	addr := os.Getenv("REDIS_ADDR")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	db := 0
	if s := os.Getenv("REDIS_DB"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			db = n
		}
	}
	var tlsConf *tls.Config
	if v := os.Getenv("REDIS_TLS"); strings.EqualFold(v, "true") || v == "1" {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	return cache.ClientConfig{
		Addr:            addr,
		Password:        os.Getenv("REDIS_PASSWORD"),
		DB:              db,
		TLS:             tlsConf,
		DialTimeout:     envDur("CACHE_DIAL_TIMEOUT", 2*time.Second),
		OpTimeout:       envDur("CACHE_OP_TIMEOUT", 500*time.Millisecond),
		RetryBase:       envDur("CACHE_RETRY_BASE", 200*time.Millisecond),
		RetryCap:        envDur("CACHE_RETRY_CAP", 5*time.Second),
		ConnectAttempts: envInt("CACHE_CONNECT_ATTEMPTS", 10),
		PingInterval:    envDur("CACHE_PING_INTERVAL", 3*time.Second),
	}
}
