package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig carries the fixed-window limiter settings. FailClosed
// flips the unavailable-cache behavior from "let the request through"
// to "reject with 503" and applies to every limited route.
type RateLimitConfig struct {
	Enabled     bool
	Max         int
	Window      time.Duration
	LoginMax    int
	LoginWindow time.Duration
	FailClosed  bool
}

// LoadRateLimitConfig reads the RATE_LIMIT_* and LOGIN_RATE_LIMIT_*
// variables, clamping nonsense values to sane minimums.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:     envBool("RATE_LIMIT_ENABLED", true),
		Max:         envInt("RATE_LIMIT_MAX", 100),
		Window:      envDur("RATE_LIMIT_WINDOW", time.Minute),
		LoginMax:    envInt("LOGIN_RATE_LIMIT_MAX", 10),
		LoginWindow: envDur("LOGIN_RATE_LIMIT_WINDOW", 15*time.Minute),
		FailClosed:  envBool("RATE_LIMIT_FAIL_CLOSED", false),
	}
	if cfg.Max < 1 {
		cfg.Max = 1
	}
	if cfg.LoginMax < 1 {
		cfg.LoginMax = 1
	}
	if cfg.Window < time.Second {
		cfg.Window = time.Second
	}
	if cfg.LoginWindow < time.Second {
		cfg.LoginWindow = time.Second
	}
	return cfg
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
