package domain

import (
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	t.Run("DefaultsAreValid", func(t *testing.T) {
		if err := DefaultConfig().Validate(); err != nil {
			t.Errorf("expected default config to be valid, got %v", err)
		}
		if err := ProConfig().Validate(); err != nil {
			t.Errorf("expected pro config to be valid, got %v", err)
		}
	})

	t.Run("CollectsEveryProblem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.Port = 0
		cfg.Repository.Driver = "mysql"
		cfg.Cache.Type = "memcached"
		cfg.Logging.Format = "xml"

		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected validation error")
		}
		for _, want := range []string{"port", "mysql", "memcached", "xml"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("expected error to mention %q, got %v", want, err)
			}
		}
	})

	t.Run("ProNeedsConnectionDetails", func(t *testing.T) {
		cfg := ProConfig()
		cfg.Cache.RedisAddr = ""
		cfg.EventBus.NATSUrl = ""

		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected validation error")
		}
		if !strings.Contains(err.Error(), "redis") || !strings.Contains(err.Error(), "nats") {
			t.Errorf("expected redis and nats errors, got %v", err)
		}
	})
}
