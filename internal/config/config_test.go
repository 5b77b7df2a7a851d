package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppName != "samvad-apicaller" || cfg.HistoryType != "none" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("RequestTimeout = %s", cfg.RequestTimeout)
	}
	if cfg.HistoryTTL != 7*24*time.Hour || cfg.HistoryCleanupInterval != 6*time.Hour {
		t.Fatalf("history durations = %s / %s", cfg.HistoryTTL, cfg.HistoryCleanupInterval)
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "5")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("PROFILE", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("profile", "", "")
	flags.String("method", "GET", "")
	if err := flags.Parse([]string{"--profile", "from-flag"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Profile != "from-flag" {
		t.Fatalf("Profile = %q", cfg.Profile)
	}
}

func TestLoadRejectsInvalidTTL(t *testing.T) {
	t.Setenv("HISTORY_TTL_SECONDS", "0")
	if _, err := Load(nil); err == nil {
		t.Fatalf("expected validation error")
	}
}
