package config

import "testing"

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil, func(string) string { return "" })
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Host != defaultHost || cfg.Port != defaultPort {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.AutoPromoteGolden {
		t.Fatalf("expected auto-promote default true, got %+v", cfg)
	}
}

func TestParseEnvOverridesDefault(t *testing.T) {
	env := map[string]string{"AOI_PORT": "9090", "AOI_ROOT": "/srv/aoi"}
	cfg, err := Parse(nil, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != 9090 || cfg.Root != "/srv/aoi" {
		t.Fatalf("expected env override, got %+v", cfg)
	}
}

func TestParseFlagOverridesEnv(t *testing.T) {
	env := map[string]string{"AOI_PORT": "9090"}
	cfg, err := Parse([]string{"--port", "7070"}, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != 7070 {
		t.Fatalf("expected flag to win over env, got port=%d", cfg.Port)
	}
}

func TestParseInvalidPortReturnsError(t *testing.T) {
	if _, err := Parse([]string{"--port", "not-a-number"}, func(string) string { return "" }); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestParseAutoPromoteGoldenFalse(t *testing.T) {
	cfg, err := Parse([]string{"--auto-promote-golden=false"}, func(string) string { return "" })
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.AutoPromoteGolden {
		t.Fatal("expected auto-promote-golden=false to be honored")
	}
}
