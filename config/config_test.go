// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package config

import (
	"os"
	"testing"
)

// chdir is t.Chdir for toolchains older than Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() { os.Chdir(prev) })
}

func TestDefaultsProduceValidConfig(t *testing.T) {
	chdir(t, t.TempDir()) // no stray .env

	v, err := InitConfig()
	if err != nil {
		t.Fatalf("init config failed: %v", err)
	}
	cfg, err := GetApplicationConfig(v)
	if err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}

	if cfg.Name != "rehearsly-session" {
		t.Errorf("unexpected default service name %q", cfg.Name)
	}
	if cfg.Port != 8080 {
		t.Errorf("unexpected default port %d", cfg.Port)
	}
	if cfg.SampleIntervalMs != 300 {
		t.Errorf("unexpected default sample interval %d", cfg.SampleIntervalMs)
	}
	if cfg.AnalyzerHost == "" {
		t.Error("expected a default analyzer host")
	}
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	os.Setenv("ANALYZER_HOST", "https://analyzer.rehearsly.internal")
	os.Setenv("SAMPLE_INTERVAL_MS", "250")
	t.Cleanup(func() {
		os.Unsetenv("ANALYZER_HOST")
		os.Unsetenv("SAMPLE_INTERVAL_MS")
	})

	v, err := InitConfig()
	if err != nil {
		t.Fatalf("init config failed: %v", err)
	}
	cfg, err := GetApplicationConfig(v)
	if err != nil {
		t.Fatalf("config failed to validate: %v", err)
	}

	if cfg.AnalyzerHost != "https://analyzer.rehearsly.internal" {
		t.Errorf("expected env override for analyzer host, got %q", cfg.AnalyzerHost)
	}
	if cfg.SampleIntervalMs != 250 {
		t.Errorf("expected env override for sample interval, got %d", cfg.SampleIntervalMs)
	}
}
