package db

import (
	"strings"
	"testing"
)

func TestPoolConfig(t *testing.T) {
	cfg, err := poolConfig("postgres://carebridge:pw@localhost:5432/clinic", 10, 2)
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if cfg.MaxConns != 10 || cfg.MinConns != 2 {
		t.Errorf("conns = %d/%d, want 10/2", cfg.MaxConns, cfg.MinConns)
	}
	params := cfg.ConnConfig.RuntimeParams
	if params["application_name"] != ApplicationName {
		t.Errorf("application_name = %q", params["application_name"])
	}
	if params["timezone"] != "UTC" {
		t.Errorf("timezone = %q", params["timezone"])
	}
}

func TestPoolConfig_MinClampedToMax(t *testing.T) {
	cfg, err := poolConfig("postgres://localhost/clinic", 4, 9)
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if cfg.MinConns != 4 {
		t.Errorf("MinConns = %d, want 4", cfg.MinConns)
	}
}

func TestPoolConfig_KeepsExplicitApplicationName(t *testing.T) {
	cfg, err := poolConfig("postgres://localhost/clinic?application_name=clinic-seed", 4, 1)
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "clinic-seed" {
		t.Errorf("application_name = %q", got)
	}
}

func TestPoolConfig_BadURL(t *testing.T) {
	_, err := poolConfig("postgres://%zz", 4, 1)
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("expected DATABASE_URL parse error, got %v", err)
	}
}
