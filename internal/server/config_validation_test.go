package server

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{Addr: ":8888", DataDir: "./data", SlotName: "test.png", ContentType: "image/png"}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SLOTDROP_S3_ENDPOINT", "SLOTDROP_S3_ACCESS_KEY", "SLOTDROP_S3_SECRET_KEY", "SLOTDROP_BUCKET",
		"SLOTDROP_SWEEP_INTERVAL", "SLOTDROP_SWEEP_MAX_AGE",
		"SLOTDROP_LOG_FORMAT", "SLOTDROP_LOG_LEVEL", "SLOTDROP_ENV",
	} {
		t.Setenv(k, "")
	}
}

func TestValidateConfig_Valid(t *testing.T) {
	clearConfigEnv(t)
	if err := ValidateConfig(validConfig(), "postgres://u:p@localhost:5432/slotdrop?sslmode=disable"); err != nil {
		t.Errorf("ValidateConfig: %v", err)
	}
	if err := ValidateConfig(validConfig(), ""); err != nil {
		t.Errorf("ValidateConfig without database: %v", err)
	}
}

func TestValidateConfig_ReportsEveryProblem(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SLOTDROP_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("SLOTDROP_SWEEP_INTERVAL", "soon")
	t.Setenv("SLOTDROP_LOG_LEVEL", "chatty")

	cfg := Config{Addr: ":99999", DataDir: "", SlotName: "../x.png", ContentType: "not a type"}
	err := ValidateConfig(cfg, "mysql://localhost/db")
	if err == nil {
		t.Fatal("ValidateConfig accepted a broken config")
	}
	msg := err.Error()
	for _, key := range []string{
		"SLOTDROP_ADDR", "SLOTDROP_DATA_DIR", "SLOTDROP_SLOT_NAME", "SLOTDROP_CONTENT_TYPE",
		"DATABASE_URL", "SLOTDROP_S3_ACCESS_KEY", "SLOTDROP_S3_SECRET_KEY", "SLOTDROP_BUCKET",
		"SLOTDROP_SWEEP_INTERVAL", "SLOTDROP_LOG_LEVEL",
	} {
		if !strings.Contains(msg, key) {
			t.Errorf("error does not mention %s:\n%s", key, msg)
		}
	}
}

func TestValidateConfig_StagingPrefixedSlotName(t *testing.T) {
	clearConfigEnv(t)
	cfg := validConfig()
	cfg.SlotName = stagingPrefix + "x"
	if err := ValidateConfig(cfg, ""); err == nil {
		t.Error("staging-prefixed slot name accepted")
	}
}

func TestConfigValidator_ValidateAddr(t *testing.T) {
	tests := []struct {
		value string
		valid bool
	}{
		{":8888", true},
		{"127.0.0.1:80", true},
		{"localhost", false},
		{":http", false},
		{":0", false},
	}
	for _, tt := range tests {
		v := NewConfigValidator()
		v.ValidateAddr("ADDR", tt.value)
		if v.HasErrors() == tt.valid {
			t.Errorf("ValidateAddr(%q) errors = %v, want valid=%v", tt.value, v.Errors(), tt.valid)
		}
	}
}

func TestConfigValidator_ErrorString(t *testing.T) {
	v := NewConfigValidator()
	v.AddError("A", "bad")
	v.AddError("B", "worse")
	s := v.ErrorString()
	if !strings.Contains(s, "2 error(s)") || !strings.Contains(s, "1. config validation failed for A: bad") {
		t.Errorf("ErrorString = %q", s)
	}
}
