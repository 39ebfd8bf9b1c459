package server

import (
	"context"
	"testing"
)

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in           string
		wantEndpoint string
		wantSecure   bool
		wantErr      bool
	}{
		{"minio:9000", "minio:9000", false, false},
		{"http://minio:9000", "minio:9000", false, false},
		{"https://minio:9000", "minio:9000", true, false},
		{"http://minio:9000/", "minio:9000", false, false},
		{"http://minio:9000/foo", "", false, true},
		{"", "", false, true},
	}

	for _, tt := range tests {
		ep, secure, err := normaliseEndpoint(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for input %q", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.in, err)
		}
		if ep != tt.wantEndpoint || secure != tt.wantSecure {
			t.Fatalf("normaliseEndpoint(%q) = (%q,%v), want (%q,%v)", tt.in, ep, secure, tt.wantEndpoint, tt.wantSecure)
		}
	}
}

func TestLoadMirrorConfig(t *testing.T) {
	t.Setenv("SLOTDROP_S3_ENDPOINT", "")
	if _, ok := LoadMirrorConfig(); ok {
		t.Fatal("mirror enabled without an endpoint")
	}

	t.Setenv("SLOTDROP_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("SLOTDROP_S3_ACCESS_KEY", "ak")
	t.Setenv("SLOTDROP_S3_SECRET_KEY", "sk")
	t.Setenv("SLOTDROP_BUCKET", "drops")
	t.Setenv("SLOTDROP_S3_OBJECT_KEY", "")
	cfg, ok := LoadMirrorConfig()
	if !ok {
		t.Fatal("mirror disabled with an endpoint set")
	}
	if cfg.Endpoint != "http://minio:9000" || cfg.AccessKey != "ak" || cfg.SecretKey != "sk" || cfg.Bucket != "drops" {
		t.Errorf("config = %+v", cfg)
	}
}

func TestNewMirror_IncompleteConfig(t *testing.T) {
	cases := []MirrorConfig{
		{},
		{Endpoint: "minio:9000", AccessKey: "ak", SecretKey: "sk"},
		{Endpoint: "minio:9000", Bucket: "drops"},
	}
	for _, cfg := range cases {
		if _, err := NewMirror(context.Background(), cfg, "test.png"); err == nil {
			t.Errorf("NewMirror(%+v) succeeded, want error", cfg)
		}
	}
}

func TestNewMirror_BadEndpoint(t *testing.T) {
	cfg := MirrorConfig{Endpoint: "http://minio:9000/path", AccessKey: "ak", SecretKey: "sk", Bucket: "drops"}
	if _, err := NewMirror(context.Background(), cfg, "test.png"); err == nil {
		t.Error("NewMirror accepted an endpoint with a path")
	}
}
