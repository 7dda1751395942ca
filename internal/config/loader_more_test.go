package config

import (
	"testing"
	"time"

	"github.com/oscarka/underwritingsystem2/internal/crud"
)

func TestLoad_NonexistentFile(t *testing.T) {
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
}

func TestLoad_UnknownKeysRejected(t *testing.T) {
	d := t.TempDir()
	cases := map[string]string{
		"bad.yaml": "api:\n  base_urll: http://x\n",
		"bad.json": `{"apii":{}}`,
		"bad.toml": "[api]\nbase=\"http://x\"\n",
	}
	for name, body := range cases {
		p := writeTempFile(t, d, name, body)
		if _, err := Load(p); err == nil {
			t.Fatalf("%s: expected unknown key error", name)
		}
	}
}

func TestLoad_InvalidSyntax(t *testing.T) {
	d := t.TempDir()
	for name, body := range map[string]string{
		"broken.yaml": "api: [\n",
		"broken.json": `{ "api": }`,
		"broken.toml": "api=\nmodels_dir\n",
	} {
		if _, err := Load(writeTempFile(t, d, name, body)); err == nil {
			t.Fatalf("%s: expected syntax error", name)
		}
	}
}

func TestLoad_BadDuration(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "cfg.yaml", "api:\n  timeout: soon\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected duration error")
	}
}

func TestResolve_EnvOverrides(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "cfg.yaml", "api:\n  base_url: http://from-file:1\n")
	t.Setenv("UW_API_BASE_URL", "http://from-env:2")
	t.Setenv("UW_PERMISSION_CACHE_DURATION", "30s")
	t.Setenv("UW_MOCK_CORS_ORIGINS", "http://a,http://b")
	t.Setenv("UW_SESSION_BACKEND", "memory")

	cfg, err := Resolve(p)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.API.BaseURL != "http://from-env:2" {
		t.Fatalf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.Permission.CacheDuration.D() != 30*time.Second {
		t.Fatalf("cache = %v", cfg.Permission.CacheDuration.D())
	}
	if len(cfg.Mock.CORSOrigins) != 2 || cfg.Mock.CORSOrigins[1] != "http://b" {
		t.Fatalf("cors = %v", cfg.Mock.CORSOrigins)
	}
	if cfg.Session.Backend != "memory" {
		t.Fatalf("backend = %q", cfg.Session.Backend)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"relative url", func(c *Config) { c.API.BaseURL = "/api" }},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"backend", func(c *Config) { c.Session.Backend = "redis" }},
		{"file without path", func(c *Config) { c.Session.Path = "" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative cache", func(c *Config) { c.Permission.CacheDuration = -1 }},
		{"unknown resource", func(c *Config) { c.Resources = map[string]crud.Endpoints{"users": {}} }},
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mut(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEndpoints_UnknownResource(t *testing.T) {
	if _, err := Default().Endpoints("users"); err == nil {
		t.Fatalf("expected error")
	}
}
