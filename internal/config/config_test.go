package config

import (
	"errors"
	"testing"
	"time"

	"github.com/l10nmonster/lqa-boss-sub001/internal/apperr"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"LQABOSS_BACKEND", "LQABOSS_ROOT", "LQABOSS_LOG_LEVEL", "LQABOSS_LOG_FORMAT", "LQABOSS_HTTP_TIMEOUT", "LQABOSS_REPORT_DIFF_CONTEXT"} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.Backend != BackendLocal || c.Local.Root != "." || c.Log.Level != "info" || c.Log.Format != "text" {
		t.Fatalf("defaults got %+v", c)
	}
	if c.HTTPTimeout != 20*time.Second || c.Report.DiffContext != 3 {
		t.Fatalf("defaults got %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LQABOSS_BACKEND", "GDrive")
	t.Setenv("GDRIVE_TOKEN", "tok")
	t.Setenv("LQABOSS_HTTP_TIMEOUT", "5s")
	t.Setenv("LQABOSS_REPORT_DIFF_CONTEXT", "not-a-number")
	c := Load()
	if c.Backend != BackendGDrive || c.GDrive.Token != "tok" || c.HTTPTimeout != 5*time.Second {
		t.Fatalf("got %+v", c)
	}
	if c.Report.DiffContext != 3 {
		t.Fatalf("unparsable int must fall back, got %d", c.Report.DiffContext)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		t.Setenv("LQABOSS_BACKEND", "")
		t.Setenv("LQABOSS_LOG_LEVEL", "")
		t.Setenv("LQABOSS_LOG_FORMAT", "")
		return Load()
	}
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"gdrive without token", func(c *Config) { c.Backend = BackendGDrive; c.GDrive.Token = "" }},
		{"dropbox without token", func(c *Config) { c.Backend = BackendDropbox; c.Dropbox.Token = "" }},
		{"capture without redis", func(c *Config) { c.Backend = BackendCapture; c.Capture.RedisURL = "" }},
		{"unknown backend", func(c *Config) { c.Backend = "ftp" }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			var ae *apperr.AppError
			if !errors.As(err, &ae) || ae.Code != apperr.CodeConfig {
				t.Fatalf("got %v", err)
			}
		})
	}
}
