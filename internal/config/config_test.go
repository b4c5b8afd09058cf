package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ModeStdio, cfg.Mode)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, "mcp-pdf-overlay", cfg.ServerName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, 1.0, cfg.Scale)
	assert.Equal(t, 0.25, cfg.MinScale)
	assert.Equal(t, 5.0, cfg.MaxScale)
	assert.Equal(t, ScaleModeRescale, cfg.ScaleMode)
	assert.Equal(t, 2.0, cfg.LineTolerance)
	assert.Equal(t, 0.3, cfg.LineHeightRatio)
	assert.Equal(t, 16, cfg.MaxSessions)
	assert.False(t, cfg.Render)
	assert.Equal(t, 30*time.Second, cfg.RenderTimeout)

	currentDir, _ := os.Getwd()
	assert.Equal(t, currentDir, cfg.PDFDirectory)
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	base := func(mutate func(c *Config)) *Config {
		c := DefaultConfig()
		c.PDFDirectory = dir
		mutate(c)
		return c
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{"valid stdio", base(func(c *Config) {}), ""},
		{"valid server", base(func(c *Config) { c.Mode = ModeServer; c.Port = 9000 }), ""},
		{"valid reparse with rendering", base(func(c *Config) {
			c.ScaleMode = ScaleModeReparse
			c.Render = true
		}), ""},
		{"invalid mode", base(func(c *Config) { c.Mode = "grpc" }), "mode must be"},
		{"port too low in server mode", base(func(c *Config) { c.Mode = ModeServer; c.Port = 0 }), "port must be"},
		{"port too high in server mode", base(func(c *Config) { c.Mode = ModeServer; c.Port = 70000 }), "port must be"},
		{"port ignored in stdio mode", base(func(c *Config) { c.Port = 0 }), ""},
		{"empty directory", base(func(c *Config) { c.PDFDirectory = "" }), "cannot be empty"},
		{"zero max file size", base(func(c *Config) { c.MaxFileSize = 0 }), "file size"},
		{"zero min scale", base(func(c *Config) { c.MinScale = 0 }), "scale bounds"},
		{"inverted bounds", base(func(c *Config) { c.MinScale = 3; c.MaxScale = 2 }), "exceeds maximum"},
		{"scale above range", base(func(c *Config) { c.Scale = 6 }), "must be within"},
		{"NaN scale", base(func(c *Config) { c.Scale = math.NaN() }), "must be within"},
		{"unknown scale mode", base(func(c *Config) { c.ScaleMode = "zoom" }), "scale mode"},
		{"zero line tolerance", base(func(c *Config) { c.LineTolerance = 0 }), "line tolerance"},
		{"infinite height ratio", base(func(c *Config) { c.LineHeightRatio = math.Inf(1) }), "line height ratio"},
		{"no sessions", base(func(c *Config) { c.MaxSessions = 0 }), "sessions"},
		{"render without timeout", base(func(c *Config) { c.Render = true; c.RenderTimeout = 0 }), "render timeout"},
		{"timeout ignored without rendering", base(func(c *Config) { c.RenderTimeout = 0 }), ""},
		{"invalid log level", base(func(c *Config) { c.LogLevel = "trace" }), "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidateDirectoryCreation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "pdfs")
	cfg := DefaultConfig()
	cfg.PDFDirectory = dir

	require.NoError(t, cfg.Validate())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfigValidateDirectoryIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	cfg := DefaultConfig()
	cfg.PDFDirectory = filepath.Join(file, "child")

	assert.Error(t, cfg.Validate())
}

func TestConfigAccessors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "localhost"
	cfg.Port = 3000

	assert.Equal(t, "localhost:3000", cfg.Address())
	assert.True(t, cfg.IsStdioMode())
	assert.False(t, cfg.IsServerMode())
	assert.False(t, cfg.IsDebug())

	cfg.Mode = ModeServer
	cfg.LogLevel = "debug"
	assert.True(t, cfg.IsServerMode())
	assert.False(t, cfg.IsStdioMode())
	assert.True(t, cfg.IsDebug())
}

func TestConfigString(t *testing.T) {
	cfg := &Config{
		Mode:         ModeServer,
		Host:         "localhost",
		Port:         8080,
		PDFDirectory: "/tmp/pdfs",
		LogLevel:     "debug",
		MaxFileSize:  1024,
		Scale:        1.5,
		MinScale:     0.5,
		MaxScale:     4,
		ScaleMode:    ScaleModeReparse,
		MaxSessions:  8,
		Render:       true,
	}

	want := "Config{Mode: server, Host: localhost, Port: 8080, PDFDirectory: /tmp/pdfs, LogLevel: debug, " +
		"MaxFileSize: 1024, Scale: 1.5 [0.5-4], ScaleMode: reparse, MaxSessions: 8, Render: true}"
	assert.Equal(t, want, cfg.String())
}
