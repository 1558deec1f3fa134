package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/doc-gateway-service/internal/config"
)

func TestSafeLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.SafeLoad(filepath.Join(t.TempDir(), "project.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "pdfFile", cfg.Protect.FileField)
	assert.Equal(t, "password", cfg.Protect.SecretField)
	assert.Equal(t, "defaultPassword", cfg.Protect.DefaultSecret)
	assert.InDelta(t, 595.28, cfg.Render.PageWidth, 0.001)
	assert.InDelta(t, 841.89, cfg.Render.PageHeight, 0.001)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, time.Duration(0), cfg.ResponseHeaderTimeout())
}

func TestLoad_FileValuesWin(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "project.toml")
	content := `
[server]
addr = ":9090"
max_upload_mb = 4
allowed_origins = ["http://localhost:3000"]

[render]
margin = 20

[protect]
downstream_url = "http://protector:5000/upload"
default_secret = "s3cret"
response_header_timeout_sec = 15

[nats]
url = "nats://localhost:4222"

[paths]
base_logs_dir = "/var/log/book-expert"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, int64(4<<20), cfg.MaxUploadBytes())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.InDelta(t, 20.0, cfg.Render.Margin, 0.001)
	assert.InDelta(t, 12.0, cfg.Render.FontSize, 0.001)
	assert.Equal(t, "http://protector:5000/upload", cfg.Protect.DownstreamURL)
	assert.Equal(t, "s3cret", cfg.Protect.DefaultSecret)
	assert.Equal(t, 15*time.Second, cfg.ResponseHeaderTimeout())
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "DOCUMENTS", cfg.NATS.StreamName)
	assert.Equal(t, filepath.Join("/var/log/book-expert", "gateway"), cfg.LogDir("/root", "gateway"))
}

func TestSafeLoad_MalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "project.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\naddr="), 0o600))

	_, err := config.SafeLoad(path)
	require.Error(t, err)
}

func TestLogDir_DefaultsUnderProjectRoot(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	assert.Equal(t, filepath.Join("/root", "logs", "docx2pdf"), cfg.LogDir("/root", "docx2pdf"))
}

func TestSetupLogger(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "logs")
	log, err := config.SetupLogger(dir)
	require.NoError(t, err)

	log.Info("hello")
	require.NoError(t, log.Close())

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Len(t, entries, 1)
}
