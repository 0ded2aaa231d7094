package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig сохраняет YAML во временный файл и возвращает путь.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `
models:
  default_chat: "llama3"
  definitions:
    llama3:
      provider: "ollama"
      model_name: "llama3.2:3b"
      base_url: "http://localhost:11434/v1"
      temperature: 0.2
      timeout: 60s
storage:
  local_root: "/tmp/files"
  trash_dir: ".shkaf-trash"
file_rules:
  - tag: "docs"
    patterns: ["*.pdf", "*.docx"]
    folder: "Documents"
`

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3", cfg.Models.DefaultChat)
	def, ok := cfg.GetChatModel("")
	require.True(t, ok)
	assert.Equal(t, "llama3.2:3b", def.ModelName)
	assert.Equal(t, "http://localhost:11434/v1", def.BaseURL)

	assert.Equal(t, "/tmp/files", cfg.Storage.LocalRoot)
	assert.False(t, cfg.Storage.S3.Enabled())
	require.Len(t, cfg.FileRules, 1)
	assert.Equal(t, "Documents", cfg.FileRules[0].Folder)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_SHKAF_ROOT", "/data/inbox")

	path := writeConfig(t, `
storage:
  local_root: "${TEST_SHKAF_ROOT}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/inbox", cfg.Storage.LocalRoot)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_NoStorage(t *testing.T) {
	path := writeConfig(t, `
models:
  definitions: {}
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage")
}

func TestLoad_UnknownDefaultModel(t *testing.T) {
	path := writeConfig(t, `
models:
  default_chat: "ghost"
  definitions: {}
storage:
  local_root: "/tmp"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestToolConfig_IsEnabled(t *testing.T) {
	// Запись только с таймаутом не должна выключать инструмент
	path := writeConfig(t, `
storage:
  local_root: "/tmp"
tools:
  read_file:
    timeout: 60s
  delete_path:
    enabled: false
  scan_files:
    enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Tools["read_file"].IsEnabled())
	assert.Equal(t, 60*time.Second, cfg.Tools["read_file"].Timeout)
	assert.False(t, cfg.Tools["delete_path"].IsEnabled())
	assert.True(t, cfg.Tools["scan_files"].IsEnabled())

	// Инструмент без записи в конфиге включен
	assert.True(t, cfg.Tools["list_files"].IsEnabled())
}

func TestScanConfig_GetDefaults(t *testing.T) {
	cfg := ScanConfig{}.GetDefaults()
	assert.Equal(t, int64(4*1024*1024), cfg.MaxFileBytes)
	assert.Equal(t, 4, cfg.Workers)

	// Явные значения не перетираются
	custom := ScanConfig{Workers: 16}.GetDefaults()
	assert.Equal(t, 16, custom.Workers)
}

func TestOllamaConfig_GetDefaults(t *testing.T) {
	cfg := OllamaConfig{}
	defaults := cfg.GetDefaults()
	assert.Equal(t, "http://localhost:11434", defaults.BaseURL)
	assert.Equal(t, 60, defaults.RateLimit)
	assert.Equal(t, 3, defaults.RetryAttempts)
}

func TestIndexConfig_GetDefaults(t *testing.T) {
	cfg := IndexConfig{}.GetDefaults()
	assert.Equal(t, 800, cfg.ChunkSize)
	assert.Equal(t, 80, cfg.ChunkOverlap)
	assert.Equal(t, 8, cfg.TopK)
}

func TestMaxIterations(t *testing.T) {
	cfg := &AppConfig{}
	assert.Equal(t, 10, cfg.MaxIterations())
	cfg.App.MaxIterations = 3
	assert.Equal(t, 3, cfg.MaxIterations())
}
