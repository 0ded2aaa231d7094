package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/shkaf-ai/pkg/organize"
)

// writeConfig пишет минимальный рабочий конфиг во временную папку.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()

	dir := t.TempDir()
	filesRoot := filepath.Join(dir, "files")
	require.NoError(t, os.MkdirAll(filesRoot, 0o755))

	content := fmt.Sprintf(`
models:
  default_chat: "chat"
  definitions:
    chat:
      provider: "ollama"
      model_name: "qwen2.5:14b"
      base_url: "http://localhost:11434/v1"

storage:
  local_root: %q
  ledger_path: %q

file_rules:
  - tag: "docs"
    patterns: ["*.txt", "*.pdf"]
    folder: "Documents"
%s`, filesRoot, filepath.Join(dir, "trash.db"), extra)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew(t *testing.T) {
	configPath := writeConfig(t, "")

	a, err := New(context.Background(), configPath)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"local"}, a.State().DriveNames())
	assert.NotNil(t, a.State().Executor)
	assert.NotNil(t, a.State().PlanStore, "планы должны переживать перезапуск")
	assert.Nil(t, a.State().Index, "индекс без embedding-модели не создается")

	names := a.Tools().Names()
	assert.Contains(t, names, "scan_files")
	assert.Contains(t, names, "apply_plan")
	assert.Contains(t, names, "ask_user_question")
	assert.NotContains(t, names, "describe_image", "vision модель не настроена")
}

func TestNew_MissingConfig(t *testing.T) {
	_, err := New(context.Background(), "/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestNew_DisabledTool(t *testing.T) {
	configPath := writeConfig(t, `
tools:
  read_file:
    enabled: false
`)

	a, err := New(context.Background(), configPath)
	require.NoError(t, err)
	defer a.Close()

	assert.NotContains(t, a.Tools().Names(), "read_file")
	assert.Contains(t, a.Tools().Names(), "list_files")
}

// Запись tools.<имя> с одним таймаутом не должна молча выключать инструмент.
func TestNew_ToolTimeoutDoesNotDisable(t *testing.T) {
	configPath := writeConfig(t, `
tools:
  read_file:
    timeout: 45s
  list_files:
    description: "Показывает файлы в папке."
`)

	a, err := New(context.Background(), configPath)
	require.NoError(t, err)
	defer a.Close()

	assert.Contains(t, a.Tools().Names(), "read_file")

	// Описание из конфига подменяет дефолтное
	tool, err := a.Tools().Get("list_files")
	require.NoError(t, err)
	assert.Equal(t, "Показывает файлы в папке.", tool.Definition().Description)
}

// План, построенный одним процессом агента, должен примениться в другом.
func TestNew_PlanSurvivesRestart(t *testing.T) {
	configPath := writeConfig(t, "")

	first, err := New(context.Background(), configPath)
	require.NoError(t, err)

	plan := organize.NewPlan("local")
	plan.Add(organize.Decision{Path: "report.txt", Action: organize.ActionMove, DestFolder: "Documents"})
	first.State().PutPlan(plan)
	first.Close()

	second, err := New(context.Background(), configPath)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.State().GetPlan(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, got.ID)
	require.Len(t, got.Decisions, 1)
	assert.Equal(t, "Documents", got.Decisions[0].DestFolder)
}

func TestNew_WithEmbeddingModel(t *testing.T) {
	dir := t.TempDir()
	filesRoot := filepath.Join(dir, "files")
	require.NoError(t, os.MkdirAll(filesRoot, 0o755))

	content := fmt.Sprintf(`
models:
  default_chat: "chat"
  default_embed: "embed"
  definitions:
    chat:
      provider: "ollama"
      model_name: "qwen2.5:14b"
      base_url: "http://localhost:11434/v1"
    embed:
      provider: "ollama"
      model_name: "nomic-embed-text"
      base_url: "http://localhost:11434/v1"

storage:
  local_root: %q
  ledger_path: %q

index:
  path: %q
`, filesRoot, filepath.Join(dir, "trash.db"), filepath.Join(dir, "index.db"))

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	a, err := New(context.Background(), configPath)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.State().Index)
	assert.Contains(t, a.Tools().Names(), "index_files")
	assert.Contains(t, a.Tools().Names(), "search_index")
}

func TestLoadSystemPrompt_Default(t *testing.T) {
	configPath := writeConfig(t, "")

	a, err := New(context.Background(), configPath)
	require.NoError(t, err)
	defer a.Close()

	prompt := a.loadSystemPrompt()
	assert.Contains(t, prompt, "AI-агент")
}

func TestLoadSystemPrompt_FromFile(t *testing.T) {
	dir := t.TempDir()
	promptsDir := filepath.Join(dir, "prompts")
	require.NoError(t, os.MkdirAll(promptsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(promptsDir, "agent_system.yaml"), []byte(`
config:
  model: "chat"
messages:
  - role: "system"
    content: "Ты аккуратный архивариус."
`), 0o644))

	configPath := writeConfig(t, fmt.Sprintf(`
app:
  prompts_dir: %q
`, promptsDir))

	a, err := New(context.Background(), configPath)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "Ты аккуратный архивариус.", a.loadSystemPrompt())
}
