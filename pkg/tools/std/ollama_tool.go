package std

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/ollama"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// CheckModelsTool — health-check сервера Ollama и установленных моделей.
//
// Агент вызывает его когда LLM запросы начинают падать: "модель не скачана"
// куда полезнее для пользователя, чем сырой таймаут.
type CheckModelsTool struct {
	client *ollama.Client
	cfg    *config.AppConfig
}

func NewCheckModelsTool(client *ollama.Client, cfg *config.AppConfig) *CheckModelsTool {
	return &CheckModelsTool{client: client, cfg: cfg}
}

func (t *CheckModelsTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "check_models",
		Description: "Проверяет доступность сервера Ollama и наличие настроенных моделей. Используй при ошибках LLM для диагностики.",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}
}

func (t *CheckModelsTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	if t.client == nil {
		return "", fmt.Errorf("ollama client is not configured")
	}

	version, err := t.client.Ping(ctx)
	if err != nil {
		return "", err
	}

	installed, err := t.client.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("список моделей недоступен: %w", err)
	}

	type modelStatus struct {
		Role      string `json:"role"`
		Name      string `json:"name"`
		Installed bool   `json:"installed"`
	}

	required := map[string]string{
		"chat":      t.cfg.Models.DefaultChat,
		"vision":    t.cfg.Models.DefaultVision,
		"embedding": t.cfg.Models.DefaultEmbed,
	}

	var statuses []modelStatus
	for _, role := range []string{"chat", "vision", "embedding"} {
		alias := required[role]
		if alias == "" {
			continue
		}
		modelDef, ok := t.cfg.Models.Definitions[alias]
		if !ok {
			continue
		}
		has, err := t.client.HasModel(ctx, modelDef.ModelName)
		if err != nil {
			utils.Warn("check_models: HasModel failed", "error", err)
			continue
		}
		statuses = append(statuses, modelStatus{Role: role, Name: modelDef.ModelName, Installed: has})
	}

	names := make([]string, 0, len(installed))
	for _, m := range installed {
		names = append(names, fmt.Sprintf("%s (%s)", m.Name, utils.FormatSize(m.Size)))
	}

	out, err := json.Marshal(map[string]interface{}{
		"server_version":   version,
		"installed_models": names,
		"required_models":  statuses,
	})
	if err != nil {
		return "", fmt.Errorf("marshal error: %w", err)
	}
	return string(out), nil
}
