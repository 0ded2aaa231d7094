package std

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ilkoid/shkaf-ai/pkg/drive"
	"github.com/ilkoid/shkaf-ai/pkg/state"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
)

// RetagFileTool — ручная переклассификация файла пользователем.
//
// Файл переезжает под новый тег в рабочей памяти и получает статус
// USER_MODIFIED: автоклассификация и планы раскладки его больше не трогают.
type RetagFileTool struct {
	state *state.CoreState
}

func NewRetagFileTool(st *state.CoreState) *RetagFileTool {
	return &RetagFileTool{state: st}
}

func (t *RetagFileTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "retag_file",
		Description: "Меняет тег классификации файла по указанию пользователя. Такой файл закрепляется за пользователем: автоматическая раскладка его больше не перемещает. Требует предварительного scan_files.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Путь к файлу из рабочей памяти.",
				},
				"tag": map[string]interface{}{
					"type":        "string",
					"description": "Новый тег (например 'docs', 'photos', 'archive').",
				},
			},
			"required": []string{"path", "tag"},
		},
	}
}

func (t *RetagFileTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Path string `json:"path"`
		Tag  string `json:"tag"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Path == "" || args.Tag == "" {
		return "", fmt.Errorf("path and tag are required")
	}

	if err := t.state.RetagFile(args.Path, args.Tag); err != nil {
		return "", err
	}

	result := map[string]string{
		"path":   args.Path,
		"tag":    args.Tag,
		"status": string(drive.StatusUser),
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
