package std

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ilkoid/shkaf-ai/pkg/classifier"
	"github.com/ilkoid/shkaf-ai/pkg/drive"
	"github.com/ilkoid/shkaf-ai/pkg/state"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
)

// DescribeImageTool — инструмент анализа изображений vision-моделью.
//
// Working Memory паттерн: описание сохраняется в FileMeta.Description
// и дальше попадает в контекст LLM без повторной отправки картинки.
type DescribeImageTool struct {
	state     *state.CoreState
	describer *classifier.VisionDescriber
}

func NewDescribeImageTool(st *state.CoreState, describer *classifier.VisionDescriber) *DescribeImageTool {
	return &DescribeImageTool{state: st, describer: describer}
}

func (t *DescribeImageTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "describe_image",
		Description: "Анализирует изображение vision-моделью и возвращает текстовое описание содержимого. Описание запоминается и помогает раскладывать фото по смыслу.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Путь к изображению (JPG, PNG).",
				},
				"drive": driveParam(),
			},
			"required": []string{"path"},
		},
	}
}

func (t *DescribeImageTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Path  string `json:"path"`
		Drive string `json:"drive"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	if !classifier.SupportedImage(args.Path) {
		return "", fmt.Errorf("file '%s' is not a supported image (jpg, jpeg, png)", args.Path)
	}

	if t.describer == nil {
		return "", fmt.Errorf("vision модель не настроена (models.default_vision в config.yaml)")
	}

	d, err := t.state.GetDrive(args.Drive)
	if err != nil {
		return "", err
	}

	imageData, err := drive.ReadAll(ctx, d, args.Path)
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}

	description, err := t.describer.Describe(ctx, imageData)
	if err != nil {
		return "", fmt.Errorf("vision error: %w", err)
	}

	// Сохраняем в рабочую память, если файл там есть
	t.rememberDescription(args.Path, description)

	return description, nil
}

// rememberDescription находит файл в рабочей памяти по пути и сохраняет описание.
func (t *DescribeImageTool) rememberDescription(path, description string) {
	for tag, files := range t.state.GetFiles() {
		for _, f := range files {
			if f.Path == path {
				t.state.UpdateFileAnalysis(tag, f.Filename, description)
				return
			}
		}
	}
}
