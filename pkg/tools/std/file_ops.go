/* Точечные операции с файлами.

move_file и delete_path не трогают диск напрямую: они оборачивают
действие в план из одного решения и прогоняют его через Executor,
так что подтверждение, корзина и журнал работают одинаково
для точечных операций и для больших планов.
*/
package std

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ilkoid/shkaf-ai/pkg/organize"
	"github.com/ilkoid/shkaf-ai/pkg/questions"
	"github.com/ilkoid/shkaf-ai/pkg/state"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
)

// --- Tool: move_file ---

type MoveFileTool struct {
	state *state.CoreState
}

func NewMoveFileTool(st *state.CoreState) *MoveFileTool {
	return &MoveFileTool{state: st}
}

func (t *MoveFileTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "move_file",
		Description: "Перемещает один файл в указанную папку. Требует подтверждения пользователя.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Путь к файлу.",
				},
				"dest_folder": map[string]interface{}{
					"type":        "string",
					"description": "Целевая папка (будет создана при необходимости).",
				},
				"reason": map[string]interface{}{
					"type":        "string",
					"description": "Зачем перемещаем (видит пользователь).",
				},
			},
			"required": []string{"path", "dest_folder"},
		},
	}
}

func (t *MoveFileTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Path       string `json:"path"`
		DestFolder string `json:"dest_folder"`
		Reason     string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Path == "" || args.DestFolder == "" {
		return "", fmt.Errorf("path and dest_folder are required")
	}

	plan := organize.NewPlan("")
	plan.Add(organize.Decision{
		Path:       args.Path,
		Action:     organize.ActionMove,
		DestFolder: args.DestFolder,
		Reason:     args.Reason,
	})

	return applySingleDecision(ctx, t.state, plan,
		fmt.Sprintf("Переместить '%s' в '%s'?", args.Path, args.DestFolder))
}

// --- Tool: create_folder ---

type CreateFolderTool struct {
	state *state.CoreState
}

func NewCreateFolderTool(st *state.CoreState) *CreateFolderTool {
	return &CreateFolderTool{state: st}
}

func (t *CreateFolderTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "create_folder",
		Description: "Создает папку (включая промежуточные). Безопасная операция, подтверждение не нужно.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Путь создаваемой папки.",
				},
				"drive": driveParam(),
			},
			"required": []string{"path"},
		},
	}
}

func (t *CreateFolderTool) Execute(ctx context.Context, argsJSON string) (string, error) {
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

	d, err := t.state.GetDrive(args.Drive)
	if err != nil {
		return "", err
	}

	if err := d.Mkdir(ctx, args.Path); err != nil {
		return "", fmt.Errorf("mkdir error: %w", err)
	}
	return fmt.Sprintf(`{"created": "%s"}`, args.Path), nil
}

// --- Tool: delete_path ---

type DeletePathTool struct {
	state *state.CoreState
}

func NewDeletePathTool(st *state.CoreState) *DeletePathTool {
	return &DeletePathTool{state: st}
}

func (t *DeletePathTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "delete_path",
		Description: "Удаляет один файл (мягко, в корзину). Требует подтверждения пользователя. Восстановление через restore_file.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Путь к файлу.",
				},
				"reason": map[string]interface{}{
					"type":        "string",
					"description": "Зачем удаляем (видит пользователь).",
				},
			},
			"required": []string{"path"},
		},
	}
}

func (t *DeletePathTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Path   string `json:"path"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	plan := organize.NewPlan("")
	plan.Add(organize.Decision{
		Path:   args.Path,
		Action: organize.ActionDelete,
		Reason: args.Reason,
	})

	return applySingleDecision(ctx, t.state, plan,
		fmt.Sprintf("Удалить '%s' (в корзину)?", args.Path))
}

// applySingleDecision спрашивает подтверждение и применяет план из одного решения.
func applySingleDecision(ctx context.Context, st *state.CoreState, plan *organize.Plan, question string) (string, error) {
	if st.Executor == nil {
		return "", fmt.Errorf("executor не настроен")
	}
	if st.Questions == nil {
		return "", fmt.Errorf("question manager не настроен: невозможно запросить подтверждение")
	}

	questionID, err := st.Questions.CreateQuestion(question, []questions.QuestionOption{
		{Label: "Да", Description: "Выполнить"},
		{Label: "Нет", Description: "Отменить"},
	})
	if err != nil {
		return "", fmt.Errorf("ошибка создания вопроса: %w", err)
	}

	answer, err := st.Questions.WaitForAnswer(ctx, questionID)
	if err != nil {
		return "", fmt.Errorf("ошибка ожидания ответа: %w", err)
	}
	if !answer.Answered() || answer.Index != 0 {
		return `{"applied": 0, "message": "Пользователь отменил операцию."}`, nil
	}

	result, err := st.Executor.Apply(ctx, plan, false)
	if err != nil {
		return "", fmt.Errorf("apply error: %w", err)
	}

	response := map[string]interface{}{
		"applied": result.Applied,
		"failed":  result.Failed,
	}
	if len(result.Trashed) > 0 {
		response["record_id"] = result.Trashed[0].ID
	}
	if result.Failed > 0 {
		for _, d := range plan.Decisions {
			if d.Error != "" {
				response["error"] = d.Error
				break
			}
		}
	}

	data, err := json.Marshal(response)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
