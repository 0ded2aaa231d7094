// Инструменты управления планом действий (todo manager).
//
// Агент использует их для отслеживания многошаговых задач:
// "отсканировать -> найти дубликаты -> показать план -> применить".
package std

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ilkoid/shkaf-ai/pkg/todo"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
)

// --- Tool: plan_add_task ---

type PlanAddTaskTool struct {
	manager *todo.Manager
}

func NewPlanAddTaskTool(manager *todo.Manager) *PlanAddTaskTool {
	return &PlanAddTaskTool{manager: manager}
}

func (t *PlanAddTaskTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "plan_add_task",
		Description: "Добавляет задачу в план действий агента. Используй для разбивки сложной работы на шаги.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"description": map[string]interface{}{
					"type":        "string",
					"description": "Описание задачи для выполнения",
				},
			},
			"required": []string{"description"},
		},
	}
}

func (t *PlanAddTaskTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("ошибка парсинга аргументов: %w", err)
	}
	if args.Description == "" {
		return "", fmt.Errorf("описание задачи не может быть пустым")
	}

	id := t.manager.Add(args.Description)
	return fmt.Sprintf("✅ Задача добавлена в план (ID: %d): %s", id, args.Description), nil
}

// --- Tool: plan_mark_done ---

type PlanMarkDoneTool struct {
	manager *todo.Manager
}

func NewPlanMarkDoneTool(manager *todo.Manager) *PlanMarkDoneTool {
	return &PlanMarkDoneTool{manager: manager}
}

func (t *PlanMarkDoneTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "plan_mark_done",
		Description: "Отмечает задачу плана выполненной по ID.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"task_id": map[string]interface{}{
					"type":        "integer",
					"description": "ID задачи",
				},
			},
			"required": []string{"task_id"},
		},
	}
}

func (t *PlanMarkDoneTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		TaskID int `json:"task_id"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("ошибка парсинга аргументов: %w", err)
	}

	if err := t.manager.Complete(args.TaskID); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Задача %d отмечена выполненной", args.TaskID), nil
}

// --- Tool: plan_mark_failed ---

type PlanMarkFailedTool struct {
	manager *todo.Manager
}

func NewPlanMarkFailedTool(manager *todo.Manager) *PlanMarkFailedTool {
	return &PlanMarkFailedTool{manager: manager}
}

func (t *PlanMarkFailedTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "plan_mark_failed",
		Description: "Отмечает задачу плана проваленной с указанием причины.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"task_id": map[string]interface{}{
					"type":        "integer",
					"description": "ID задачи",
				},
				"reason": map[string]interface{}{
					"type":        "string",
					"description": "Причина провала",
				},
			},
			"required": []string{"task_id", "reason"},
		},
	}
}

func (t *PlanMarkFailedTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		TaskID int    `json:"task_id"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("ошибка парсинга аргументов: %w", err)
	}

	if err := t.manager.Fail(args.TaskID, args.Reason); err != nil {
		return "", err
	}
	return fmt.Sprintf("❌ Задача %d провалена: %s", args.TaskID, args.Reason), nil
}

// --- Tool: plan_clear ---

type PlanClearTool struct {
	manager *todo.Manager
}

func NewPlanClearTool(manager *todo.Manager) *PlanClearTool {
	return &PlanClearTool{manager: manager}
}

func (t *PlanClearTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "plan_clear",
		Description: "Очищает план действий полностью. Используй при переходе к новой задаче.",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
			"required":   []string{},
		},
	}
}

func (t *PlanClearTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	t.manager.Clear()
	return "🗑 План очищен", nil
}
