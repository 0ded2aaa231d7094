/* Инструменты планирования и применения изменений.

Жизненный цикл порядка:

propose_plan: строит план раскладки (по правилам или по смыслу через LLM).
apply_plan:   применяет план. Mutating план требует подтверждения пользователя.
restore_file: достает файл из корзины по ID записи.
list_trash:   показывает содержимое корзины.

План хранится в CoreState.Plans. Диск мутирует только organize.Executor.
*/
package std

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ilkoid/shkaf-ai/pkg/classifier"
	"github.com/ilkoid/shkaf-ai/pkg/drive"
	"github.com/ilkoid/shkaf-ai/pkg/events"
	"github.com/ilkoid/shkaf-ai/pkg/models"
	"github.com/ilkoid/shkaf-ai/pkg/organize"
	"github.com/ilkoid/shkaf-ai/pkg/questions"
	"github.com/ilkoid/shkaf-ai/pkg/semindex"
	"github.com/ilkoid/shkaf-ai/pkg/state"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// --- Tool: propose_plan ---

type ProposePlanTool struct {
	state         *state.CoreState
	engine        *classifier.Engine
	modelRegistry *models.Registry
	chatModel     string
}

func NewProposePlanTool(st *state.CoreState, engine *classifier.Engine, registry *models.Registry, chatModel string) *ProposePlanTool {
	return &ProposePlanTool{
		state:         st,
		engine:        engine,
		modelRegistry: registry,
		chatModel:     chatModel,
	}
}

func (t *ProposePlanTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "propose_plan",
		Description: "Строит план раскладки отсканированных файлов по папкам. Стратегия 'rules' использует правила из конфига, 'semantic' просит LLM предложить структуру по смыслу. План нужно показать пользователю и применить через apply_plan.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"strategy": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"rules", "semantic"},
					"description": "Способ построения плана (дефолт rules).",
				},
			},
			"required": []string{},
		},
	}
}

func (t *ProposePlanTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Strategy string `json:"strategy"`
	}
	if argsJSON != "" {
		_ = json.Unmarshal([]byte(argsJSON), &args)
	}

	byTag := t.state.GetFiles()
	if len(byTag) == 0 {
		return "", fmt.Errorf("рабочая память пуста: сначала вызови scan_files")
	}

	var plan *organize.Plan
	switch args.Strategy {
	case "", "rules":
		plan = organize.FromRules("", byTag, t.engine.FolderFor)

	case "semantic":
		provider, _, _, err := t.modelRegistry.GetWithFallback(t.chatModel, t.chatModel)
		if err != nil {
			return "", fmt.Errorf("chat model unavailable: %w", err)
		}
		layout, err := semindex.SuggestLayout(ctx, provider, t.state.AllFiles())
		if err != nil {
			return "", fmt.Errorf("layout suggestion failed: %w", err)
		}
		plan = organize.FromLayout("", layout, t.state.AllFiles())

		// Провенанс: перемещения в этом плане придумала модель
		for _, d := range plan.Decisions {
			if d.Action == organize.ActionMove {
				t.state.SetFileStatus(d.Path, drive.StatusAI)
			}
		}

	default:
		return "", fmt.Errorf("unknown strategy: %s", args.Strategy)
	}

	if err := plan.Validate(); err != nil {
		return "", fmt.Errorf("построенный план невалиден: %w", err)
	}

	t.state.PutPlan(plan)

	summary := plan.Summarize()
	t.state.Notify(ctx, events.EventPlanReady, events.PlanReadyData{
		PlanID:      plan.ID,
		Description: plan.Describe(),
		Moves:       summary.Moves,
		Deletes:     summary.Deletes,
		Mutating:    plan.Mutating(),
	})
	result := map[string]interface{}{
		"plan_id":     plan.ID,
		"moves":       summary.Moves,
		"deletes":     summary.Deletes,
		"keeps":       summary.Keeps,
		"description": plan.Describe(),
		"message":     "План готов. Покажи его пользователю и примени через apply_plan после согласия.",
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// --- Tool: apply_plan ---

// ApplyPlanTool применяет сохраненный план изменений.
//
// Mutating план (перемещения или удаления) требует подтверждения:
// инструмент создает вопрос в QuestionManager и блокируется до ответа
// пользователя. dry_run пропускает подтверждение и ничего не меняет.
type ApplyPlanTool struct {
	state *state.CoreState
}

func NewApplyPlanTool(st *state.CoreState) *ApplyPlanTool {
	return &ApplyPlanTool{state: st}
}

func (t *ApplyPlanTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "apply_plan",
		Description: "Применяет план изменений по plan_id. Перемещения и удаления выполняются ТОЛЬКО после подтверждения пользователя. Удаление мягкое - в корзину. dry_run=true показывает что будет сделано без изменений.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"plan_id": map[string]interface{}{
					"type":        "string",
					"description": "ID плана из propose_plan или find_duplicates. Пусто = последний план.",
				},
				"dry_run": map[string]interface{}{
					"type":        "boolean",
					"description": "true = только показать действия, ничего не менять.",
				},
			},
			"required": []string{},
		},
	}
}

func (t *ApplyPlanTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		PlanID string `json:"plan_id"`
		DryRun bool   `json:"dry_run"`
	}
	if argsJSON != "" {
		_ = json.Unmarshal([]byte(argsJSON), &args)
	}

	var plan *organize.Plan
	if args.PlanID != "" {
		var err error
		plan, err = t.state.GetPlan(args.PlanID)
		if err != nil {
			return "", err
		}
	} else {
		plan = t.state.LatestPlan()
		if plan == nil {
			return "", fmt.Errorf("нет сохраненных планов: сначала вызови propose_plan")
		}
	}

	if t.state.Executor == nil {
		return "", fmt.Errorf("executor не настроен")
	}

	// Mutating план без dry_run требует явного согласия пользователя
	if plan.Mutating() && !args.DryRun {
		confirmed, err := t.confirmWithUser(ctx, plan)
		if err != nil {
			return "", err
		}
		if !confirmed {
			return `{"applied": 0, "message": "Пользователь отклонил план. Файлы не тронуты."}`, nil
		}
	}

	result, err := t.state.Executor.Apply(ctx, plan, args.DryRun)
	if err != nil {
		return "", fmt.Errorf("apply error: %w", err)
	}

	utils.Info("plan applied",
		"plan_id", plan.ID,
		"dry_run", args.DryRun,
		"applied", result.Applied,
		"failed", result.Failed)

	if !args.DryRun {
		t.state.Notify(ctx, events.EventApplyResult, events.ApplyResultData{
			PlanID:  plan.ID,
			Applied: result.Applied,
			Skipped: result.Skipped,
			Failed:  result.Failed,
		})
	}

	response := map[string]interface{}{
		"plan_id": plan.ID,
		"dry_run": args.DryRun,
		"applied": result.Applied,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	}
	if len(result.Trashed) > 0 {
		trashed := make([]map[string]string, 0, len(result.Trashed))
		for _, rec := range result.Trashed {
			trashed = append(trashed, map[string]string{
				"record_id": rec.ID,
				"path":      rec.OriginalPath,
			})
		}
		response["trashed"] = trashed
		response["message"] = "Удаленные файлы в корзине, восстановление через restore_file по record_id."
	}

	data, err := json.Marshal(response)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// confirmWithUser блокируется до ответа пользователя на вопрос о применении плана.
func (t *ApplyPlanTool) confirmWithUser(ctx context.Context, plan *organize.Plan) (bool, error) {
	if t.state.Questions == nil {
		return false, fmt.Errorf("question manager не настроен: невозможно запросить подтверждение")
	}

	summary := plan.Summarize()
	question := fmt.Sprintf("Применить план? Перемещений: %d, удалений: %d.", summary.Moves, summary.Deletes)

	questionID, err := t.state.Questions.CreateQuestion(question, []questions.QuestionOption{
		{Label: "Применить", Description: "Выполнить все действия плана"},
		{Label: "Отменить", Description: "Ничего не менять"},
	})
	if err != nil {
		return false, fmt.Errorf("ошибка создания вопроса: %w", err)
	}

	result, err := t.state.Questions.WaitForAnswer(ctx, questionID)
	if err != nil {
		return false, fmt.Errorf("ошибка ожидания ответа: %w", err)
	}
	if !result.Answered() {
		return false, nil
	}
	return result.Index == 0, nil
}

// --- Tool: restore_file ---

type RestoreFileTool struct {
	state *state.CoreState
}

func NewRestoreFileTool(st *state.CoreState) *RestoreFileTool {
	return &RestoreFileTool{state: st}
}

func (t *RestoreFileTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "restore_file",
		Description: "Восстанавливает файл из корзины на исходное место по ID записи (из list_trash или результата apply_plan).",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"record_id": map[string]interface{}{
					"type":        "string",
					"description": "ID записи корзины.",
				},
			},
			"required": []string{"record_id"},
		},
	}
}

func (t *RestoreFileTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		RecordID string `json:"record_id"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.RecordID == "" {
		return "", fmt.Errorf("record_id is required")
	}

	if t.state.Executor == nil {
		return "", fmt.Errorf("executor не настроен")
	}

	if err := t.state.Executor.Restore(ctx, args.RecordID); err != nil {
		return "", fmt.Errorf("restore error: %w", err)
	}

	return fmt.Sprintf(`{"restored": "%s"}`, args.RecordID), nil
}

// --- Tool: list_trash ---

type ListTrashTool struct {
	ledger *organize.TrashLedger
}

func NewListTrashTool(ledger *organize.TrashLedger) *ListTrashTool {
	return &ListTrashTool{ledger: ledger}
}

func (t *ListTrashTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "list_trash",
		Description: "Показывает файлы в корзине: ID записи, исходный путь, дату удаления.",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
			"required":   []string{},
		},
	}
}

func (t *ListTrashTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	if t.ledger == nil {
		return "", fmt.Errorf("корзина не настроена (hard_delete режим)")
	}

	records, err := t.ledger.ListActive(ctx)
	if err != nil {
		return "", fmt.Errorf("trash list error: %w", err)
	}

	if len(records) == 0 {
		return `{"records": [], "message": "Корзина пуста."}`, nil
	}

	type simpleRecord struct {
		RecordID  string `json:"record_id"`
		Path      string `json:"path"`
		DeletedAt string `json:"deleted_at"`
	}

	simple := make([]simpleRecord, 0, len(records))
	for _, rec := range records {
		simple = append(simple, simpleRecord{
			RecordID:  rec.ID,
			Path:      rec.OriginalPath,
			DeletedAt: rec.DeletedAt.Format("2006-01-02 15:04"),
		})
	}

	data, err := json.Marshal(map[string]interface{}{"records": simple})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
