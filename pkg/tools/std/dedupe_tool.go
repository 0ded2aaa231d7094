package std

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ilkoid/shkaf-ai/pkg/dedupe"
	"github.com/ilkoid/shkaf-ai/pkg/events"
	"github.com/ilkoid/shkaf-ai/pkg/organize"
	"github.com/ilkoid/shkaf-ai/pkg/state"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// FindDuplicatesTool — инструмент поиска дубликатов по содержимому.
//
// Работает с рабочей памятью (нужен предварительный scan_files).
// Сразу строит план удаления лишних копий и сохраняет его в состоянии:
// применить план можно через apply_plan после подтверждения пользователя.
type FindDuplicatesTool struct {
	state   *state.CoreState
	workers int
}

func NewFindDuplicatesTool(st *state.CoreState, workers int) *FindDuplicatesTool {
	return &FindDuplicatesTool{state: st, workers: workers}
}

func (t *FindDuplicatesTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "find_duplicates",
		Description: "Ищет дубликаты файлов по содержимому (SHA-256) среди отсканированных файлов и готовит план удаления лишних копий. Требует предварительного scan_files. Ничего не удаляет сам.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"keep_policy": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"oldest", "newest", "shortest_path"},
					"description": "Какую копию оставить: oldest (дефолт), newest или shortest_path.",
				},
				"drive": driveParam(),
			},
			"required": []string{},
		},
	}
}

func (t *FindDuplicatesTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		KeepPolicy string `json:"keep_policy"`
		Drive      string `json:"drive"`
	}
	if argsJSON != "" {
		_ = json.Unmarshal([]byte(argsJSON), &args)
	}

	files := t.state.AllFiles()
	if len(files) == 0 {
		return "", fmt.Errorf("рабочая память пуста: сначала вызови scan_files")
	}

	d, err := t.state.GetDrive(args.Drive)
	if err != nil {
		return "", err
	}

	finder := dedupe.NewFinder(d, t.workers, dedupe.KeepPolicy(args.KeepPolicy))
	result, err := finder.Find(ctx, files)
	if err != nil {
		return "", fmt.Errorf("dedupe error: %w", err)
	}

	if len(result.Groups) == 0 {
		return `{"groups": 0, "message": "Дубликатов не найдено."}`, nil
	}

	// Готовим план удаления, применение - только через apply_plan
	plan := organize.FromDuplicates("", result)
	t.state.PutPlan(plan)

	planSummary := plan.Summarize()
	t.state.Notify(ctx, events.EventPlanReady, events.PlanReadyData{
		PlanID:      plan.ID,
		Description: plan.Describe(),
		Moves:       planSummary.Moves,
		Deletes:     planSummary.Deletes,
		Mutating:    plan.Mutating(),
	})

	type groupInfo struct {
		Keep   string   `json:"keep"`
		Extra  []string `json:"extra"`
		Wasted string   `json:"wasted"`
	}

	groups := make([]groupInfo, 0, len(result.Groups))
	for _, g := range result.Groups {
		extra := make([]string, 0, len(g.Extra))
		for _, f := range g.Extra {
			extra = append(extra, f.Path)
		}
		groups = append(groups, groupInfo{
			Keep:   g.Keep.Path,
			Extra:  extra,
			Wasted: utils.FormatSize(g.WastedBytes()),
		})
	}

	summary := map[string]interface{}{
		"plan_id":      plan.ID,
		"groups":       groups,
		"total_wasted": utils.FormatSize(result.TotalWasted),
		"message":      "План удаления дубликатов готов. Для применения вызови apply_plan с этим plan_id.",
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
