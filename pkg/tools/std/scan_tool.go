package std

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ilkoid/shkaf-ai/pkg/classifier"
	"github.com/ilkoid/shkaf-ai/pkg/events"
	"github.com/ilkoid/shkaf-ai/pkg/state"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// ScanFilesTool — инструмент сканирования диска.
//
// Рекурсивно обходит папку, классифицирует файлы по правилам из конфига
// и кладет результат в рабочую память агента (CoreState.Files).
// Последующие инструменты (дедупликация, планирование) работают
// с этой рабочей памятью, а не сканируют диск заново.
type ScanFilesTool struct {
	state  *state.CoreState
	engine *classifier.Engine
}

func NewScanFilesTool(st *state.CoreState, engine *classifier.Engine) *ScanFilesTool {
	return &ScanFilesTool{state: st, engine: engine}
}

func (t *ScanFilesTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "scan_files",
		Description: "Сканирует папку рекурсивно и классифицирует файлы по правилам (документы, фото, архивы). Результат сохраняется в рабочей памяти. Вызывай это ПЕРВЫМ перед поиском дубликатов или построением плана.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Папка для сканирования (пусто = корень).",
				},
				"drive": driveParam(),
			},
			"required": []string{},
		},
	}
}

func (t *ScanFilesTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Path  string `json:"path"`
		Drive string `json:"drive"`
	}
	if argsJSON != "" {
		_ = json.Unmarshal([]byte(argsJSON), &args)
	}

	d, err := t.state.GetDrive(args.Drive)
	if err != nil {
		return "", err
	}

	entries, err := d.List(ctx, args.Path, true)
	if err != nil {
		return "", fmt.Errorf("scan error: %w", err)
	}

	byTag, err := t.engine.Process(entries)
	if err != nil {
		return "", fmt.Errorf("classify error: %w", err)
	}

	t.state.SetFiles(byTag)

	// Сводка для LLM: тег -> количество и суммарный размер
	type tagSummary struct {
		Tag   string `json:"tag"`
		Count int    `json:"count"`
		Size  string `json:"size"`
	}

	summaries := make([]tagSummary, 0, len(byTag))
	totalFiles := 0
	for tag, files := range byTag {
		var size int64
		for _, f := range files {
			size += f.Size
		}
		summaries = append(summaries, tagSummary{
			Tag:   tag,
			Count: len(files),
			Size:  utils.FormatSize(size),
		})
		totalFiles += len(files)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Tag < summaries[j].Tag })

	utils.Info("scan completed", "drive", d.Name(), "path", args.Path, "files", totalFiles)
	t.state.Notify(ctx, events.EventScanProgress, events.ScanProgressData{
		Drive:   d.Name(),
		Scanned: totalFiles,
		Total:   totalFiles,
	})

	result := map[string]interface{}{
		"total_files": totalFiles,
		"by_tag":      summaries,
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
