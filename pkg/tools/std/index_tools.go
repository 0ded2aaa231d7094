package std

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ilkoid/shkaf-ai/pkg/state"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
)

// --- Tool: index_files ---
// Строит семантический индекс по содержимому отсканированных файлов.

type IndexFilesTool struct {
	state    *state.CoreState
	maxBytes int64
}

func NewIndexFilesTool(st *state.CoreState, maxBytes int64) *IndexFilesTool {
	return &IndexFilesTool{state: st, maxBytes: maxBytes}
}

func (t *IndexFilesTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "index_files",
		Description: "Строит семантический индекс по содержимому отсканированных текстовых файлов. После этого работает search_index. Требует предварительного scan_files.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"drive": driveParam(),
			},
			"required": []string{},
		},
	}
}

func (t *IndexFilesTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Drive string `json:"drive"`
	}
	if argsJSON != "" {
		_ = json.Unmarshal([]byte(argsJSON), &args)
	}

	if t.state.Index == nil {
		return "", fmt.Errorf("семантический индекс не настроен (models.default_embed в config.yaml)")
	}

	files := t.state.AllFiles()
	if len(files) == 0 {
		return "", fmt.Errorf("рабочая память пуста: сначала вызови scan_files")
	}

	d, err := t.state.GetDrive(args.Drive)
	if err != nil {
		return "", err
	}

	indexed, err := t.state.Index.IndexDrive(ctx, d, files, t.maxBytes)
	if err != nil {
		return "", fmt.Errorf("index error: %w", err)
	}

	return fmt.Sprintf(`{"indexed_files": %d}`, indexed), nil
}

// --- Tool: search_index ---

type SearchIndexTool struct {
	state *state.CoreState
}

func NewSearchIndexTool(st *state.CoreState) *SearchIndexTool {
	return &SearchIndexTool{state: st}
}

func (t *SearchIndexTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "search_index",
		Description: "Ищет файлы по смыслу запроса через семантический индекс. Возвращает релевантные фрагменты с путями. Требует предварительного index_files.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Поисковый запрос на естественном языке.",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Сколько результатов вернуть (дефолт из конфига).",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *SearchIndexTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Query == "" {
		return "", fmt.Errorf("query is required")
	}

	if t.state.Index == nil {
		return "", fmt.Errorf("семантический индекс не настроен")
	}

	hits, err := t.state.Index.Search(ctx, args.Query, args.TopK)
	if err != nil {
		return "", fmt.Errorf("search error: %w", err)
	}

	// Обрезаем текст фрагментов для экономии токенов
	type simpleHit struct {
		Path  string  `json:"path"`
		Text  string  `json:"text"`
		Score float32 `json:"score"`
	}

	const maxSnippet = 300
	simple := make([]simpleHit, 0, len(hits))
	for _, h := range hits {
		simple = append(simple, simpleHit{Path: h.Path, Text: snippet(h.Text, maxSnippet), Score: h.Score})
	}

	data, err := json.Marshal(simple)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// snippet обрезает текст до max рун. Срез по рунам, не по байтам:
// кириллица не должна рваться посреди символа.
func snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
