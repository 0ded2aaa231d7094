/* Инструменты для работы с дисками в пакете pkg/tools/std/

Базовый набор для "осмотреться":

list_files: аналог ls. Агент видит, что лежит в папке.
stat_file:  метаданные одного файла (размер, дата, папка или нет).
read_file:  аналог cat для текстовых файлов, с обрезкой больших.
*/
package std

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ilkoid/shkaf-ai/pkg/drive"
	"github.com/ilkoid/shkaf-ai/pkg/state"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// driveParam — общий JSON Schema фрагмент для выбора диска.
func driveParam() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Имя диска ('local', 's3'). Пусто = диск по умолчанию.",
	}
}

// --- Tool: list_files ---

type ListFilesTool struct {
	state *state.CoreState
}

func NewListFilesTool(st *state.CoreState) *ListFilesTool {
	return &ListFilesTool{state: st}
}

func (t *ListFilesTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "list_files",
		Description: "Возвращает список файлов и папок по указанному пути. Используй это, чтобы осмотреться перед организацией.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Путь к папке относительно корня (пусто = корень).",
				},
				"recursive": map[string]interface{}{
					"type":        "boolean",
					"description": "true = обойти все вложенные папки.",
				},
				"drive": driveParam(),
			},
			"required": []string{},
		},
	}
}

func (t *ListFilesTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Path      string `json:"path"`
		Recursive bool   `json:"recursive"`
		Drive     string `json:"drive"`
	}
	if argsJSON != "" {
		_ = json.Unmarshal([]byte(argsJSON), &args)
	}

	d, err := t.state.GetDrive(args.Drive)
	if err != nil {
		return "", err
	}

	entries, err := d.List(ctx, args.Path, args.Recursive)
	if err != nil {
		return "", fmt.Errorf("list error: %w", err)
	}

	// Упрощаем ответ для LLM (экономим токены)
	type simpleEntry struct {
		Path     string `json:"path"`
		Size     string `json:"size,omitempty"`
		IsFolder bool   `json:"is_folder,omitempty"`
	}

	simpleList := make([]simpleEntry, 0, len(entries))
	for _, e := range entries {
		se := simpleEntry{Path: e.Path, IsFolder: e.IsFolder}
		if !e.IsFolder {
			se.Size = utils.FormatSize(e.Size)
		}
		simpleList = append(simpleList, se)
	}

	data, err := json.Marshal(simpleList)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// --- Tool: stat_file ---

type StatFileTool struct {
	state *state.CoreState
}

func NewStatFileTool(st *state.CoreState) *StatFileTool {
	return &StatFileTool{state: st}
}

func (t *StatFileTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "stat_file",
		Description: "Возвращает метаданные файла или папки: размер, дату изменения, тип.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Путь к файлу относительно корня.",
				},
				"drive": driveParam(),
			},
			"required": []string{"path"},
		},
	}
}

func (t *StatFileTool) Execute(ctx context.Context, argsJSON string) (string, error) {
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

	entry, err := d.Stat(ctx, args.Path)
	if err != nil {
		// Drive-реализации оборачивают ErrNotFound, сравнение по цепочке
		if errors.Is(err, drive.ErrNotFound) {
			return "", fmt.Errorf("path not found: %s", args.Path)
		}
		return "", fmt.Errorf("stat error: %w", err)
	}

	result := map[string]interface{}{
		"path":      entry.Path,
		"name":      entry.Name,
		"is_folder": entry.IsFolder,
	}
	if !entry.IsFolder {
		result["size"] = utils.FormatSize(entry.Size)
		result["modified"] = entry.ModTime.Format("2006-01-02 15:04")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// --- Tool: read_file ---

type ReadFileTool struct {
	state *state.CoreState
}

func NewReadFileTool(st *state.CoreState) *ReadFileTool {
	return &ReadFileTool{state: st}
}

func (t *ReadFileTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "read_file",
		Description: "Читает содержимое текстового файла (TXT, MD, JSON, CSV). Не используй для картинок и архивов.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Путь к файлу, полученный из list_files.",
				},
				"drive": driveParam(),
			},
			"required": []string{"path"},
		},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Path  string `json:"path"`
		Drive string `json:"drive"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	// Простая защита от дурака (чтобы не тащить бинарники в контекст)
	ext := strings.ToLower(filepath.Ext(args.Path))
	if isBinaryExt(ext) {
		return "", fmt.Errorf("file type '%s' is binary. Use describe_image for images", ext)
	}

	d, err := t.state.GetDrive(args.Drive)
	if err != nil {
		return "", err
	}

	contentBytes, err := drive.ReadAll(ctx, d, args.Path)
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}

	// Ограничиваем длину, чтобы не забить контекст LLM
	const maxTextSize = 3000
	if len(contentBytes) > maxTextSize {
		truncated := string(contentBytes[:maxTextSize])
		return truncated + "\n\n...[TRUNCATED - файл слишком большой для контекста]", nil
	}

	return string(contentBytes), nil
}

// --- Helpers ---

func isBinaryExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".zip", ".rar", ".7z",
		".pdf", ".mp4", ".mp3", ".avi", ".exe", ".bin", ".iso", ".dmg":
		return true
	}
	return false
}
