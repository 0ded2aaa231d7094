package classifier

import (
	"path/filepath"
	"strings"

	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/drive"
)

// Engine выполняет классификацию по glob-правилам из конфига.
type Engine struct {
	rules []config.FileRule
}

func New(rules []config.FileRule) *Engine {
	return &Engine{rules: rules}
}

// Process принимает список записей хранилища и возвращает карту [Tag] -> Список файлов.
//
// Папки пропускаются. Файлы без совпавшего правила получают тег "other":
// кандидаты на AI-классификацию. Vision описание заполняется позже через
// state.UpdateFileAnalysis().
func (e *Engine) Process(entries []drive.Entry) (map[string][]*drive.FileMeta, error) {
	result := make(map[string][]*drive.FileMeta)

	for _, entry := range entries {
		if entry.IsFolder {
			continue
		}

		tag, matched := e.Match(entry.Name)

		fileMeta := drive.NewFileMeta(tag, entry.Path, entry.Size, entry.Name)
		fileMeta.ModTime = entry.ModTime
		if matched {
			fileMeta.Status = drive.StatusRule
		}
		result[tag] = append(result[tag], fileMeta)
	}

	return result, nil
}

// Match возвращает тег для имени файла и признак совпадения с правилом.
//
// Смотрим только на имя файла, не на путь. Сравнение case-insensitive,
// чтобы "*.jpg" ловил и "PHOTO.JPG". Без совпадения возвращается "other".
func (e *Engine) Match(filename string) (string, bool) {
	name := strings.ToLower(filepath.Base(filename))

	for _, rule := range e.rules {
		for _, pattern := range rule.Patterns {
			if isMatch, _ := filepath.Match(strings.ToLower(pattern), name); isMatch {
				return rule.Tag, true
			}
		}
	}
	return "other", false
}

// FolderFor возвращает целевую папку для тега из правил конфига.
//
// Возвращает пустую строку если правило не задает папку: такие файлы
// раскладывает LLM.
func (e *Engine) FolderFor(tag string) string {
	for _, rule := range e.rules {
		if rule.Tag == tag {
			return rule.Folder
		}
	}
	return ""
}
