package organize

import (
	"path"
	"strings"

	"github.com/ilkoid/shkaf-ai/pkg/dedupe"
	"github.com/ilkoid/shkaf-ai/pkg/drive"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// FromLayout строит план из раскладки, предложенной моделью.
//
// layout — карта "папка -> список путей" (выход semindex.SuggestLayout).
// Модель галлюцинирует: пути, которых нет среди known, молча выбрасываются
// (с warn в лог), а известные файлы, которые модель не упомянула,
// получают ActionKeep. Так план всегда покрывает все файлы и никогда
// не трогает несуществующие.
func FromLayout(root string, layout map[string][]string, known []*drive.FileMeta) *Plan {
	plan := NewPlan(root)

	knownByPath := make(map[string]*drive.FileMeta, len(known))
	for _, fm := range known {
		knownByPath[fm.Path] = fm
	}

	placed := make(map[string]bool, len(known))

	for folder, files := range layout {
		folder = strings.Trim(folder, "/")
		if folder == "" {
			continue
		}

		for _, filePath := range files {
			filePath = strings.Trim(filePath, "/")

			fm, ok := knownByPath[filePath]
			if !ok {
				utils.Warn("model suggested unknown file, dropping",
					"path", filePath, "folder", folder)
				continue
			}
			if placed[filePath] {
				utils.Warn("model placed file twice, keeping first placement",
					"path", filePath)
				continue
			}
			placed[filePath] = true

			// Пользовательская классификация сильнее предложения модели
			if fm.Status == drive.StatusUser {
				plan.Add(Decision{Path: filePath, Action: ActionKeep, Reason: "классификация пользователя"})
				continue
			}

			// Файл уже лежит в целевой папке: оставляем как есть
			if path.Dir(filePath) == folder {
				plan.Add(Decision{Path: filePath, Action: ActionKeep})
				continue
			}

			plan.Add(Decision{
				Path:       filePath,
				Action:     ActionMove,
				DestFolder: folder,
				Reason:     "предложено моделью",
			})
		}
	}

	// Не упомянутые моделью файлы остаются на месте
	for _, fm := range known {
		if !placed[fm.Path] {
			plan.Add(Decision{Path: fm.Path, Action: ActionKeep})
		}
	}

	return plan
}

// FromRules строит план перемещений из правил классификации.
//
// Файлы с тегом, у которого в конфиге задана папка, переезжают туда.
// Файлы с пользовательской классификацией (StatusUser) не трогаем.
func FromRules(root string, byTag map[string][]*drive.FileMeta, folderFor func(tag string) string) *Plan {
	plan := NewPlan(root)

	for tag, files := range byTag {
		folder := folderFor(tag)

		for _, fm := range files {
			if fm.Status == drive.StatusUser || folder == "" || path.Dir(fm.Path) == folder {
				plan.Add(Decision{Path: fm.Path, Action: ActionKeep})
				continue
			}
			plan.Add(Decision{
				Path:       fm.Path,
				Action:     ActionMove,
				DestFolder: folder,
				Reason:     "правило для тега " + tag,
				Confidence: 1.0,
			})
		}
	}

	return plan
}

// FromDuplicates строит план удаления лишних копий.
//
// Оригинал каждой группы остается (ActionKeep с пояснением), копии
// получают ActionDelete со ссылкой на оригинал в Reason.
func FromDuplicates(root string, result *dedupe.Result) *Plan {
	plan := NewPlan(root)

	for _, group := range result.Groups {
		plan.Add(Decision{
			Path:   group.Keep.Path,
			Action: ActionKeep,
			Reason: "оригинал группы дубликатов",
		})
		for _, extra := range group.Extra {
			plan.Add(Decision{
				Path:       extra.Path,
				Action:     ActionDelete,
				Reason:     "дубликат " + group.Keep.Path,
				Confidence: 1.0,
			})
		}
	}

	return plan
}
