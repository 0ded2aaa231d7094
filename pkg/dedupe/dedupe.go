// Package dedupe находит дубликаты файлов по содержимому.
//
// Дубликаты определяются по SHA-256 дайджесту. Сравнение по размеру
// используется как быстрый предфильтр: файлы уникального размера
// не хешируются вообще.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ilkoid/shkaf-ai/pkg/drive"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// KeepPolicy определяет какой файл из группы дубликатов остается.
type KeepPolicy string

const (
	// KeepOldest — остается файл с самым ранним ModTime. Дефолт:
	// оригинал обычно старше копий.
	KeepOldest KeepPolicy = "oldest"
	// KeepNewest — остается самый свежий файл.
	KeepNewest KeepPolicy = "newest"
	// KeepShortestPath — остается файл с самым коротким путем.
	// Копии обычно лежат глубже ("backup/old/copy of report.pdf").
	KeepShortestPath KeepPolicy = "shortest_path"
)

// DuplicateGroup — группа файлов с одинаковым содержимым.
type DuplicateGroup struct {
	Digest string            // SHA-256 содержимого
	Size   int64             // Размер одного файла
	Keep   *drive.FileMeta   // Файл который остается
	Extra  []*drive.FileMeta // Лишние копии (кандидаты на удаление)
}

// WastedBytes возвращает сколько байт занимают лишние копии.
func (g DuplicateGroup) WastedBytes() int64 {
	return g.Size * int64(len(g.Extra))
}

// Result — итог поиска дубликатов.
type Result struct {
	Groups      []DuplicateGroup
	FilesHashed int   // Сколько файлов пришлось хешировать
	TotalWasted int64 // Суммарный объем лишних копий
}

// Finder ищет дубликаты на диске.
type Finder struct {
	drive   drive.Drive
	workers int
	policy  KeepPolicy
}

// NewFinder создает Finder.
//
// workers ограничивает параллелизм хеширования. policy определяет
// какой файл из группы остается.
func NewFinder(d drive.Drive, workers int, policy KeepPolicy) *Finder {
	if workers <= 0 {
		workers = 4
	}
	if policy == "" {
		policy = KeepOldest
	}
	return &Finder{drive: d, workers: workers, policy: policy}
}

// Find ищет дубликаты среди переданных файлов.
//
// Алгоритм:
//  1. Группируем по размеру: уникальный размер означает уникальное содержимое
//  2. Хешируем кандидатов параллельно (errgroup с лимитом workers)
//  3. Группируем по дайджесту, в каждой группе выбираем Keep по политике
//
// Digest записывается в переданные FileMeta как побочный эффект.
func (f *Finder) Find(ctx context.Context, files []*drive.FileMeta) (*Result, error) {
	// 1. Предфильтр по размеру
	bySize := make(map[int64][]*drive.FileMeta)
	for _, fm := range files {
		if fm.Size == 0 {
			continue // Пустые файлы не считаем дубликатами
		}
		bySize[fm.Size] = append(bySize[fm.Size], fm)
	}

	var candidates []*drive.FileMeta
	for _, group := range bySize {
		if len(group) > 1 {
			candidates = append(candidates, group...)
		}
	}

	utils.Debug("dedupe candidates selected",
		"total_files", len(files),
		"candidates", len(candidates))

	// 2. Параллельное хеширование
	var mu sync.Mutex
	byDigest := make(map[string][]*drive.FileMeta)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for _, fm := range candidates {
		g.Go(func() error {
			digest, err := f.hashFile(gctx, fm.Path)
			if err != nil {
				return fmt.Errorf("hash %q: %w", fm.Path, err)
			}
			mu.Lock()
			fm.Digest = digest
			byDigest[digest] = append(byDigest[digest], fm)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 3. Собираем группы дубликатов
	result := &Result{FilesHashed: len(candidates)}
	for digest, group := range byDigest {
		if len(group) < 2 {
			continue
		}

		keep := f.pickKeep(group)
		var extra []*drive.FileMeta
		for _, fm := range group {
			if fm != keep {
				extra = append(extra, fm)
			}
		}
		sort.Slice(extra, func(i, j int) bool { return extra[i].Path < extra[j].Path })

		dg := DuplicateGroup{
			Digest: digest,
			Size:   group[0].Size,
			Keep:   keep,
			Extra:  extra,
		}
		result.Groups = append(result.Groups, dg)
		result.TotalWasted += dg.WastedBytes()
	}

	// Стабильный порядок групп для воспроизводимых планов
	sort.Slice(result.Groups, func(i, j int) bool {
		return result.Groups[i].Keep.Path < result.Groups[j].Keep.Path
	})

	utils.Info("dedupe scan finished",
		"groups", len(result.Groups),
		"hashed", result.FilesHashed,
		"wasted", utils.FormatSize(result.TotalWasted))

	return result, nil
}

// pickKeep выбирает файл-оригинал по политике.
func (f *Finder) pickKeep(group []*drive.FileMeta) *drive.FileMeta {
	keep := group[0]
	for _, fm := range group[1:] {
		switch f.policy {
		case KeepNewest:
			if fm.ModTime.After(keep.ModTime) {
				keep = fm
			}
		case KeepShortestPath:
			if len(fm.Path) < len(keep.Path) {
				keep = fm
			}
		default: // KeepOldest
			if fm.ModTime.Before(keep.ModTime) {
				keep = fm
			}
		}
	}
	return keep
}

// hashFile считает SHA-256 содержимого файла потоково.
func (f *Finder) hashFile(ctx context.Context, path string) (string, error) {
	rc, err := f.drive.Open(ctx, path)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
