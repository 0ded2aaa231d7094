package semindex

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/drive"
	"github.com/ilkoid/shkaf-ai/pkg/llm"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// textExtensions — расширения, содержимое которых индексируем как текст.
// Картинки попадают в индекс через vision-описание, бинарники только
// по имени файла.
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".json": true,
	".yaml": true, ".yml": true, ".log": true, ".html": true,
	".xml": true, ".go": true, ".py": true, ".js": true,
}

// Index — семантический индекс файлов диска.
type Index struct {
	store    *Store
	embedder llm.Embedder
	cfg      config.IndexConfig
}

// SearchHit — результат семантического поиска.
type SearchHit struct {
	Path  string
	Ord   int
	Text  string
	Score float32 // Косинусная близость к запросу, от -1 до 1
}

// New создает индекс поверх открытого Store и embedding-провайдера.
func New(store *Store, embedder llm.Embedder, cfg config.IndexConfig) *Index {
	return &Index{store: store, embedder: embedder, cfg: cfg.GetDefaults()}
}

// Indexable сообщает, будет ли файл проиндексирован по содержимому.
func Indexable(filename string, size, maxBytes int64) bool {
	if maxBytes > 0 && size > maxBytes {
		return false
	}
	return textExtensions[strings.ToLower(filepath.Ext(filename))]
}

// IndexFile индексирует текстовое содержимое одного файла.
//
// Если текст пустой (или файл не текстовый), индексируется хотя бы
// описание с именем файла: так Search находит и бинарники.
func (ix *Index) IndexFile(ctx context.Context, path, text string) error {
	if strings.TrimSpace(text) == "" {
		text = "Файл: " + filepath.Base(path)
	}

	chunks := SplitText(text, ix.cfg.ChunkSize, ix.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %s: %w", path, err)
	}

	if err := ix.store.Upsert(ctx, path, chunks, vectors); err != nil {
		return err
	}

	utils.Debug("file indexed", "path", path, "chunks", len(chunks))
	return nil
}

// IndexDrive индексирует файлы диска.
//
// Текстовые файлы читаются целиком (с лимитом maxBytes), для остальных
// используется Description из FileMeta если vision его заполнил.
// Ошибки отдельных файлов не прерывают индексацию.
func (ix *Index) IndexDrive(ctx context.Context, d drive.Drive, files []*drive.FileMeta, maxBytes int64) (int, error) {
	indexed := 0
	for _, fm := range files {
		if ctx.Err() != nil {
			return indexed, ctx.Err()
		}

		var text string
		if Indexable(fm.Filename, fm.Size, maxBytes) {
			data, err := drive.ReadAll(ctx, d, fm.Path)
			if err != nil {
				utils.Warn("skip unreadable file", "path", fm.Path, "error", err)
				continue
			}
			text = string(data)
		} else if fm.Description != "" {
			text = fm.Description
		} else {
			continue
		}

		if err := ix.IndexFile(ctx, fm.Path, text); err != nil {
			utils.Warn("skip failed index", "path", fm.Path, "error", err)
			continue
		}
		indexed++
	}

	utils.Info("index build finished", "indexed", indexed, "total", len(files))
	return indexed, nil
}

// Search возвращает topK чанков, ближайших к запросу.
//
// Brute-force по всем векторам. При topK <= 0 берется значение из конфига.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]SearchHit, error) {
	if topK <= 0 {
		topK = ix.cfg.TopK
	}

	queryVecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVec := queryVecs[0]

	chunks, err := ix.store.All(ctx)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(chunks))
	for _, c := range chunks {
		hits = append(hits, SearchHit{
			Path:  c.Path,
			Ord:   c.Ord,
			Text:  c.Text,
			Score: CosineSimilarity(queryVec, c.Vector),
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Rename обновляет путь файла в индексе после перемещения.
func (ix *Index) Rename(ctx context.Context, oldPath, newPath string) error {
	return ix.store.Rename(ctx, oldPath, newPath)
}

// Remove удаляет файл из индекса.
func (ix *Index) Remove(ctx context.Context, path string) error {
	return ix.store.Delete(ctx, path)
}

// SuggestLayout просит chat-модель предложить раскладку файлов по папкам.
//
// Модель получает список файлов (с описаниями если есть) и возвращает
// JSON вида {"Папка": ["файл1", "файл2"]}. Ответ чистится от markdown
// оберток и лишнего текста через ExtractJsonObject.
func SuggestLayout(ctx context.Context, provider llm.Provider, files []*drive.FileMeta) (map[string][]string, error) {
	if len(files) == 0 {
		return map[string][]string{}, nil
	}

	var sb strings.Builder
	for _, fm := range files {
		sb.WriteString("- ")
		sb.WriteString(fm.Path)
		sb.WriteString(" (")
		sb.WriteString(utils.FormatSize(fm.Size))
		if fm.Description != "" {
			sb.WriteString(", ")
			sb.WriteString(fm.Description)
		}
		sb.WriteString(")\n")
	}

	messages := []llm.Message{
		{
			Role: llm.RoleSystem,
			Content: "Ты помощник по наведению порядка в файлах. " +
				"Предложи осмысленную раскладку файлов по папкам. " +
				"Ответь строго JSON объектом вида {\"имя_папки\": [\"путь/к/файлу\"]}. " +
				"Каждый файл должен попасть ровно в одну папку. Без комментариев.",
		},
		{
			Role:    llm.RoleUser,
			Content: "Файлы:\n" + sb.String(),
		},
	}

	resp, err := provider.Generate(ctx, messages, llm.WithFormat("json_object"))
	if err != nil {
		return nil, fmt.Errorf("suggest layout: %w", err)
	}

	raw := utils.ExtractJsonObject(utils.CleanJsonBlock(resp.Content))
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in model response: %q", resp.Content)
	}

	var layout map[string][]string
	if err := json.Unmarshal([]byte(raw), &layout); err != nil {
		return nil, fmt.Errorf("parse layout JSON: %w", err)
	}
	return layout, nil
}

// CosineSimilarity считает косинусную близость двух векторов.
//
// Возвращает 0 для векторов разной длины или нулевой нормы.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
