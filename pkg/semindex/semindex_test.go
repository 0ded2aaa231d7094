package semindex

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/drive"
	"github.com/ilkoid/shkaf-ai/pkg/llm"
)

func TestSplitText_Short(t *testing.T) {
	chunks := SplitText("короткий текст", 800, 80)
	require.Len(t, chunks, 1)
	assert.Equal(t, "короткий текст", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Ord)
}

func TestSplitText_Empty(t *testing.T) {
	assert.Nil(t, SplitText("", 800, 80))
	assert.Nil(t, SplitText("   \n  ", 800, 80))
}

func TestSplitText_Overlap(t *testing.T) {
	// 26 рун, чанки по 10 с перекрытием 4: шаг 6
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := SplitText(text, 10, 4)

	require.Len(t, chunks, 4)
	assert.Equal(t, "abcdefghij", chunks[0].Text)
	assert.Equal(t, "ghijklmnop", chunks[1].Text)
	// Граница соседних чанков перекрывается
	assert.True(t, strings.HasSuffix(chunks[0].Text, chunks[1].Text[:4]))

	for i, c := range chunks {
		assert.Equal(t, i, c.Ord)
	}
}

func TestSplitText_CyrillicRunes(t *testing.T) {
	// Руны, не байты: кириллица не режется посередине символа
	text := strings.Repeat("привет мир ", 100)
	chunks := SplitText(text, 50, 10)

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, len([]rune(c.Text)) <= 50)
		assert.NotContains(t, c.Text, "�")
	}
}

func TestSplitText_InvalidOverlap(t *testing.T) {
	// overlap >= size сбрасывается в 0, иначе бесконечный цикл
	chunks := SplitText(strings.Repeat("a", 30), 10, 10)
	require.Len(t, chunks, 3)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0, 0}, []float32{1, 0, 0}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	// Инвариант к масштабу
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{2, 2}, []float32{5, 5}), 1e-6)
	// Дегенеративные случаи
	assert.Zero(t, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, CosineSimilarity(nil, nil))
}

func TestIndexable(t *testing.T) {
	assert.True(t, Indexable("notes.txt", 100, 1024))
	assert.True(t, Indexable("README.MD", 100, 1024))
	assert.False(t, Indexable("photo.jpg", 100, 1024))
	assert.False(t, Indexable("big.txt", 2048, 1024)) // Превышен лимит размера
	assert.True(t, Indexable("big.txt", 2048, 0))     // Лимит 0 означает без лимита
}

// fakeEmbedder считает детерминированные векторы по содержимому текста,
// чтобы близость текстов отражалась в близости векторов.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 8)
		for _, r := range text {
			v[int(r)%8]++
		}
		vecs[i] = v
	}
	return vecs, nil
}

func newTestIndex(t *testing.T) (*Index, *Store) {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(store, &fakeEmbedder{}, config.IndexConfig{}), store
}

func TestIndexFile_AndSearch(t *testing.T) {
	ix, store := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.IndexFile(ctx, "docs/cats.txt", "кошки мурлыкают и спят"))
	require.NoError(t, ix.IndexFile(ctx, "docs/taxes.txt", "налоговая декларация за 2025 год"))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := ix.Search(ctx, "кошки мурлыкают", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "docs/cats.txt", hits[0].Path)
}

func TestIndexFile_UpsertReplacesOld(t *testing.T) {
	ix, store := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.IndexFile(ctx, "a.txt", "первая версия"))
	require.NoError(t, ix.IndexFile(ctx, "a.txt", "вторая версия"))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_RenameAndDelete(t *testing.T) {
	ix, store := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.IndexFile(ctx, "old/name.txt", "содержимое файла"))

	require.NoError(t, ix.Rename(ctx, "old/name.txt", "new/name.txt"))
	paths, err := store.Paths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new/name.txt"}, paths)

	require.NoError(t, ix.Remove(ctx, "new/name.txt"))
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// mockLayoutProvider возвращает заранее заданный ответ модели.
type mockLayoutProvider struct {
	response string
}

func (m *mockLayoutProvider) Generate(ctx context.Context, messages []llm.Message, opts ...any) (llm.Message, error) {
	return llm.Message{Role: llm.RoleAssistant, Content: m.response}, nil
}

func TestSuggestLayout(t *testing.T) {
	provider := &mockLayoutProvider{
		response: "Вот раскладка:\n```json\n{\"Documents\": [\"report.pdf\"], \"Photos\": [\"cat.jpg\"]}\n```",
	}

	files := []*drive.FileMeta{
		drive.NewFileMeta("documents", "report.pdf", 1024, "report.pdf"),
		drive.NewFileMeta("photos", "cat.jpg", 2048, "cat.jpg"),
	}

	layout, err := SuggestLayout(context.Background(), provider, files)
	require.NoError(t, err)
	assert.Equal(t, []string{"report.pdf"}, layout["Documents"])
	assert.Equal(t, []string{"cat.jpg"}, layout["Photos"])
}

func TestSuggestLayout_BadResponse(t *testing.T) {
	provider := &mockLayoutProvider{response: "не могу помочь"}

	files := []*drive.FileMeta{drive.NewFileMeta("other", "a.txt", 1, "a.txt")}
	_, err := SuggestLayout(context.Background(), provider, files)
	require.Error(t, err)
}

func TestSuggestLayout_EmptyInput(t *testing.T) {
	layout, err := SuggestLayout(context.Background(), &mockLayoutProvider{}, nil)
	require.NoError(t, err)
	assert.Empty(t, layout)
}
