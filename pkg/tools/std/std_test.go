package std

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/shkaf-ai/pkg/classifier"
	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/drive"
	"github.com/ilkoid/shkaf-ai/pkg/drive/localdrive"
	"github.com/ilkoid/shkaf-ai/pkg/events"
	"github.com/ilkoid/shkaf-ai/pkg/llm"
	"github.com/ilkoid/shkaf-ai/pkg/models"
	"github.com/ilkoid/shkaf-ai/pkg/organize"
	"github.com/ilkoid/shkaf-ai/pkg/questions"
	"github.com/ilkoid/shkaf-ai/pkg/state"
)

// stubLayoutProvider отвечает заранее заданной раскладкой вместо LLM.
type stubLayoutProvider struct {
	layout string
}

func (p *stubLayoutProvider) Generate(_ context.Context, _ []llm.Message, _ ...any) (llm.Message, error) {
	return llm.Message{Role: llm.RoleAssistant, Content: p.layout}, nil
}

// newTestState готовит состояние с одним локальным диском поверх временной папки.
func newTestState(t *testing.T) (*state.CoreState, drive.Drive, string) {
	t.Helper()

	root := t.TempDir()
	st := state.NewCoreState(&config.AppConfig{})

	d, err := localdrive.New(root, nil)
	require.NoError(t, err)
	st.AddDrive("local", d)

	return st, d, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// withExecutor подключает Executor с корзиной и sqlite-журналом.
func withExecutor(t *testing.T, st *state.CoreState, d drive.Drive) *organize.TrashLedger {
	t.Helper()

	ledger, err := organize.OpenTrashLedger(filepath.Join(t.TempDir(), "trash.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	executor, err := organize.NewExecutor(d, nil, ledger, ".shkaf-trash", false)
	require.NoError(t, err)
	st.Executor = executor

	return ledger
}

// answerQuestion эмулирует пользователя: ждет появления вопроса и отвечает.
func answerQuestion(st *state.CoreState, index int) {
	go func() {
		for i := 0; i < 400; i++ {
			if id := st.Questions.GetFirstPendingID(); id != "" {
				q, ok := st.Questions.GetQuestion(id)
				if !ok {
					return
				}
				opt, _ := q.GetOption(index)
				_ = st.Questions.SubmitAnswer(id, questions.QuestionAnswer{
					Index:       index,
					Label:       opt.Label,
					Description: opt.Description,
					Timestamp:   time.Now(),
				})
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
}

func testRules() []config.FileRule {
	return []config.FileRule{
		{Tag: "docs", Patterns: []string{"*.txt", "*.pdf"}, Folder: "Documents"},
		{Tag: "images", Patterns: []string{"*.jpg", "*.png"}, Folder: "Photos"},
	}
}

func TestListFilesTool(t *testing.T) {
	st, _, root := newTestState(t)
	writeFile(t, root, "a.txt", "hello")
	writeFile(t, root, "sub/b.txt", "world")

	tool := NewListFilesTool(st)
	out, err := tool.Execute(context.Background(), `{"recursive": true}`)
	require.NoError(t, err)

	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "b.txt")

	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.GreaterOrEqual(t, len(entries), 2)
}

func TestListFilesTool_UnknownDrive(t *testing.T) {
	st, _, _ := newTestState(t)

	tool := NewListFilesTool(st)
	_, err := tool.Execute(context.Background(), `{"drive": "nope"}`)
	require.Error(t, err)
}

func TestStatFileTool(t *testing.T) {
	st, _, root := newTestState(t)
	writeFile(t, root, "report.txt", "data")

	tool := NewStatFileTool(st)
	out, err := tool.Execute(context.Background(), `{"path": "report.txt"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "report.txt")
	assert.Contains(t, out, "size")

	// Drive оборачивает ErrNotFound, инструмент должен узнать его по цепочке
	_, err = tool.Execute(context.Background(), `{"path": "missing.txt"}`)
	require.Error(t, err)
	assert.EqualError(t, err, "path not found: missing.txt")
}

func TestReadFileTool(t *testing.T) {
	st, _, root := newTestState(t)
	writeFile(t, root, "note.txt", "короткая заметка")

	tool := NewReadFileTool(st)
	out, err := tool.Execute(context.Background(), `{"path": "note.txt"}`)
	require.NoError(t, err)
	assert.Equal(t, "короткая заметка", out)
}

func TestReadFileTool_RejectsBinary(t *testing.T) {
	st, _, _ := newTestState(t)

	tool := NewReadFileTool(st)
	_, err := tool.Execute(context.Background(), `{"path": "photo.jpg"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binary")
}

func TestReadFileTool_TruncatesLargeFile(t *testing.T) {
	st, _, root := newTestState(t)

	big := make([]byte, 5000)
	for i := range big {
		big[i] = 'x'
	}
	writeFile(t, root, "big.txt", string(big))

	tool := NewReadFileTool(st)
	out, err := tool.Execute(context.Background(), `{"path": "big.txt"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "TRUNCATED")
	assert.Less(t, len(out), 3200)
}

func TestScanFilesTool(t *testing.T) {
	st, _, root := newTestState(t)
	writeFile(t, root, "a.txt", "one")
	writeFile(t, root, "photo.jpg", "fakejpg")
	writeFile(t, root, "archive.bin", "???")

	tool := NewScanFilesTool(st, classifier.New(testRules()))
	out, err := tool.Execute(context.Background(), `{}`)
	require.NoError(t, err)

	var result struct {
		TotalFiles int `json:"total_files"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 3, result.TotalFiles)

	files := st.GetFiles()
	assert.Len(t, files["docs"], 1)
	assert.Len(t, files["images"], 1)
	assert.NotEmpty(t, files["other"])
}

func TestFindDuplicatesTool(t *testing.T) {
	st, _, root := newTestState(t)
	writeFile(t, root, "original.txt", "same content")
	writeFile(t, root, "copy.txt", "same content")
	writeFile(t, root, "unique.txt", "different")

	scan := NewScanFilesTool(st, classifier.New(testRules()))
	_, err := scan.Execute(context.Background(), `{}`)
	require.NoError(t, err)

	tool := NewFindDuplicatesTool(st, 2)
	out, err := tool.Execute(context.Background(), `{"keep_policy": "oldest"}`)
	require.NoError(t, err)

	var result struct {
		PlanID string `json:"plan_id"`
		Groups []struct {
			Keep  string   `json:"keep"`
			Extra []string `json:"extra"`
		} `json:"groups"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Groups, 1)
	assert.Len(t, result.Groups[0].Extra, 1)

	plan, err := st.GetPlan(result.PlanID)
	require.NoError(t, err)
	assert.True(t, plan.Mutating())
}

func TestFindDuplicatesTool_RequiresScan(t *testing.T) {
	st, _, _ := newTestState(t)

	tool := NewFindDuplicatesTool(st, 2)
	_, err := tool.Execute(context.Background(), `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan_files")
}

func TestProposePlanTool_Rules(t *testing.T) {
	st, _, root := newTestState(t)
	writeFile(t, root, "report.txt", "text")
	writeFile(t, root, "photo.jpg", "img")

	engine := classifier.New(testRules())
	scan := NewScanFilesTool(st, engine)
	_, err := scan.Execute(context.Background(), `{}`)
	require.NoError(t, err)

	tool := NewProposePlanTool(st, engine, nil, "")
	out, err := tool.Execute(context.Background(), `{"strategy": "rules"}`)
	require.NoError(t, err)

	var result struct {
		PlanID string `json:"plan_id"`
		Moves  int    `json:"moves"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Moves)

	plan, err := st.GetPlan(result.PlanID)
	require.NoError(t, err)
	assert.True(t, plan.Mutating())
}

func TestProposePlanTool_SemanticSetsAIProvenance(t *testing.T) {
	st, _, root := newTestState(t)
	writeFile(t, root, "report.txt", "text")
	writeFile(t, root, "photo.jpg", "img")

	engine := classifier.New(testRules())
	scan := NewScanFilesTool(st, engine)
	_, err := scan.Execute(context.Background(), `{}`)
	require.NoError(t, err)

	reg := models.NewRegistry()
	require.NoError(t, reg.Register("chat", config.ModelDef{ModelName: "stub"},
		&stubLayoutProvider{layout: `{"Archive": ["report.txt"]}`}))

	tool := NewProposePlanTool(st, engine, reg, "chat")
	out, err := tool.Execute(context.Background(), `{"strategy": "semantic"}`)
	require.NoError(t, err)

	var result struct {
		Moves int `json:"moves"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Moves)

	files := st.GetFiles()
	require.Len(t, files["docs"], 1)
	// Решение модели фиксируется в провенансе файла
	assert.Equal(t, drive.StatusAI, files["docs"][0].Status)
	// Не тронутый моделью файл остается с провенансом правила
	require.Len(t, files["images"], 1)
	assert.Equal(t, drive.StatusRule, files["images"][0].Status)
}

func TestRetagFileTool(t *testing.T) {
	st, _, root := newTestState(t)
	writeFile(t, root, "report.txt", "text")
	writeFile(t, root, "photo.jpg", "img")

	engine := classifier.New(testRules())
	scan := NewScanFilesTool(st, engine)
	_, err := scan.Execute(context.Background(), `{}`)
	require.NoError(t, err)

	retag := NewRetagFileTool(st)
	out, err := retag.Execute(context.Background(), `{"path": "photo.jpg", "tag": "docs"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "USER_MODIFIED")

	files := st.GetFiles()
	require.Len(t, files["docs"], 2)
	assert.Empty(t, files["images"])

	// Закрепленный пользователем файл план по правилам не двигает
	propose := NewProposePlanTool(st, engine, nil, "")
	out, err = propose.Execute(context.Background(), `{"strategy": "rules"}`)
	require.NoError(t, err)

	var result struct {
		PlanID string `json:"plan_id"`
		Moves  int    `json:"moves"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Moves)

	plan, err := st.GetPlan(result.PlanID)
	require.NoError(t, err)
	for _, d := range plan.Decisions {
		if d.Path == "photo.jpg" {
			assert.Equal(t, organize.ActionKeep, d.Action)
		}
	}
}

func TestRetagFileTool_RequiresScan(t *testing.T) {
	st, _, _ := newTestState(t)

	tool := NewRetagFileTool(st)
	_, err := tool.Execute(context.Background(), `{"path": "ghost.txt", "tag": "docs"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan_files")
}

func TestApplyPlanTool_Confirmed(t *testing.T) {
	st, d, root := newTestState(t)
	writeFile(t, root, "report.txt", "text")
	withExecutor(t, st, d)

	plan := organize.NewPlan(d.Name())
	plan.Add(organize.Decision{Path: "report.txt", Action: organize.ActionMove, DestFolder: "Documents"})
	st.PutPlan(plan)

	answerQuestion(st, 0)

	tool := NewApplyPlanTool(st)
	out, err := tool.Execute(context.Background(), `{"plan_id": "`+plan.ID+`"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"applied"`)

	assert.FileExists(t, filepath.Join(root, "Documents", "report.txt"))
	assert.NoFileExists(t, filepath.Join(root, "report.txt"))
}

func TestApplyPlanTool_Declined(t *testing.T) {
	st, d, root := newTestState(t)
	writeFile(t, root, "report.txt", "text")
	withExecutor(t, st, d)

	plan := organize.NewPlan(d.Name())
	plan.Add(organize.Decision{Path: "report.txt", Action: organize.ActionDelete})
	st.PutPlan(plan)

	answerQuestion(st, 1)

	tool := NewApplyPlanTool(st)
	out, err := tool.Execute(context.Background(), `{"plan_id": "`+plan.ID+`"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"applied": 0`)

	assert.FileExists(t, filepath.Join(root, "report.txt"))
}

func TestApplyPlanTool_DryRunSkipsConfirmation(t *testing.T) {
	st, d, root := newTestState(t)
	writeFile(t, root, "report.txt", "text")
	withExecutor(t, st, d)

	plan := organize.NewPlan(d.Name())
	plan.Add(organize.Decision{Path: "report.txt", Action: organize.ActionMove, DestFolder: "Documents"})
	st.PutPlan(plan)

	// Вопрос не создается: отвечать некому, при ошибке тест зависнет на таймауте
	tool := NewApplyPlanTool(st)
	out, err := tool.Execute(context.Background(), `{"plan_id": "`+plan.ID+`", "dry_run": true}`)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	assert.FileExists(t, filepath.Join(root, "report.txt"))
}

func TestMoveFileTool(t *testing.T) {
	st, d, root := newTestState(t)
	writeFile(t, root, "report.txt", "text")
	withExecutor(t, st, d)

	answerQuestion(st, 0)

	tool := NewMoveFileTool(st)
	out, err := tool.Execute(context.Background(), `{"path": "report.txt", "dest_folder": "Documents"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"applied"`)

	assert.FileExists(t, filepath.Join(root, "Documents", "report.txt"))
}

func TestMoveFileTool_Cancelled(t *testing.T) {
	st, d, root := newTestState(t)
	writeFile(t, root, "report.txt", "text")
	withExecutor(t, st, d)

	answerQuestion(st, 1)

	tool := NewMoveFileTool(st)
	out, err := tool.Execute(context.Background(), `{"path": "report.txt", "dest_folder": "Documents"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "отменил")

	assert.FileExists(t, filepath.Join(root, "report.txt"))
}

func TestCreateFolderTool(t *testing.T) {
	st, _, root := newTestState(t)

	tool := NewCreateFolderTool(st)
	_, err := tool.Execute(context.Background(), `{"path": "Новая папка"}`)
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(root, "Новая папка"))
}

func TestDeletePathTool_SoftDeleteAndRestore(t *testing.T) {
	st, d, root := newTestState(t)
	writeFile(t, root, "old.txt", "obsolete")
	ledger := withExecutor(t, st, d)

	answerQuestion(st, 0)

	del := NewDeletePathTool(st)
	out, err := del.Execute(context.Background(), `{"path": "old.txt", "reason": "устаревший"}`)
	require.NoError(t, err)

	var result struct {
		Applied  int    `json:"applied"`
		RecordID string `json:"record_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Applied)
	require.NotEmpty(t, result.RecordID)

	assert.NoFileExists(t, filepath.Join(root, "old.txt"))

	records, err := ledger.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	restore := NewRestoreFileTool(st)
	_, err = restore.Execute(context.Background(), `{"record_id": "`+result.RecordID+`"}`)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, "old.txt"))
}

func TestListTrashTool(t *testing.T) {
	st, d, root := newTestState(t)
	writeFile(t, root, "old.txt", "obsolete")
	ledger := withExecutor(t, st, d)

	answerQuestion(st, 0)
	del := NewDeletePathTool(st)
	_, err := del.Execute(context.Background(), `{"path": "old.txt"}`)
	require.NoError(t, err)

	tool := NewListTrashTool(ledger)
	out, err := tool.Execute(context.Background(), `{}`)
	require.NoError(t, err)
	assert.Contains(t, out, "old.txt")
}

func TestListTrashTool_NoLedger(t *testing.T) {
	tool := NewListTrashTool(nil)
	_, err := tool.Execute(context.Background(), `{}`)
	require.Error(t, err)
}

func TestPlannerTools(t *testing.T) {
	st, _, _ := newTestState(t)

	add := NewPlanAddTaskTool(st.Todo)
	out, err := add.Execute(context.Background(), `{"description": "Отсканировать Downloads"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "ID: 1")

	done := NewPlanMarkDoneTool(st.Todo)
	out, err = done.Execute(context.Background(), `{"task_id": 1}`)
	require.NoError(t, err)
	assert.Contains(t, out, "выполненной")

	_, err = add.Execute(context.Background(), `{"description": "Удалить дубликаты"}`)
	require.NoError(t, err)

	failed := NewPlanMarkFailedTool(st.Todo)
	out, err = failed.Execute(context.Background(), `{"task_id": 2, "reason": "пользователь отменил"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "провалена")

	clear := NewPlanClearTool(st.Todo)
	_, err = clear.Execute(context.Background(), `{}`)
	require.NoError(t, err)
	assert.Empty(t, st.Todo.GetTasks())
}

func TestAskUserQuestionTool(t *testing.T) {
	st, _, _ := newTestState(t)

	answerQuestion(st, 1)

	tool := NewAskUserQuestionTool(st.Questions)
	out, err := tool.Execute(context.Background(),
		`{"question": "Как сортировать фото?", "options": [{"label": "По дате"}, {"label": "По содержимому"}]}`)
	require.NoError(t, err)
	assert.Contains(t, out, "По содержимому")
}

func TestAskUserQuestionTool_Validation(t *testing.T) {
	st, _, _ := newTestState(t)
	tool := NewAskUserQuestionTool(st.Questions)

	_, err := tool.Execute(context.Background(), `{"question": "", "options": [{"label": "А"}]}`)
	require.Error(t, err)

	_, err = tool.Execute(context.Background(), `{"question": "Вопрос?", "options": []}`)
	require.Error(t, err)
}

func TestDescribeImageTool_RejectsNonImage(t *testing.T) {
	st, _, _ := newTestState(t)

	tool := NewDescribeImageTool(st, nil)
	_, err := tool.Execute(context.Background(), `{"path": "doc.pdf"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a supported image")
}

// Жизненный цикл scan -> propose -> apply должен быть виден UI через шину
// событий, а не только через результаты инструментов.
func TestTools_EmitOrganizerEvents(t *testing.T) {
	st, d, root := newTestState(t)
	writeFile(t, root, "report.txt", "text")
	withExecutor(t, st, d)

	emitter := events.NewChanEmitter(16)
	defer emitter.Close()
	st.Emitter = emitter
	sub := emitter.Subscribe()

	engine := classifier.New(testRules())
	_, err := NewScanFilesTool(st, engine).Execute(context.Background(), `{}`)
	require.NoError(t, err)

	_, err = NewProposePlanTool(st, engine, nil, "").Execute(context.Background(), `{"strategy": "rules"}`)
	require.NoError(t, err)

	answerQuestion(st, 0)
	_, err = NewApplyPlanTool(st).Execute(context.Background(), `{}`)
	require.NoError(t, err)

	seen := map[events.EventType]bool{}
	for i := 0; i < 3; i++ {
		select {
		case ev := <-sub.Events():
			seen[ev.Type] = true
		case <-time.After(time.Second):
			t.Fatalf("получено %d событий из 3", i)
		}
	}

	assert.True(t, seen[events.EventScanProgress])
	assert.True(t, seen[events.EventPlanReady])
	assert.True(t, seen[events.EventApplyResult])
}

func TestSnippetTruncatesByRunes(t *testing.T) {
	long := strings.Repeat("ъ", 400)
	out := snippet(long, 300)

	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, 303, len([]rune(out))) // 300 рун + "..."

	short := "короткий фрагмент"
	assert.Equal(t, short, snippet(short, 300))
}

func TestToolDefinitions_HaveSchemas(t *testing.T) {
	st, _, _ := newTestState(t)

	defs := []string{
		NewListFilesTool(st).Definition().Name,
		NewStatFileTool(st).Definition().Name,
		NewReadFileTool(st).Definition().Name,
		NewMoveFileTool(st).Definition().Name,
		NewCreateFolderTool(st).Definition().Name,
		NewDeletePathTool(st).Definition().Name,
		NewApplyPlanTool(st).Definition().Name,
		NewAskUserQuestionTool(st.Questions).Definition().Name,
	}
	seen := map[string]bool{}
	for _, name := range defs {
		assert.NotEmpty(t, name)
		assert.False(t, seen[name], "duplicate tool name %s", name)
		seen[name] = true
	}
}
