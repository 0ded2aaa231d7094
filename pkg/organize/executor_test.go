package organize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/shkaf-ai/pkg/drive/localdrive"
)

type testEnv struct {
	drive  *localdrive.Drive
	ledger *TrashLedger
	root   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"report.pdf":     "pdf",
		"cat.jpg":        "jpg",
		"old/backup.zip": "zip",
	}
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	d, err := localdrive.New(root, []string{".shkaf-trash"})
	require.NoError(t, err)

	ledger, err := OpenTrashLedger(filepath.Join(t.TempDir(), "trash.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	return &testEnv{drive: d, ledger: ledger, root: root}
}

func (env *testEnv) executor(t *testing.T, hardDelete bool) *Executor {
	t.Helper()
	e, err := NewExecutor(env.drive, nil, env.ledger, ".shkaf-trash", hardDelete)
	require.NoError(t, err)
	return e
}

func (env *testEnv) exists(p string) bool {
	_, err := os.Stat(filepath.Join(env.root, filepath.FromSlash(p)))
	return err == nil
}

func TestApply_Move(t *testing.T) {
	env := newTestEnv(t)
	e := env.executor(t, false)

	plan := NewPlan(env.drive.Name())
	plan.Add(Decision{Path: "report.pdf", Action: ActionMove, DestFolder: "Documents"})

	result, err := e.Apply(context.Background(), plan, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Zero(t, result.Failed)

	assert.False(t, env.exists("report.pdf"))
	assert.True(t, env.exists("Documents/report.pdf"))
	assert.Equal(t, StatusApplied, plan.Decisions[0].Status)
}

func TestApply_SoftDelete(t *testing.T) {
	env := newTestEnv(t)
	e := env.executor(t, false)

	plan := NewPlan(env.drive.Name())
	plan.Add(Decision{Path: "cat.jpg", Action: ActionDelete, Reason: "дубликат"})

	result, err := e.Apply(context.Background(), plan, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	require.Len(t, result.Trashed, 1)

	rec := result.Trashed[0]
	assert.Equal(t, "cat.jpg", rec.OriginalPath)

	// Файл в корзине, не удален насовсем
	assert.False(t, env.exists("cat.jpg"))
	assert.True(t, env.exists(rec.TrashPath))

	// Запись видна в журнале
	active, err := env.ledger.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, rec.ID, active[0].ID)
}

func TestApply_HardDelete(t *testing.T) {
	env := newTestEnv(t)
	e := env.executor(t, true)

	plan := NewPlan(env.drive.Name())
	plan.Add(Decision{Path: "cat.jpg", Action: ActionDelete})

	result, err := e.Apply(context.Background(), plan, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Empty(t, result.Trashed)
	assert.False(t, env.exists("cat.jpg"))
}

func TestApply_DryRun(t *testing.T) {
	env := newTestEnv(t)
	e := env.executor(t, false)

	plan := NewPlan(env.drive.Name())
	plan.Add(Decision{Path: "report.pdf", Action: ActionMove, DestFolder: "Documents"})
	plan.Add(Decision{Path: "cat.jpg", Action: ActionDelete})

	result, err := e.Apply(context.Background(), plan, true)
	require.NoError(t, err)
	assert.Zero(t, result.Applied)

	// Ничего не изменилось
	assert.True(t, env.exists("report.pdf"))
	assert.True(t, env.exists("cat.jpg"))
	assert.Equal(t, StatusPending, plan.Decisions[0].Status)
}

func TestApply_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	e := env.executor(t, false)

	plan := NewPlan(env.drive.Name())
	plan.Add(Decision{Path: "report.pdf", Action: ActionMove, DestFolder: "Documents"})

	_, err := e.Apply(context.Background(), plan, false)
	require.NoError(t, err)

	// Повторное применение того же плана: уже выполненные решения пропускаются
	result, err := e.Apply(context.Background(), plan, false)
	require.NoError(t, err)
	assert.Zero(t, result.Applied)
	assert.Equal(t, 1, result.Skipped)
	assert.True(t, env.exists("Documents/report.pdf"))
}

func TestApply_FailureDoesNotStopOthers(t *testing.T) {
	env := newTestEnv(t)
	e := env.executor(t, true)

	plan := NewPlan(env.drive.Name())
	plan.Add(Decision{Path: "../escape.txt", Action: ActionDelete})
	plan.Add(Decision{Path: "cat.jpg", Action: ActionDelete})

	result, err := e.Apply(context.Background(), plan, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Applied)

	assert.Equal(t, StatusFailed, plan.Decisions[0].Status)
	assert.NotEmpty(t, plan.Decisions[0].Error)
	assert.False(t, env.exists("cat.jpg"))
}

func TestApply_KeepAndFlagDoNotTouchDisk(t *testing.T) {
	env := newTestEnv(t)
	e := env.executor(t, false)

	plan := NewPlan(env.drive.Name())
	plan.Add(Decision{Path: "report.pdf", Action: ActionKeep})
	plan.Add(Decision{Path: "cat.jpg", Action: ActionFlag, Reason: "непонятный файл"})

	result, err := e.Apply(context.Background(), plan, false)
	require.NoError(t, err)
	assert.Zero(t, result.Applied)
	assert.True(t, env.exists("report.pdf"))
	assert.True(t, env.exists("cat.jpg"))
	assert.Equal(t, StatusApplied, plan.Decisions[0].Status)
}

func TestRestore(t *testing.T) {
	env := newTestEnv(t)
	e := env.executor(t, false)
	ctx := context.Background()

	plan := NewPlan(env.drive.Name())
	plan.Add(Decision{Path: "old/backup.zip", Action: ActionDelete})

	result, err := e.Apply(ctx, plan, false)
	require.NoError(t, err)
	require.Len(t, result.Trashed, 1)
	recID := result.Trashed[0].ID

	require.NoError(t, e.Restore(ctx, recID))

	// Файл вернулся на прежнее место
	assert.True(t, env.exists("old/backup.zip"))

	// Запись помечена восстановленной
	active, err := env.ledger.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Повторное восстановление невозможно
	err = e.Restore(ctx, recID)
	require.Error(t, err)
}

func TestRestore_UnknownRecord(t *testing.T) {
	env := newTestEnv(t)
	e := env.executor(t, false)

	err := e.Restore(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestNewExecutor_SoftDeleteRequiresLedger(t *testing.T) {
	env := newTestEnv(t)

	_, err := NewExecutor(env.drive, nil, nil, "", false)
	require.Error(t, err)

	// Жесткое удаление без журнала допустимо
	_, err = NewExecutor(env.drive, nil, nil, "", true)
	require.NoError(t, err)
}

func TestApply_DeleteMissingFileIsNoop(t *testing.T) {
	env := newTestEnv(t)
	e := env.executor(t, false)

	plan := NewPlan(env.drive.Name())
	plan.Add(Decision{Path: "ghost.txt", Action: ActionDelete})

	result, err := e.Apply(context.Background(), plan, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
}
