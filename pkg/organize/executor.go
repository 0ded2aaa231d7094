package organize

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/ilkoid/shkaf-ai/pkg/drive"
	"github.com/ilkoid/shkaf-ai/pkg/semindex"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// Executor применяет планы к диску.
//
// Единственное место в системе, которое мутирует файлы. Удаление по
// умолчанию мягкое: файл переезжает в корзину, запись уходит в журнал,
// восстановление возможно через Restore. Жесткое удаление включается
// явно через hardDelete.
type Executor struct {
	drive      drive.Drive
	index      *semindex.Index // Может быть nil: индекс опционален
	ledger     *TrashLedger    // Может быть nil только при hardDelete
	trashDir   string
	hardDelete bool
}

// NewExecutor создает Executor.
//
// trashDir — папка корзины на том же диске (например ".shkaf-trash").
// При hardDelete=false ledger обязателен.
func NewExecutor(d drive.Drive, index *semindex.Index, ledger *TrashLedger, trashDir string, hardDelete bool) (*Executor, error) {
	if !hardDelete && ledger == nil {
		return nil, fmt.Errorf("soft delete requires a trash ledger")
	}
	if !hardDelete && trashDir == "" {
		trashDir = ".shkaf-trash"
	}

	return &Executor{
		drive:      d,
		index:      index,
		ledger:     ledger,
		trashDir:   trashDir,
		hardDelete: hardDelete,
	}, nil
}

// ApplyResult — итог применения плана.
type ApplyResult struct {
	Applied int
	Skipped int
	Failed  int
	Trashed []TrashRecord // Записи корзины, созданные этим применением
}

// Apply выполняет все pending-решения плана.
//
// Статусы решений обновляются на месте. Ошибка одного решения не
// останавливает остальные: частично примененный план можно применить
// повторно, выполненные решения будут пропущены (идемпотентность).
//
// При dryRun ничего не выполняется, только логируется что было бы сделано.
func (e *Executor) Apply(ctx context.Context, plan *Plan, dryRun bool) (*ApplyResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	utils.Info("plan apply started",
		"plan_id", plan.ID,
		"decisions", len(plan.Decisions),
		"dry_run", dryRun)

	result := &ApplyResult{}

	for i := range plan.Decisions {
		d := &plan.Decisions[i]

		if d.Status != StatusPending {
			result.Skipped++
			continue
		}
		if d.Action == ActionKeep || d.Action == ActionFlag {
			d.Status = StatusApplied
			result.Skipped++
			continue
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		if dryRun {
			utils.Info("dry run, would apply", "action", string(d.Action), "path", d.Path, "dest", d.DestFolder)
			result.Skipped++
			continue
		}

		var err error
		switch d.Action {
		case ActionMove:
			err = e.applyMove(ctx, d)
		case ActionDelete:
			err = e.applyDelete(ctx, d, result)
		}

		if err != nil {
			d.Status = StatusFailed
			d.Error = err.Error()
			result.Failed++
			utils.Error("decision failed", "action", string(d.Action), "path", d.Path, "error", err)
			continue
		}

		d.Status = StatusApplied
		result.Applied++
	}

	utils.Info("plan apply finished",
		"plan_id", plan.ID,
		"applied", result.Applied,
		"skipped", result.Skipped,
		"failed", result.Failed)

	return result, nil
}

// applyMove перемещает файл и обновляет индекс.
func (e *Executor) applyMove(ctx context.Context, d *Decision) error {
	newPath := path.Join(d.DestFolder, path.Base(d.Path))

	// Файл уже на месте: решение выполнено ранее
	if _, err := e.drive.Stat(ctx, d.Path); errors.Is(err, drive.ErrNotFound) {
		if _, dstErr := e.drive.Stat(ctx, newPath); dstErr == nil {
			return nil
		}
		return err
	}

	if err := e.drive.Move(ctx, d.Path, d.DestFolder); err != nil {
		return err
	}

	if e.index != nil {
		if err := e.index.Rename(ctx, d.Path, newPath); err != nil {
			utils.Warn("index rename failed", "path", d.Path, "error", err)
		}
	}
	return nil
}

// applyDelete удаляет файл: в корзину или навсегда.
func (e *Executor) applyDelete(ctx context.Context, d *Decision, result *ApplyResult) error {
	if _, err := e.drive.Stat(ctx, d.Path); errors.Is(err, drive.ErrNotFound) {
		return nil // Уже удален: идемпотентность
	}

	if e.hardDelete {
		if err := e.drive.Delete(ctx, d.Path, false); err != nil {
			return err
		}
	} else {
		rec, err := e.moveToTrash(ctx, d.Path)
		if err != nil {
			return err
		}
		result.Trashed = append(result.Trashed, rec)
	}

	if e.index != nil {
		if err := e.index.Remove(ctx, d.Path); err != nil {
			utils.Warn("index remove failed", "path", d.Path, "error", err)
		}
	}
	return nil
}

// moveToTrash переносит файл в подпапку корзины и пишет запись в журнал.
//
// Каждая запись получает свою подпапку <trashDir>/<record_id>/, поэтому
// одноименные файлы из разных мест не конфликтуют.
func (e *Executor) moveToTrash(ctx context.Context, filePath string) (TrashRecord, error) {
	// Сначала журнал: осиротевший файл в корзине хуже, чем лишняя запись
	rec, err := e.ledger.Record(ctx, filePath, "")
	if err != nil {
		return TrashRecord{}, err
	}
	recFolder := path.Join(e.trashDir, rec.ID)

	trashPath := path.Join(recFolder, path.Base(filePath))
	if err := e.drive.Move(ctx, filePath, recFolder); err != nil {
		return TrashRecord{}, fmt.Errorf("move to trash: %w", err)
	}

	if err := e.ledger.setTrashPath(ctx, rec.ID, trashPath); err != nil {
		return TrashRecord{}, err
	}
	rec.TrashPath = trashPath
	return rec, nil
}

// Restore возвращает файл из корзины на прежнее место.
func (e *Executor) Restore(ctx context.Context, recordID string) error {
	if e.ledger == nil {
		return fmt.Errorf("trash ledger is not configured")
	}

	rec, err := e.ledger.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if rec.RestoredAt != nil {
		return fmt.Errorf("record '%s' already restored", recordID)
	}

	origFolder := path.Dir(rec.OriginalPath)
	if origFolder == "." {
		origFolder = ""
	}
	if err := e.drive.Move(ctx, rec.TrashPath, origFolder); err != nil {
		return fmt.Errorf("restore %s: %w", rec.OriginalPath, err)
	}

	// Пустая подпапка записи больше не нужна
	if err := e.drive.Delete(ctx, path.Dir(rec.TrashPath), true); err != nil {
		utils.Warn("cleanup trash folder failed", "path", path.Dir(rec.TrashPath), "error", err)
	}

	if err := e.ledger.MarkRestored(ctx, recordID); err != nil {
		return err
	}

	utils.Info("file restored", "path", rec.OriginalPath, "record_id", recordID)
	return nil
}

// setTrashPath дописывает фактический путь в корзине после перемещения.
func (l *TrashLedger) setTrashPath(ctx context.Context, id, trashPath string) error {
	if _, err := l.db.ExecContext(ctx,
		"UPDATE trash SET trash_path = ? WHERE id = ?", trashPath, id); err != nil {
		return fmt.Errorf("update trash path: %w", err)
	}
	return nil
}
