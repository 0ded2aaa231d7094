package organize

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// TrashRecord — запись журнала корзины.
//
// Файл при удалении переезжает в подпапку корзины с именем записи,
// поэтому RecordID однозначно восстанавливает файл на прежнее место.
type TrashRecord struct {
	ID           string
	OriginalPath string     // Где файл лежал до удаления
	TrashPath    string     // Где он лежит в корзине
	DeletedAt    time.Time
	RestoredAt   *time.Time // nil пока файл в корзине
}

// TrashLedger — sqlite журнал удалений.
//
// Журнал переживает перезапуски: restore работает и в следующей сессии.
type TrashLedger struct {
	db *sql.DB
}

// OpenTrashLedger открывает (или создает) файл журнала.
func OpenTrashLedger(path string) (*TrashLedger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trash ledger %s: %w", path, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trash (
	    id TEXT PRIMARY KEY,
	    original_path TEXT NOT NULL,
	    trash_path TEXT NOT NULL,
	    deleted_at TIMESTAMP NOT NULL,
	    restored_at TIMESTAMP
	);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init trash schema: %w", err)
	}

	return &TrashLedger{db: db}, nil
}

// Close закрывает журнал.
func (l *TrashLedger) Close() error {
	return l.db.Close()
}

// Record создает запись об удалении и возвращает её.
func (l *TrashLedger) Record(ctx context.Context, originalPath, trashPath string) (TrashRecord, error) {
	rec := TrashRecord{
		ID:           uuid.NewString(),
		OriginalPath: originalPath,
		TrashPath:    trashPath,
		DeletedAt:    time.Now().UTC(),
	}

	_, err := l.db.ExecContext(ctx,
		"INSERT INTO trash (id, original_path, trash_path, deleted_at) VALUES (?, ?, ?, ?)",
		rec.ID, rec.OriginalPath, rec.TrashPath, rec.DeletedAt)
	if err != nil {
		return TrashRecord{}, fmt.Errorf("record trash entry: %w", err)
	}
	return rec, nil
}

// Get возвращает запись по ID.
func (l *TrashLedger) Get(ctx context.Context, id string) (TrashRecord, error) {
	row := l.db.QueryRowContext(ctx,
		"SELECT id, original_path, trash_path, deleted_at, restored_at FROM trash WHERE id = ?", id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return TrashRecord{}, fmt.Errorf("trash record '%s' not found", id)
	}
	return rec, err
}

// ListActive возвращает записи, которые еще не восстановлены.
func (l *TrashLedger) ListActive(ctx context.Context) ([]TrashRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT id, original_path, trash_path, deleted_at, restored_at FROM trash WHERE restored_at IS NULL ORDER BY deleted_at")
	if err != nil {
		return nil, fmt.Errorf("list trash: %w", err)
	}
	defer rows.Close()

	var records []TrashRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkRestored помечает запись восстановленной.
func (l *TrashLedger) MarkRestored(ctx context.Context, id string) error {
	res, err := l.db.ExecContext(ctx,
		"UPDATE trash SET restored_at = ? WHERE id = ? AND restored_at IS NULL",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark restored: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("trash record '%s' not found or already restored", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (TrashRecord, error) {
	var rec TrashRecord
	var restored sql.NullTime
	if err := row.Scan(&rec.ID, &rec.OriginalPath, &rec.TrashPath, &rec.DeletedAt, &restored); err != nil {
		return TrashRecord{}, err
	}
	if restored.Valid {
		t := restored.Time
		rec.RestoredAt = &t
	}
	return rec, nil
}
