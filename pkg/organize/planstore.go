package organize

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// PlanStore — sqlite хранилище планов изменений.
//
// План переживает перезапуски процесса: построенный одной командой CLI
// план можно применить следующей по его ID. Решения хранятся JSON-блобом,
// схема не зависит от состава Decision.
type PlanStore struct {
	db *sql.DB
}

// OpenPlanStore открывает (или создает) файл хранилища планов.
func OpenPlanStore(path string) (*PlanStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open plan store %s: %w", path, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS plans (
	    id TEXT PRIMARY KEY,
	    root TEXT NOT NULL,
	    created_at TIMESTAMP NOT NULL,
	    decisions TEXT NOT NULL
	);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init plan schema: %w", err)
	}

	return &PlanStore{db: db}, nil
}

// Close закрывает хранилище.
func (s *PlanStore) Close() error {
	return s.db.Close()
}

// Save сохраняет план. Повторное сохранение с тем же ID заменяет запись.
func (s *PlanStore) Save(ctx context.Context, plan *Plan) error {
	decisions, err := json.Marshal(plan.Decisions)
	if err != nil {
		return fmt.Errorf("marshal decisions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO plans (id, root, created_at, decisions) VALUES (?, ?, ?, ?)",
		plan.ID, plan.Root, plan.CreatedAt.UTC(), string(decisions))
	if err != nil {
		return fmt.Errorf("save plan %s: %w", plan.ID, err)
	}
	return nil
}

// Get возвращает план по ID.
func (s *PlanStore) Get(ctx context.Context, id string) (*Plan, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, root, created_at, decisions FROM plans WHERE id = ?", id)

	plan, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("plan '%s' not found", id)
	}
	return plan, err
}

// Latest возвращает последний созданный план или nil, если хранилище пусто.
func (s *PlanStore) Latest(ctx context.Context) (*Plan, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, root, created_at, decisions FROM plans ORDER BY created_at DESC LIMIT 1")

	plan, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return plan, err
}

func scanPlan(row *sql.Row) (*Plan, error) {
	var plan Plan
	var decisions string
	if err := row.Scan(&plan.ID, &plan.Root, &plan.CreatedAt, &decisions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(decisions), &plan.Decisions); err != nil {
		return nil, fmt.Errorf("parse decisions of plan %s: %w", plan.ID, err)
	}
	return &plan, nil
}
