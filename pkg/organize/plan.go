// Package organize превращает решения агента в план изменений и применяет его.
//
// Главный инвариант: файлы на диске меняет только Apply. Всё остальное
// (классификация, дедупликация, предложения модели) производит Plan,
// который пользователь видит и подтверждает до выполнения.
package organize

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// Action — тип решения по файлу.
type Action string

const (
	// ActionKeep — файл остается на месте.
	ActionKeep Action = "keep"
	// ActionMove — файл переезжает в DestFolder.
	ActionMove Action = "move"
	// ActionDelete — файл удаляется (по умолчанию в корзину).
	ActionDelete Action = "delete"
	// ActionFlag — файл помечен для ручного разбора.
	ActionFlag Action = "flag"
)

// DecisionStatus — состояние решения в жизненном цикле плана.
type DecisionStatus string

const (
	StatusPending DecisionStatus = "pending"
	StatusApplied DecisionStatus = "applied"
	StatusSkipped DecisionStatus = "skipped"
	StatusFailed  DecisionStatus = "failed"
)

// Decision — одно решение по одному файлу.
//
// В плане на каждый файл ровно одно решение: конфликтующие источники
// (правила, дедупликатор, модель) разрешаются при сборке плана.
type Decision struct {
	Path       string         `json:"path"`
	Action     Action         `json:"action"`
	DestFolder string         `json:"dest_folder,omitempty"` // Только для move
	Reason     string         `json:"reason,omitempty"`      // Зачем: показывается пользователю
	Confidence float64        `json:"confidence,omitempty"`  // 0..1, уверенность источника
	Status     DecisionStatus `json:"status"`
	Error      string         `json:"error,omitempty"` // Заполняется при Status=failed
}

// Plan — упорядоченный набор решений по файлам одного диска.
type Plan struct {
	ID        string     `json:"id"`
	Root      string     `json:"root"` // Имя диска (drive.Name())
	CreatedAt time.Time  `json:"created_at"`
	Decisions []Decision `json:"decisions"`
}

// NewPlan создает пустой план для диска.
func NewPlan(root string) *Plan {
	return &Plan{
		ID:        uuid.NewString(),
		Root:      root,
		CreatedAt: time.Now(),
	}
}

// Add добавляет решение. Повторное решение по тому же пути заменяет
// прежнее: последний источник побеждает.
func (p *Plan) Add(d Decision) {
	if d.Status == "" {
		d.Status = StatusPending
	}
	for i := range p.Decisions {
		if p.Decisions[i].Path == d.Path {
			p.Decisions[i] = d
			return
		}
	}
	p.Decisions = append(p.Decisions, d)
}

// Summary — счетчики плана для UI и логов.
type Summary struct {
	Keeps   int
	Moves   int
	Deletes int
	Flags   int
}

// Summarize считает решения по типам.
func (p *Plan) Summarize() Summary {
	var s Summary
	for _, d := range p.Decisions {
		switch d.Action {
		case ActionMove:
			s.Moves++
		case ActionDelete:
			s.Deletes++
		case ActionFlag:
			s.Flags++
		default:
			s.Keeps++
		}
	}
	return s
}

// Mutating возвращает true если план меняет диск (есть move или delete).
// Такой план требует подтверждения пользователя перед Apply.
func (p *Plan) Mutating() bool {
	for _, d := range p.Decisions {
		if d.Action == ActionMove || d.Action == ActionDelete {
			return true
		}
	}
	return false
}

// Describe возвращает многострочное описание плана для показа пользователю.
func (p *Plan) Describe() string {
	s := p.Summarize()
	out := fmt.Sprintf("План %s (%s): переместить %d, удалить %d, оставить %d, на разбор %d\n",
		p.ID[:8], p.Root, s.Moves, s.Deletes, s.Keeps, s.Flags)

	for _, d := range p.Decisions {
		switch d.Action {
		case ActionMove:
			out += fmt.Sprintf("  move   %s -> %s/", d.Path, d.DestFolder)
		case ActionDelete:
			out += fmt.Sprintf("  delete %s", d.Path)
		case ActionFlag:
			out += fmt.Sprintf("  flag   %s", d.Path)
		default:
			continue // keep не показываем, их обычно большинство
		}
		if d.Reason != "" {
			out += "  (" + d.Reason + ")"
		}
		out += "\n"
	}
	return out
}

// Validate проверяет целостность плана перед применением.
func (p *Plan) Validate() error {
	seen := make(map[string]bool, len(p.Decisions))
	for _, d := range p.Decisions {
		if d.Path == "" {
			return fmt.Errorf("plan %s: decision with empty path", p.ID)
		}
		if seen[d.Path] {
			return fmt.Errorf("plan %s: duplicate decision for %q", p.ID, d.Path)
		}
		seen[d.Path] = true

		switch d.Action {
		case ActionKeep, ActionDelete, ActionFlag:
		case ActionMove:
			if d.DestFolder == "" {
				return fmt.Errorf("plan %s: move %q without dest folder", p.ID, d.Path)
			}
		default:
			return fmt.Errorf("plan %s: unknown action %q for %q", p.ID, d.Action, d.Path)
		}
	}

	utils.Debug("plan validated", "plan_id", p.ID, "decisions", len(p.Decisions))
	return nil
}
