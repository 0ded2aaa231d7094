// Package questions предоставляет типы для интерактивных вопросов пользователю.
//
// Используется инструментом ask_user_question: модель спрашивает
// подтверждение ("Удалить 12 дубликатов?") и блокируется до ответа
// пользователя в UI.
package questions

import (
	"encoding/json"
	"fmt"
	"time"
)

// QuestionOption представляет один вариант ответа на вопрос.
type QuestionOption struct {
	Label       string `json:"label"`       // Короткий текст ("Да, удалить")
	Description string `json:"description"` // Пояснение ("12 файлов уйдут в корзину")
}

// QuestionAnswer представляет ответ пользователя на вопрос.
type QuestionAnswer struct {
	Index       int       // Индекс выбранного варианта (0-based)
	Label       string    // Текст выбранного варианта
	Description string    // Описание выбранного варианта
	Timestamp   time.Time // Время ответа
}

// PendingQuestion представляет ожидающий ответ вопрос.
type PendingQuestion struct {
	ID        string
	Question  string
	Options   []QuestionOption
	CreatedAt time.Time
}

// Validate проверяет валидность вопроса.
func (pq *PendingQuestion) Validate(maxOptions int) error {
	if pq.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if len(pq.Options) == 0 {
		return fmt.Errorf("at least one option required")
	}
	if len(pq.Options) > maxOptions {
		return fmt.Errorf("too many options: %d (max %d)", len(pq.Options), maxOptions)
	}
	for i, opt := range pq.Options {
		if opt.Label == "" {
			return fmt.Errorf("option %d: label cannot be empty", i)
		}
	}
	return nil
}

// IsValidIndex проверяет что индекс в допустимом диапазоне.
func (pq *PendingQuestion) IsValidIndex(index int) bool {
	return index >= 0 && index < len(pq.Options)
}

// GetOption возвращает опцию по индексу.
func (pq *PendingQuestion) GetOption(index int) (QuestionOption, bool) {
	if !pq.IsValidIndex(index) {
		return QuestionOption{}, false
	}
	return pq.Options[index], true
}

// QuestionResult представляет исход вопроса: ответ, отмена или таймаут.
type QuestionResult struct {
	Status      string    `json:"status"` // "answered", "cancelled", "timeout"
	Index       int       `json:"selected_index"`
	Label       string    `json:"selected_label,omitempty"`
	Description string    `json:"selected_description,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"-"`
}

// Answered сообщает выбрал ли пользователь вариант.
func (qr *QuestionResult) Answered() bool {
	return qr.Status == "answered"
}

// NewAnsweredResult создает результат с ответом пользователя.
func NewAnsweredResult(answer QuestionAnswer) QuestionResult {
	return QuestionResult{
		Status:      "answered",
		Index:       answer.Index,
		Label:       answer.Label,
		Description: answer.Description,
		Timestamp:   answer.Timestamp,
	}
}

// NewCancelledResult создает результат отмены.
func NewCancelledResult(err string) QuestionResult {
	return QuestionResult{
		Status:    "cancelled",
		Error:     err,
		Timestamp: time.Now(),
	}
}

// NewTimeoutResult создает результат таймаута.
func NewTimeoutResult(timeout time.Duration) QuestionResult {
	return QuestionResult{
		Status:    "timeout",
		Error:     fmt.Sprintf("timeout_after_%s", timeout),
		Timestamp: time.Now(),
	}
}

// ToJSONString преобразует результат в JSON-строку для возврата в LLM.
func (qr *QuestionResult) ToJSONString() string {
	data, err := json.Marshal(qr)
	if err != nil {
		return fmt.Sprintf(`{"status":"error","error":"%s"}`, err)
	}
	return string(data)
}
