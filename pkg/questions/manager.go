package questions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// QuestionManager управляет интерактивными вопросами от LLM к пользователю.
//
// Потокобезопасен. Работает как координатор между Tool (задает вопрос)
// и UI (показывает вопрос).
//
// Паттерн:
// 1. Tool создает вопрос через CreateQuestion()
// 2. Tool блокируется на WaitForAnswer()
// 3. UI получает вопрос через GetQuestion()
// 4. Пользователь выбирает вариант
// 5. UI отправляет ответ через SubmitAnswer()
// 6. Tool разблокируется и получает результат
type QuestionManager struct {
	mu         sync.RWMutex
	pending    map[string]*PendingQuestion    // ID → вопрос
	responseCh map[string]chan QuestionResult // ID → канал для ответа
	maxOptions int
	timeout    time.Duration
}

// NewQuestionManager создает новый QuestionManager.
func NewQuestionManager(maxOptions int, timeout time.Duration) *QuestionManager {
	if maxOptions <= 0 {
		maxOptions = 10
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &QuestionManager{
		pending:    make(map[string]*PendingQuestion),
		responseCh: make(map[string]chan QuestionResult),
		maxOptions: maxOptions,
		timeout:    timeout,
	}
}

// CreateQuestion создает новый вопрос и возвращает его ID.
//
// После вызова нужно использовать WaitForAnswer() для получения ответа.
func (qm *QuestionManager) CreateQuestion(question string, options []QuestionOption) (string, error) {
	pq := &PendingQuestion{
		ID:        "q_" + uuid.NewString(),
		Question:  question,
		Options:   options,
		CreatedAt: time.Now(),
	}

	if err := pq.Validate(qm.maxOptions); err != nil {
		return "", fmt.Errorf("invalid question: %w", err)
	}

	qm.mu.Lock()
	defer qm.mu.Unlock()

	qm.pending[pq.ID] = pq
	qm.responseCh[pq.ID] = make(chan QuestionResult, 1)

	return pq.ID, nil
}

// WaitForAnswer блокируется до получения ответа от пользователя.
//
// Возвращает QuestionResult со статусом "answered", "cancelled" или
// "timeout". Контекст отменяет ожидание.
func (qm *QuestionManager) WaitForAnswer(ctx context.Context, questionID string) (QuestionResult, error) {
	qm.mu.RLock()
	ch, ok := qm.responseCh[questionID]
	qm.mu.RUnlock()

	if !ok {
		return QuestionResult{}, fmt.Errorf("question not found: %s", questionID)
	}

	select {
	case result := <-ch:
		qm.cleanup(questionID)
		return result, nil

	case <-time.After(qm.timeout):
		qm.cleanup(questionID)
		return NewTimeoutResult(qm.timeout), nil

	case <-ctx.Done():
		qm.cleanup(questionID)
		return NewCancelledResult("context_cancelled"), ctx.Err()
	}
}

func (qm *QuestionManager) cleanup(questionID string) {
	qm.mu.Lock()
	delete(qm.pending, questionID)
	delete(qm.responseCh, questionID)
	qm.mu.Unlock()
}

// GetQuestion возвращает ожидающий вопрос по ID.
//
// Используется UI для отображения вопроса пользователю.
func (qm *QuestionManager) GetQuestion(id string) (*PendingQuestion, bool) {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	pq, ok := qm.pending[id]
	return pq, ok
}

// SubmitAnswer отправляет ответ пользователя на вопрос.
//
// Вызывается из UI когда пользователь сделал выбор.
// Разблокирует WaitForAnswer() в Tool.
func (qm *QuestionManager) SubmitAnswer(questionID string, answer QuestionAnswer) error {
	qm.mu.RLock()
	ch, ok := qm.responseCh[questionID]
	pq, hasQuestion := qm.pending[questionID]
	qm.mu.RUnlock()

	if !ok || !hasQuestion {
		return fmt.Errorf("question not found: %s", questionID)
	}

	if !pq.IsValidIndex(answer.Index) {
		return fmt.Errorf("invalid index: %d (valid: 0-%d)", answer.Index, len(pq.Options)-1)
	}

	if opt, ok := pq.GetOption(answer.Index); ok {
		answer.Label = opt.Label
		answer.Description = opt.Description
	}
	if answer.Timestamp.IsZero() {
		answer.Timestamp = time.Now()
	}

	// Неблокирующая отправка в buffered channel
	select {
	case ch <- NewAnsweredResult(answer):
		return nil
	default:
		return fmt.Errorf("response channel closed or full")
	}
}

// Cancel отменяет вопрос без ответа.
//
// Используется при Ctrl+C или других прерываниях.
func (qm *QuestionManager) Cancel(questionID string, reason string) {
	qm.mu.RLock()
	ch, ok := qm.responseCh[questionID]
	qm.mu.RUnlock()

	if ok {
		select {
		case ch <- NewCancelledResult(reason):
		default:
		}
	}
}

// HasPendingQuestions проверяет есть ли ожидающие вопросы.
func (qm *QuestionManager) HasPendingQuestions() bool {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return len(qm.pending) > 0
}

// GetFirstPendingID возвращает ID первого ожидающего вопроса.
//
// Возвращает пустую строку если нет ожидающих вопросов.
func (qm *QuestionManager) GetFirstPendingID() string {
	qm.mu.RLock()
	defer qm.mu.RUnlock()

	for id := range qm.pending {
		return id
	}
	return ""
}
