// Package events предоставляет интерфейсы для реализации Port & Adapter паттерна.
//
// Это Port (интерфейс) для подписки на события от агента-организатора.
// Позволяет подключать любые UI (TUI, CLI) без изменения библиотечной логики.
//
// # Port & Adapter Pattern
//
//	Port — это интерфейс (Emitter, Subscriber), определённый в библиотеке.
//	Adapter — это реализация интерфейса для конкретного UI.
//
// # Basic Usage
//
//	// В библиотеке (pkg/agent/):
//	client.SetEmitter(events.NewChanEmitter(64))
//
//	// В UI (internal/ui/):
//	sub := client.Subscribe()
//	for event := range sub.Events() {
//	    switch event.Type {
//	    case events.EventThinking:
//	        ui.showSpinner()
//	    case events.EventMessage:
//	        ui.showMessage(event.Data)
//	    }
//	}
//
// # Thread Safety
//
// Все реализации интерфейсов должны быть thread-safe.
package events

import (
	"context"
	"time"
)

// EventType представляет тип события от агента.
type EventType string

const (
	// EventThinking отправляется когда агент начинает думать.
	EventThinking EventType = "thinking"

	// EventToolCall отправляется когда агент вызывает инструмент.
	EventToolCall EventType = "tool_call"

	// EventToolResult отправляется когда инструмент вернул результат.
	EventToolResult EventType = "tool_result"

	// EventMessage отправляется когда агент генерирует сообщение.
	EventMessage EventType = "message"

	// EventScanProgress отправляется во время сканирования диска.
	EventScanProgress EventType = "scan_progress"

	// EventPlanReady отправляется когда готов план изменений.
	EventPlanReady EventType = "plan_ready"

	// EventApplyResult отправляется после применения плана.
	EventApplyResult EventType = "apply_result"

	// EventQuestion отправляется когда агент ждет ответа пользователя.
	EventQuestion EventType = "question"

	// EventError отправляется при ошибке.
	EventError EventType = "error"

	// EventDone отправляется когда агент завершил работу.
	EventDone EventType = "done"
)

// EventData — sealed interface для данных события.
//
// Только типы из пакета events могут реализовать этот интерфейс,
// что обеспечивает compile-time type safety.
type EventData interface {
	eventData()
}

// ThinkingData содержит данные для EventThinking.
type ThinkingData struct {
	Content string
}

func (ThinkingData) eventData() {}

// ToolCallData содержит данные о вызове инструмента.
type ToolCallData struct {
	ToolName string
	Args     string
}

func (ToolCallData) eventData() {}

// ToolResultData содержит результат выполнения инструмента.
type ToolResultData struct {
	ToolName string
	Result   string
	Duration time.Duration
}

func (ToolResultData) eventData() {}

// MessageData содержит данные для EventMessage и EventDone.
type MessageData struct {
	Content string
}

func (MessageData) eventData() {}

// ScanProgressData содержит прогресс сканирования диска.
type ScanProgressData struct {
	Drive   string // Имя диска
	Scanned int    // Обработано файлов
	Total   int    // Всего файлов (0 если неизвестно)
}

func (ScanProgressData) eventData() {}

// PlanReadyData содержит данные для EventPlanReady.
type PlanReadyData struct {
	PlanID      string
	Description string // Человекочитаемый текст плана
	Moves       int
	Deletes     int
	Mutating    bool // План требует подтверждения
}

func (PlanReadyData) eventData() {}

// ApplyResultData содержит итог применения плана.
type ApplyResultData struct {
	PlanID  string
	Applied int
	Skipped int
	Failed  int
}

func (ApplyResultData) eventData() {}

// QuestionData содержит данные для EventQuestion.
type QuestionData struct {
	QuestionID string
	Question   string
	Options    []string
}

func (QuestionData) eventData() {}

// ErrorData содержит данные для EventError.
type ErrorData struct {
	Err error
}

func (ErrorData) eventData() {}

// Event представляет событие от агента.
//
// Data содержит типизированные данные события (EventData).
// Для каждого EventType существует соответствующий тип данных:
//   - EventThinking: ThinkingData (reasoning текст от LLM)
//   - EventToolCall: ToolCallData (имя инструмента, аргументы)
//   - EventToolResult: ToolResultData (результат выполнения)
//   - EventMessage: MessageData (ответ агента)
//   - EventScanProgress: ScanProgressData (прогресс сканирования)
//   - EventPlanReady: PlanReadyData (план ждет подтверждения)
//   - EventApplyResult: ApplyResultData (итог применения)
//   - EventQuestion: QuestionData (вопрос пользователю)
//   - EventError: ErrorData (ошибка)
//   - EventDone: MessageData (финальный ответ)
type Event struct {
	Type      EventType
	Data      EventData
	Timestamp time.Time
}

// Emitter — это Port для отправки событий.
//
// Emitter инвертирует зависимость: библиотека (pkg/agent) зависит
// от этого интерфейса, а не от конкретного UI.
type Emitter interface {
	// Emit отправляет событие.
	//
	// Если context отменён, операция должна прерваться.
	Emit(ctx context.Context, event Event)
}

// Subscriber позволяет читать события из канала.
type Subscriber interface {
	// Events возвращает read-only канал событий.
	//
	// Канал закрывается при вызове Close().
	Events() <-chan Event

	// Close закрывает канал событий и освобождает ресурсы.
	Close()
}
