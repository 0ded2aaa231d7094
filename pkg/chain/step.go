// Package chain предоставляет ReAct цикл агента-организатора.
//
// Цикл компонуется из изолированных шагов (Step): вызов LLM,
// выполнение инструментов. Каждый шаг работает с ChainContext
// через thread-safe методы и возвращает типизированный результат.
package chain

import "fmt"

// NextAction определяет поведение цикла после выполнения Step.
type NextAction int

const (
	// ActionContinue — продолжить выполнение (следующий шаг или итерация).
	ActionContinue NextAction = iota

	// ActionBreak — прервать цикл и вернуть результат.
	ActionBreak

	// ActionError — прервать выполнение с ошибкой.
	ActionError
)

// String возвращает строковое представление NextAction (для дебага).
func (a NextAction) String() string {
	switch a {
	case ActionContinue:
		return "Continue"
	case ActionBreak:
		return "Break"
	case ActionError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// ExecutionSignal — типизированный сигнал завершения шага.
//
// Дополняет NextAction семантикой: почему цикл прерывается.
type ExecutionSignal int

const (
	// SignalNone — особых условий нет, обычное продолжение.
	SignalNone ExecutionSignal = iota

	// SignalFinalAnswer — LLM вернул финальный ответ (без tool calls).
	SignalFinalAnswer

	// SignalNeedUserInput — агент передаёт управление пользователю
	// (подтверждение плана, выбор варианта).
	SignalNeedUserInput

	// SignalError — шаг завершился ошибкой.
	SignalError
)

// String возвращает строковое представление сигнала (для логов).
func (s ExecutionSignal) String() string {
	switch s {
	case SignalNone:
		return "None"
	case SignalFinalAnswer:
		return "FinalAnswer"
	case SignalNeedUserInput:
		return "NeedUserInput"
	case SignalError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// StepResult — результат выполнения одного шага цикла.
type StepResult struct {
	Action NextAction
	Signal ExecutionSignal
	Error  error
}

// WithError помечает результат как ошибочный.
func (r StepResult) WithError(err error) StepResult {
	r.Action = ActionError
	r.Signal = SignalError
	r.Error = err
	return r
}

// String возвращает строковое представление результата (для логов).
func (r StepResult) String() string {
	return fmt.Sprintf("StepResult{Action: %s, Signal: %s, Error: %v}", r.Action, r.Signal, r.Error)
}
