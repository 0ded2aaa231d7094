// Package ui реализует Bubble Tea интерфейс агента-организатора.
//
// Архитектура: UI ничего не знает про LLM и инструменты. Он получает
// события через events.Subscriber, отправляет запросы через agent.Run
// и отвечает на вопросы агента через QuestionManager. Вопросы
// обнаруживаются поллингом: пока ask_user_question блокируется в своей
// горутине, UI раз в 200мс проверяет HasPendingQuestions.
package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/shkaf-ai/pkg/agent"
	"github.com/ilkoid/shkaf-ai/pkg/events"
	"github.com/ilkoid/shkaf-ai/pkg/questions"
	"github.com/ilkoid/shkaf-ai/pkg/todo"
)

// agentResultMsg приносит итог работы агента из горутины в Update.
type agentResultMsg struct {
	result string
	err    error
}

// eventMsg оборачивает событие агента для Bubble Tea.
type eventMsg struct {
	Event events.Event
}

// questionTickMsg — тик поллинга вопросов.
type questionTickMsg struct{}

// runState отслеживает запущен ли агент. Нужна синхронизация:
// флаг снимается из горутины агента, а читается из Update.
type runState struct {
	mu      sync.Mutex
	running bool
}

func (s *runState) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *runState) setRunning(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = v
}

// toolRun — запись панели Tool Trace.
type toolRun struct {
	Name     string
	Duration time.Duration
	Status   string // "running", "done"
}

// focusMode определяет куда идут нажатия клавиш.
type focusMode int

const (
	focusInput    focusMode = iota // Поле ввода
	focusViewport                  // Скролл лога
	focusQuestion                  // Выбор варианта ответа (клавиши 1-5)
)

// Model — состояние TUI.
type Model struct {
	viewport viewport.Model
	textarea textarea.Model

	client *agent.Agent
	sub    events.Subscriber

	run    *runState
	output []string
	trace  []toolRun
	todos  []todo.Task

	// Активный вопрос агента, nil когда вопросов нет
	question *questions.PendingQuestion

	modelName string
	width     int
	height    int
	ready     bool
	focus     focusMode
}

// New создает начальное состояние TUI.
func New(client *agent.Agent, modelName string) Model {
	ta := textarea.New()
	ta.Placeholder = "Что сделать? (например: разбери папку Downloads)..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 500
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	vp := viewport.New(0, 0)
	vp.SetContent(fmt.Sprintf("%s\n%s\n",
		styleSystem.Render("Shkaf AI"),
		styleSystem.Render("Агент наведения порядка в файлах. Введите задачу..."),
	))

	return Model{
		textarea:  ta,
		viewport:  vp,
		client:    client,
		sub:       client.Subscribe(),
		run:       &runState{},
		modelName: modelName,
		focus:     focusInput,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.waitForEvent(),
		questionTick(),
	)
}

// waitForEvent блокирующе читает следующее событие агента.
//
// Паттерн Bubble Tea: Cmd блокируется до события, Update перезапускает
// его после обработки. Закрытый канал завершает программу.
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.sub.Events()
		if !ok {
			return tea.QuitMsg{}
		}
		return eventMsg{Event: event}
	}
}

// questionTick планирует следующую проверку очереди вопросов.
func questionTick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg {
		return questionTickMsg{}
	})
}
