package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/shkaf-ai/pkg/events"
	"github.com/ilkoid/shkaf-ai/pkg/questions"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if model, cmd, handled := m.handleKey(msg); handled {
			return model, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.viewport.Width = m.width - 4
		m.viewport.Height = m.height - 14
		m.textarea.SetWidth(m.width - 4)

	case agentResultMsg:
		m.run.setRunning(false)
		if msg.err != nil {
			m.append(styleErr.Render(fmt.Sprintf("Ошибка: %v", msg.err)))
		}
		m.todos = m.client.State().Todo.GetTasks()
		m.refreshViewport()

	case eventMsg:
		m.handleEvent(msg.Event)
		m.todos = m.client.State().Todo.GetTasks()
		m.refreshViewport()
		cmds = append(cmds, m.waitForEvent())

	case questionTickMsg:
		m.pollQuestion()
		cmds = append(cmds, questionTick())
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	if m.focus == focusInput {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.Type {
			case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown, tea.KeyHome, tea.KeyEnd:
				// Скролл уходит во viewport
			default:
				m.textarea, cmd = m.textarea.Update(msg)
				cmds = append(cmds, cmd)
			}
		} else {
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// handleKey обрабатывает горячие клавиши. handled=false отдает
// нажатие компонентам (textarea, viewport).
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	// В режиме вопроса работают только цифры и Ctrl+C
	if m.focus == focusQuestion {
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit, true
		case tea.KeyRunes:
			if len(msg.Runes) == 1 && msg.Runes[0] >= '1' && msg.Runes[0] <= '9' {
				index := int(msg.Runes[0] - '1')
				m.answerQuestion(index)
				return m, nil, true
			}
		}
		return m, nil, true
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit, true

	case tea.KeyEsc:
		if m.focus == focusInput {
			m.focus = focusViewport
			m.textarea.Blur()
		} else {
			m.focus = focusInput
			m.textarea.Focus()
		}
		return m, nil, true

	case tea.KeyCtrlL:
		m.output = nil
		m.trace = nil
		m.client.ClearHistory()
		m.append(styleSystem.Render("История очищена."))
		m.refreshViewport()
		return m, nil, true

	case tea.KeyEnter:
		if m.focus == focusInput && strings.TrimSpace(m.textarea.Value()) != "" && !m.run.isRunning() {
			query := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()

			m.append(styleUser.Render("Вы: " + query))
			m.run.setRunning(true)
			m.refreshViewport()

			return m, m.runAgent(query), true
		}
	}
	return m, nil, false
}

// handleEvent переводит событие агента в строки лога.
func (m *Model) handleEvent(event events.Event) {
	switch event.Type {
	case events.EventThinking:
		if data, ok := event.Data.(events.ThinkingData); ok && data.Content != "" {
			m.append(styleThink.Render("Думаю: " + data.Content))
		}

	case events.EventToolCall:
		if data, ok := event.Data.(events.ToolCallData); ok {
			m.trace = append(m.trace, toolRun{Name: data.ToolName, Status: "running"})
			m.append(styleTool.Render("→ " + data.ToolName))
		}

	case events.EventToolResult:
		if data, ok := event.Data.(events.ToolResultData); ok {
			for i := len(m.trace) - 1; i >= 0; i-- {
				if m.trace[i].Name == data.ToolName && m.trace[i].Status == "running" {
					m.trace[i].Duration = data.Duration
					m.trace[i].Status = "done"
					break
				}
			}
			m.append(styleOK.Render(fmt.Sprintf("✓ %s: %s", data.ToolName, truncate(data.Result, 400))))
		}

	case events.EventMessage:
		if data, ok := event.Data.(events.MessageData); ok {
			m.append(styleAgent.Render(data.Content))
		}

	case events.EventScanProgress:
		if data, ok := event.Data.(events.ScanProgressData); ok {
			m.append(styleFaint.Render(fmt.Sprintf("Сканирование %s: %d файлов", data.Drive, data.Scanned)))
		}

	case events.EventPlanReady:
		if data, ok := event.Data.(events.PlanReadyData); ok {
			m.append(styleWarn.Render(fmt.Sprintf("План готов: %d перемещений, %d удалений", data.Moves, data.Deletes)))
			m.append(styleAgent.Render(data.Description))
		}

	case events.EventApplyResult:
		if data, ok := event.Data.(events.ApplyResultData); ok {
			m.append(styleOK.Render(fmt.Sprintf("Применено: %d, пропущено: %d, ошибок: %d",
				data.Applied, data.Skipped, data.Failed)))
		}

	case events.EventError:
		if data, ok := event.Data.(events.ErrorData); ok {
			m.append(styleErr.Render(fmt.Sprintf("Ошибка: %v", data.Err)))
		}

	case events.EventDone:
		m.append(styleOK.Render("── Готово ──"))
	}
}

// pollQuestion проверяет очередь вопросов и включает режим выбора.
func (m *Model) pollQuestion() {
	qm := m.client.Questions()

	if m.question != nil {
		// Вопрос мог отмениться по таймауту
		if _, ok := qm.GetQuestion(m.question.ID); !ok {
			m.question = nil
			if m.focus == focusQuestion {
				m.focus = focusInput
				m.textarea.Focus()
			}
		}
		return
	}

	id := qm.GetFirstPendingID()
	if id == "" {
		return
	}
	q, ok := qm.GetQuestion(id)
	if !ok {
		return
	}

	m.question = q
	m.focus = focusQuestion
	m.textarea.Blur()
	m.append(styleWarn.Render("❓ " + q.Question))
	m.refreshViewport()
}

// answerQuestion отправляет выбранный вариант блокированному инструменту.
func (m *Model) answerQuestion(index int) {
	if m.question == nil {
		return
	}
	opt, ok := m.question.GetOption(index)
	if !ok {
		return
	}

	err := m.client.Questions().SubmitAnswer(m.question.ID, questions.QuestionAnswer{
		Index:       index,
		Label:       opt.Label,
		Description: opt.Description,
		Timestamp:   time.Now(),
	})
	if err != nil {
		utils.Warn("submit answer failed", "error", err)
		return
	}

	m.append(styleUser.Render("Выбрано: " + opt.Label))
	m.question = nil
	m.focus = focusInput
	m.textarea.Focus()
	m.refreshViewport()
}

// runAgent выполняет запрос в горутине Bubble Tea.
func (m Model) runAgent(query string) tea.Cmd {
	return func() tea.Msg {
		result, err := m.client.Run(context.Background(), query)
		return agentResultMsg{result: result, err: err}
	}
}

func (m *Model) append(s string) {
	m.output = append(m.output, s)
	if len(m.output) > 1000 {
		m.output = m.output[len(m.output)-1000:]
	}
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.buildContent())
	m.viewport.GotoBottom()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
