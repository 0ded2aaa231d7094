package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/ilkoid/shkaf-ai/pkg/todo"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()
	middle := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderMemoryPanel(),
		m.renderTracePanel(),
	)

	parts := []string{header, middle, m.viewport.View()}
	if m.question != nil {
		parts = append(parts, m.renderQuestion())
	}
	parts = append(parts, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	title := styleSystem.Render("Shkaf AI")
	modelInfo := styleFaint.Render("Model: " + m.modelName)

	drives := strings.Join(m.client.State().DriveNames(), ", ")
	driveInfo := styleFaint.Render(" | Drives: " + drives)

	return lipgloss.JoinHorizontal(lipgloss.Center, title, "   ", modelInfo, driveInfo)
}

// renderMemoryPanel показывает рабочую память: счетчики файлов по тегам
// и план задач агента.
func (m Model) renderMemoryPanel() string {
	width := m.width/2 - 4
	header := styleSystem.Render("🗂 Рабочая память")

	var lines []string
	lines = append(lines, header)

	files := m.client.State().GetFiles()
	if len(files) == 0 {
		lines = append(lines, styleFaint.Render("Файлы не отсканированы"))
	} else {
		tags := make([]string, 0, len(files))
		for tag := range files {
			tags = append(tags, tag)
		}
		sort.Strings(tags)

		for _, tag := range tags {
			var total int64
			for _, f := range files[tag] {
				total += f.Size
			}
			lines = append(lines, fmt.Sprintf("  %s: %d (%s)", tag, len(files[tag]), utils.FormatSize(total)))
		}
	}

	if len(m.todos) > 0 {
		lines = append(lines, "")
		lines = append(lines, styleSystem.Render("📋 План"))
		for i, t := range m.todos {
			prefix := stylePend.Render("○")
			switch t.Status {
			case todo.StatusDone:
				prefix = styleOK.Render("✓")
			case todo.StatusFailed:
				prefix = styleErr.Render("✗")
			}
			lines = append(lines, fmt.Sprintf("  %s [%d] %s", prefix, i+1, t.Description))
		}
	}

	return stylePanelMemory.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// renderTracePanel показывает последние выполненные инструменты.
func (m Model) renderTracePanel() string {
	width := m.width/2 - 4
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F79AC8")).Render("🔧 Инструменты")

	if len(m.trace) == 0 {
		return stylePanelTrace.Width(width).Render(lipgloss.JoinVertical(
			lipgloss.Left,
			header,
			styleFaint.Render("Пока ничего не вызывалось"),
		))
	}

	var lines []string
	lines = append(lines, header)

	start := 0
	if len(m.trace) > 8 {
		start = len(m.trace) - 8
	}
	for i := start; i < len(m.trace); i++ {
		t := m.trace[i]
		prefix := styleThink.Render("→")
		if t.Status == "done" {
			prefix = styleOK.Render("✓")
		}
		line := fmt.Sprintf("%s %s", prefix, t.Name)
		if t.Duration > 0 {
			line += styleFaint.Render(fmt.Sprintf(" (%v)", t.Duration.Round(time.Millisecond)))
		}
		lines = append(lines, line)
	}

	return stylePanelTrace.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// renderQuestion показывает активный вопрос агента с вариантами ответа.
func (m Model) renderQuestion() string {
	var lines []string
	lines = append(lines, styleWarn.Render(m.question.Question))
	lines = append(lines, "")

	for i, opt := range m.question.Options {
		line := fmt.Sprintf("  [%d] %s", i+1, opt.Label)
		if opt.Description != "" {
			line += styleFaint.Render(" — " + opt.Description)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "")
	lines = append(lines, styleFaint.Render("Нажмите цифру для выбора"))

	return styleQuestionBox.Width(m.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderFooter() string {
	inputStyle := lipgloss.NewStyle().Padding(1).Width(m.width - 4)

	var hint string
	switch {
	case m.question != nil:
		hint = styleWarn.Render("Агент ждет вашего ответа (клавиши 1-" + fmt.Sprint(len(m.question.Options)) + ")")
	case m.run.isRunning():
		hint = styleFaint.Render("(обработка...)")
	default:
		hint = styleFaint.Render("Enter - отправить, Esc - фокус, Ctrl+L - очистить, Ctrl+C - выход")
	}

	return lipgloss.JoinVertical(lipgloss.Left, inputStyle.Render(m.textarea.View()), hint)
}

// buildContent собирает содержимое viewport с переносом строк.
func (m Model) buildContent() string {
	if len(m.output) == 0 {
		return ""
	}

	width := m.width - 4
	if width < 40 {
		width = 40
	}
	return wordwrap.String(strings.Join(m.output, "\n"), width)
}
