package ui

import "github.com/charmbracelet/lipgloss"

// Палитра интерфейса. Цвета без полужирного для обычного текста,
// рамки панелей совпадают с цветом заголовка панели.
var (
	styleSystem = lipgloss.NewStyle().Foreground(lipgloss.Color("#86AAEC")).Bold(true)
	styleUser   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Bold(true)
	styleAgent  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F8F8F2"))
	styleTool   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BE9FD"))
	styleThink  = lipgloss.NewStyle().Foreground(lipgloss.Color("#BD93F9"))
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B"))
	styleErr    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
	stylePend   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))
	styleFaint  = lipgloss.NewStyle().Faint(true)

	stylePanelMemory = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#86AAEC")).
				Padding(1)

	stylePanelTrace = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F79AC8")).
			Padding(1)

	styleQuestionBox = lipgloss.NewStyle().
				Border(lipgloss.DoubleBorder()).
				BorderForeground(lipgloss.Color("#FFB86C")).
				Padding(1)
)
