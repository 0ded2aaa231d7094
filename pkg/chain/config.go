package chain

import (
	"fmt"
	"time"
)

// DefaultMaxIterations — стандартный лимит итераций ReAct цикла.
const DefaultMaxIterations = 10

// DefaultChainTimeout — стандартный таймаут выполнения цикла.
const DefaultChainTimeout = 5 * time.Minute

// DefaultToolTimeout — защитный таймаут выполнения одного инструмента.
const DefaultToolTimeout = 30 * time.Second

// UserChoiceRequest — маркер передачи управления UI.
// LLM возвращает его вместо текста, когда пользователь должен
// подтвердить план или выбрать вариант.
const UserChoiceRequest = "__USER_CHOICE_REQUIRED__"

// DefaultSystemPrompt — базовый системный промпт агента-организатора.
const DefaultSystemPrompt = `Ты - AI-агент для наведения порядка в файлах пользователя.

Твои возможности через инструменты:
- сканировать папки и смотреть метаданные файлов
- читать содержимое текстовых файлов
- искать дубликаты по содержимому
- искать файлы по смыслу через семантический индекс
- строить план раскладки файлов по папкам
- применять план (перемещения и удаления) ТОЛЬКО после подтверждения пользователя

Правила:
1. НИКОГДА не перемещай и не удаляй файлы без построенного плана и явного подтверждения.
2. Удаление всегда мягкое: файл попадает в корзину и может быть восстановлен.
3. Отвечай кратко и по-русски.`

// ReActCycleConfig — конфигурация ReAct цикла.
//
// Может быть создана программно или заполнена из config.yaml.
type ReActCycleConfig struct {
	// SystemPrompt — базовый системный промпт агента.
	SystemPrompt string

	// MaxIterations — максимальное количество итераций цикла.
	MaxIterations int

	// Timeout — таймаут выполнения всего цикла.
	Timeout time.Duration

	// ToolTimeout — таймаут выполнения одного инструмента.
	ToolTimeout time.Duration
}

// NewReActCycleConfig создаёт конфигурацию с дефолтными значениями.
func NewReActCycleConfig() ReActCycleConfig {
	return ReActCycleConfig{
		SystemPrompt:  DefaultSystemPrompt,
		MaxIterations: DefaultMaxIterations,
		Timeout:       DefaultChainTimeout,
		ToolTimeout:   DefaultToolTimeout,
	}
}

// Validate проверяет конфигурацию на валидность.
func (c *ReActCycleConfig) Validate() error {
	if c.SystemPrompt == "" {
		return fmt.Errorf("system_prompt is required")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}
