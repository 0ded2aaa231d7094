package chain

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ilkoid/shkaf-ai/pkg/llm"
	"github.com/ilkoid/shkaf-ai/pkg/state"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
)

// ChainInput — входные данные для выполнения цикла.
type ChainInput struct {
	// UserQuery — запрос пользователя
	UserQuery string

	// State — thread-safe core состояние агента (опционально).
	// Используется для построения контекста из рабочей памяти.
	State *state.CoreState

	// Registry — реестр инструментов
	Registry *tools.Registry
}

// ChainOutput — результат выполнения цикла.
type ChainOutput struct {
	// Result — финальный ответ агента
	Result string

	// Iterations — количество выполненных итераций
	Iterations int

	// Duration — общее время выполнения
	Duration time.Duration

	// Messages — сообщения этого выполнения (user, assistant, tool)
	Messages []llm.Message

	// Signal — типизированный сигнал завершения
	Signal ExecutionSignal
}

// ChainContext содержит состояние одного выполнения цикла.
//
// Thread-safe через sync.RWMutex. Все изменения состояния
// проходят через методы этого типа.
type ChainContext struct {
	mu sync.RWMutex

	// Входные данные (неизменяемые после создания)
	Input *ChainInput

	currentIteration int
	messages         []llm.Message
}

// NewChainContext создаёт новый контекст выполнения.
func NewChainContext(input ChainInput) *ChainContext {
	return &ChainContext{
		Input:    &input,
		messages: make([]llm.Message, 0, 10),
	}
}

// GetCurrentIteration возвращает номер текущей итерации (thread-safe).
func (c *ChainContext) GetCurrentIteration() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentIteration
}

// IncrementIteration увеличивает счётчик итераций (thread-safe).
func (c *ChainContext) IncrementIteration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentIteration++
	return c.currentIteration
}

// GetMessages возвращает копию сообщений выполнения (thread-safe).
func (c *ChainContext) GetMessages() []llm.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]llm.Message, len(c.messages))
	copy(result, c.messages)
	return result
}

// GetLastMessage возвращает копию последнего сообщения или nil (thread-safe).
func (c *ChainContext) GetLastMessage() *llm.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.messages) == 0 {
		return nil
	}
	msg := c.messages[len(c.messages)-1]
	return &msg
}

// AppendMessage добавляет сообщение в историю выполнения (thread-safe).
func (c *ChainContext) AppendMessage(msg llm.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// BuildContextMessages формирует сообщения для LLM (thread-safe).
//
// Если установлено состояние агента, базовый контекст берётся из него
// (системный промпт + рабочая память + todo + история сессии), иначе
// используется только системный промпт. Сообщения текущего выполнения
// добавляются в конец.
func (c *ChainContext) BuildContextMessages(systemPrompt string) []llm.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var base []llm.Message
	if c.Input.State != nil {
		base = c.Input.State.BuildAgentContext(systemPrompt)
	} else if systemPrompt != "" {
		base = []llm.Message{{
			Role:    llm.RoleSystem,
			Content: systemPrompt,
		}}
	}

	messages := make([]llm.Message, 0, len(base)+len(c.messages))
	messages = append(messages, base...)
	messages = append(messages, c.messages...)
	return messages
}

// String возвращает строковое представление контекста (для дебага).
func (c *ChainContext) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString("ChainContext{")
	sb.WriteString(fmt.Sprintf("Iteration: %d, ", c.currentIteration))
	sb.WriteString(fmt.Sprintf("Messages: %d", len(c.messages)))
	sb.WriteString("}")
	return sb.String()
}
