package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ilkoid/shkaf-ai/pkg/events"
	"github.com/ilkoid/shkaf-ai/pkg/llm"
	"github.com/ilkoid/shkaf-ai/pkg/models"
	"github.com/ilkoid/shkaf-ai/pkg/state"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// Agent представляет интерфейс AI-агента для обработки запросов пользователя.
//
// ReActCycle реализует этот интерфейс: простые сценарии используют
// Run(query), сложные - Execute(input) с полным контролем.
type Agent interface {
	// Run выполняет обработку запроса пользователя.
	Run(ctx context.Context, query string) (string, error)

	// GetHistory возвращает копию истории диалога агента.
	GetHistory() []llm.Message
}

// ReActCycle — реализация ReAct (Reasoning + Acting) паттерна.
//
// Цикл:
// 1. LLM анализирует контекст и решает что делать (Reasoning)
// 2. Если нужны инструменты — выполняет их (Acting)
// 3. Повторяет пока не получен финальный ответ или не достигнут лимит
//
// ReActCycle является immutable шаблоном: runtime состояние каждого
// вызова живёт в своём ChainContext и клонированных шагах, поэтому
// конкурентные Execute() безопасны.
type ReActCycle struct {
	// Dependencies (immutable после Set*)
	modelRegistry *models.Registry
	registry      *tools.Registry
	state         *state.CoreState

	defaultModel string

	config ReActCycleConfig

	// mu защищает mutable часть config (emitter)
	mu      sync.RWMutex
	emitter events.Emitter

	// Шаблоны шагов (клонируются на каждый вызов)
	llmStep  *LLMInvocationStep
	toolStep *ToolExecutionStep
}

// NewReActCycle создаёт новый ReActCycle.
//
// Невалидная конфигурация заменяется дефолтной.
func NewReActCycle(config ReActCycleConfig) *ReActCycle {
	if err := config.Validate(); err != nil {
		utils.Warn("invalid react config, using defaults", "error", err)
		config = NewReActCycleConfig()
	}

	cycle := &ReActCycle{config: config}

	cycle.llmStep = &LLMInvocationStep{
		systemPrompt: config.SystemPrompt,
	}
	cycle.toolStep = &ToolExecutionStep{
		defaultToolTimeout: config.ToolTimeout,
	}

	return cycle
}

// SetModelRegistry устанавливает реестр моделей и дефолтную модель.
func (c *ReActCycle) SetModelRegistry(registry *models.Registry, defaultModel string) {
	c.modelRegistry = registry
	c.defaultModel = defaultModel
	c.llmStep.modelRegistry = registry
	c.llmStep.defaultModel = defaultModel
}

// SetRegistry устанавливает реестр инструментов.
func (c *ReActCycle) SetRegistry(registry *tools.Registry) {
	c.registry = registry
	c.llmStep.registry = registry
	c.toolStep.registry = registry
}

// SetState устанавливает core состояние агента.
func (c *ReActCycle) SetState(st *state.CoreState) {
	c.state = st
}

// SetEmitter устанавливает emitter для отправки событий в UI.
//
// Thread-safe: использует mutex.
func (c *ReActCycle) SetEmitter(emitter events.Emitter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitter = emitter
}

// SetToolTimeout переопределяет timeout конкретного инструмента.
func (c *ReActCycle) SetToolTimeout(toolName string, timeout time.Duration) {
	c.toolStep.SetToolTimeout(toolName, timeout)
}

// Execute выполняет ReAct цикл для подготовленного входа.
//
// На каждый вызов создаётся изолированное runtime состояние,
// поэтому конкурентные Execute() безопасны.
func (c *ReActCycle) Execute(ctx context.Context, input ChainInput) (ChainOutput, error) {
	if err := c.validateDependencies(); err != nil {
		return ChainOutput{}, fmt.Errorf("invalid dependencies: %w", err)
	}

	c.mu.RLock()
	emitter := c.emitter
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	// Клонируем шаги: изолируем emitter и per-run состояние
	llmStep := &LLMInvocationStep{
		modelRegistry: c.llmStep.modelRegistry,
		defaultModel:  c.llmStep.defaultModel,
		registry:      c.llmStep.registry,
		systemPrompt:  c.llmStep.systemPrompt,
		emitter:       emitter,
	}
	toolStep := &ToolExecutionStep{
		registry:           c.toolStep.registry,
		emitter:            emitter,
		defaultToolTimeout: c.toolStep.defaultToolTimeout,
		toolTimeouts:       c.toolStep.toolTimeouts,
	}

	chainCtx := NewChainContext(input)
	chainCtx.AppendMessage(llm.Message{
		Role:    llm.RoleUser,
		Content: input.UserQuery,
	})

	startTime := time.Now()
	finalSignal := SignalNone

	iterations := 0
	for ; iterations < c.config.MaxIterations; iterations++ {
		chainCtx.IncrementIteration()

		llmResult := llmStep.Execute(ctx, chainCtx)
		if llmResult.Action == ActionError || llmResult.Error != nil {
			return c.finishWithError(ctx, emitter, llmResult.Error)
		}

		if llmResult.Signal == SignalFinalAnswer || llmResult.Signal == SignalNeedUserInput {
			finalSignal = llmResult.Signal
			break
		}

		toolResult := toolStep.Execute(ctx, chainCtx)
		if toolResult.Action == ActionError || toolResult.Error != nil {
			return c.finishWithError(ctx, emitter, toolResult.Error)
		}
	}

	if iterations == c.config.MaxIterations {
		utils.Warn("react cycle hit iteration limit", "max_iterations", c.config.MaxIterations)
	}

	lastMsg := chainCtx.GetLastMessage()
	result := ""
	if lastMsg != nil {
		result = lastMsg.Content
	}

	utils.Debug("react cycle completed",
		"iterations", chainCtx.GetCurrentIteration(),
		"result_length", len(result),
		"signal", finalSignal,
		"duration_ms", time.Since(startTime).Milliseconds())

	if emitter != nil {
		emitter.Emit(ctx, events.Event{
			Type:      events.EventDone,
			Data:      events.MessageData{Content: result},
			Timestamp: time.Now(),
		})
	}

	return ChainOutput{
		Result:     result,
		Iterations: chainCtx.GetCurrentIteration(),
		Duration:   time.Since(startTime),
		Messages:   chainCtx.GetMessages(),
		Signal:     finalSignal,
	}, nil
}

// Run выполняет ReAct цикл для запроса пользователя.
//
// Реализует Agent interface. Сообщения выполнения (запрос, ответы
// ассистента, результаты инструментов) сохраняются в историю состояния.
func (c *ReActCycle) Run(ctx context.Context, query string) (string, error) {
	input := ChainInput{
		UserQuery: query,
		State:     c.state,
		Registry:  c.registry,
	}

	output, err := c.Execute(ctx, input)
	if err != nil {
		return "", err
	}

	// Переносим сообщения выполнения в историю сессии
	if c.state != nil {
		for _, msg := range output.Messages {
			c.state.AppendMessage(msg)
		}
	}

	return output.Result, nil
}

// GetHistory возвращает историю диалога из состояния.
func (c *ReActCycle) GetHistory() []llm.Message {
	if c.state == nil {
		return []llm.Message{}
	}
	return c.state.GetHistory()
}

// validateDependencies проверяет что все зависимости установлены.
func (c *ReActCycle) validateDependencies() error {
	if c.modelRegistry == nil {
		return fmt.Errorf("model registry is not set (call SetModelRegistry)")
	}
	if c.defaultModel == "" {
		return fmt.Errorf("default model is not set")
	}
	if c.registry == nil {
		return fmt.Errorf("tools registry is not set (call SetRegistry)")
	}
	// state опционален
	return nil
}

// finishWithError отправляет EventError и возвращает ошибку.
func (c *ReActCycle) finishWithError(ctx context.Context, emitter events.Emitter, err error) (ChainOutput, error) {
	if err == nil {
		err = fmt.Errorf("step failed")
	}
	if emitter != nil {
		emitter.Emit(ctx, events.Event{
			Type:      events.EventError,
			Data:      events.ErrorData{Err: err},
			Timestamp: time.Now(),
		})
	}
	return ChainOutput{}, err
}

var _ Agent = (*ReActCycle)(nil)
