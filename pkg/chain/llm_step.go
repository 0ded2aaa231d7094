package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ilkoid/shkaf-ai/pkg/events"
	"github.com/ilkoid/shkaf-ai/pkg/llm"
	"github.com/ilkoid/shkaf-ai/pkg/models"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
)

// LLMInvocationStep — шаг вызова LLM в ReAct цикле.
//
// Формирует контекст (системный промпт + рабочая память + история),
// передаёт определения инструментов и разбирает ответ: tool calls
// продолжают цикл, текст без tool calls завершает его.
type LLMInvocationStep struct {
	// modelRegistry — реестр LLM провайдеров
	modelRegistry *models.Registry

	// defaultModel — имя модели по умолчанию для fallback
	defaultModel string

	// registry — реестр инструментов для получения определений
	registry *tools.Registry

	// systemPrompt — базовый системный промпт
	systemPrompt string

	// emitter — для отправки событий в UI (опционально)
	emitter events.Emitter

	startTime time.Time
}

// Name возвращает имя шага (для логирования).
func (s *LLMInvocationStep) Name() string {
	return "llm_invocation"
}

// Execute выполняет LLM вызов.
//
// Возвращает:
//   - ActionContinue/SignalNone — ответ содержит tool calls
//   - ActionBreak/SignalFinalAnswer — финальный текстовый ответ
//   - ActionBreak/SignalNeedUserInput — LLM запросил ввод пользователя
func (s *LLMInvocationStep) Execute(ctx context.Context, chainCtx *ChainContext) StepResult {
	s.startTime = time.Now()

	provider, modelDef, actualModel, err := s.modelRegistry.GetWithFallback(s.defaultModel, s.defaultModel)
	if err != nil {
		return StepResult{}.WithError(fmt.Errorf("failed to get model provider: %w", err))
	}

	messages := chainCtx.BuildContextMessages(s.systemPrompt)
	toolDefs := s.registry.GetDefinitions()

	generateOpts := []any{toolDefs}
	if modelDef.ModelName != "" {
		generateOpts = append(generateOpts, llm.WithModel(modelDef.ModelName))
	}
	if modelDef.Temperature != 0 {
		generateOpts = append(generateOpts, llm.WithTemperature(modelDef.Temperature))
	}
	if modelDef.MaxTokens != 0 {
		generateOpts = append(generateOpts, llm.WithMaxTokens(modelDef.MaxTokens))
	}

	response, err := provider.Generate(ctx, messages, generateOpts...)
	if err != nil {
		return StepResult{}.WithError(fmt.Errorf("LLM generation failed (model %s): %w", actualModel, err))
	}

	chainCtx.AppendMessage(llm.Message{
		Role:      llm.RoleAssistant,
		Content:   response.Content,
		ToolCalls: response.ToolCalls,
	})

	// Отправляем reasoning в UI
	if s.emitter != nil && response.Content != "" && response.Content != UserChoiceRequest {
		s.emitter.Emit(ctx, events.Event{
			Type:      events.EventThinking,
			Data:      events.ThinkingData{Content: response.Content},
			Timestamp: time.Now(),
		})
	}

	if len(response.ToolCalls) == 0 {
		if response.Content == UserChoiceRequest {
			return StepResult{Action: ActionBreak, Signal: SignalNeedUserInput}
		}
		return StepResult{Action: ActionBreak, Signal: SignalFinalAnswer}
	}

	return StepResult{Action: ActionContinue, Signal: SignalNone}
}

// GetDuration возвращает длительность выполнения шага.
func (s *LLMInvocationStep) GetDuration() time.Duration {
	return time.Since(s.startTime)
}
