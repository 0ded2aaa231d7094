package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ilkoid/shkaf-ai/pkg/events"
	"github.com/ilkoid/shkaf-ai/pkg/llm"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// ToolExecutionStep — шаг выполнения инструментов из ответа LLM.
//
// Выполняет каждый tool call последовательно и добавляет результаты
// в историю выполнения как tool messages. Ошибки инструментов
// не прерывают цикл: они возвращаются LLM как текст результата,
// чтобы агент мог скорректировать свои действия.
type ToolExecutionStep struct {
	// registry — реестр инструментов
	registry *tools.Registry

	// emitter — для отправки событий в UI (опционально)
	emitter events.Emitter

	// defaultToolTimeout — защитный timeout выполнения инструмента.
	// Если tool не завершится за это время, он будет отменён.
	defaultToolTimeout time.Duration

	// toolTimeouts — переопределение timeout для конкретных инструментов
	toolTimeouts map[string]time.Duration

	startTime   time.Time
	toolResults []ToolResult
}

// ToolResult — результат выполнения одного инструмента.
type ToolResult struct {
	Name     string
	Args     string
	Result   string
	Duration int64
	Success  bool
	Error    error
}

// Name возвращает имя шага (для логирования).
func (s *ToolExecutionStep) Name() string {
	return "tool_execution"
}

// Execute выполняет все инструменты из последнего ответа LLM.
func (s *ToolExecutionStep) Execute(ctx context.Context, chainCtx *ChainContext) StepResult {
	s.startTime = time.Now()
	s.toolResults = make([]ToolResult, 0)

	lastMsg := chainCtx.GetLastMessage()
	if lastMsg == nil || lastMsg.Role != llm.RoleAssistant {
		return StepResult{}.WithError(fmt.Errorf("no assistant message found"))
	}

	if len(lastMsg.ToolCalls) == 0 {
		return StepResult{Action: ActionContinue, Signal: SignalNone}
	}

	for _, tc := range lastMsg.ToolCalls {
		select {
		case <-ctx.Done():
			return StepResult{}.WithError(ctx.Err())
		default:
		}

		s.emitToolCall(ctx, tc)

		result := s.executeToolCall(ctx, tc)
		s.toolResults = append(s.toolResults, result)

		s.emitToolResult(ctx, result)

		chainCtx.AppendMessage(llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: tc.ID,
			Content:    result.Result,
		})
	}

	return StepResult{Action: ActionContinue, Signal: SignalNone}
}

// executeToolCall выполняет один tool call с защитным timeout.
//
// "Raw In, String Out": инструмент получает JSON строку аргументов
// и возвращает строку результата. Ошибки инструментов возвращаются
// как текст, чтобы LLM мог их обработать.
func (s *ToolExecutionStep) executeToolCall(ctx context.Context, tc llm.ToolCall) ToolResult {
	start := time.Now()
	result := ToolResult{
		Name: tc.Name,
		Args: tc.Args,
	}

	cleanArgs := utils.CleanJsonBlock(tc.Args)

	tool, err := s.registry.Get(tc.Name)
	if err != nil {
		result.Success = false
		result.Error = err
		result.Result = fmt.Sprintf("Error: tool not found: %s", tc.Name)
		result.Duration = time.Since(start).Milliseconds()
		return result
	}

	timeout := s.defaultToolTimeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	if customTimeout, exists := s.toolTimeouts[tc.Name]; exists {
		timeout = customTimeout
	}

	// Интерактивные инструменты ждут реакции пользователя
	if tc.Name == "ask_user_question" || tc.Name == "apply_plan" {
		timeout = 5 * time.Minute
	}

	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type execResult struct {
		output string
		err    error
	}
	resultChan := make(chan execResult, 1)

	go func() {
		output, execErr := tool.Execute(toolCtx, cleanArgs)
		resultChan <- execResult{output, execErr}
	}()

	select {
	case <-toolCtx.Done():
		result.Success = false
		result.Duration = time.Since(start).Milliseconds()

		if toolCtx.Err() == context.DeadlineExceeded {
			result.Error = fmt.Errorf("tool execution timeout after %v", timeout)
			result.Result = fmt.Sprintf("Tool %q exceeded timeout of %v.", tc.Name, timeout)
		} else {
			result.Error = fmt.Errorf("tool execution cancelled: %w", toolCtx.Err())
			result.Result = "Tool execution was cancelled"
		}

		utils.Warn("tool execution timeout",
			"tool", tc.Name,
			"timeout", timeout,
			"duration_ms", result.Duration)
		return result

	case res := <-resultChan:
		result.Duration = time.Since(start).Milliseconds()
		if res.err != nil {
			result.Success = false
			result.Error = res.err
			result.Result = fmt.Sprintf("Error: %v", res.err)
		} else {
			result.Success = true
			result.Result = res.output
		}
		return result
	}
}

func (s *ToolExecutionStep) emitToolCall(ctx context.Context, tc llm.ToolCall) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(ctx, events.Event{
		Type:      events.EventToolCall,
		Data:      events.ToolCallData{ToolName: tc.Name, Args: tc.Args},
		Timestamp: time.Now(),
	})
}

func (s *ToolExecutionStep) emitToolResult(ctx context.Context, result ToolResult) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(ctx, events.Event{
		Type: events.EventToolResult,
		Data: events.ToolResultData{
			ToolName: result.Name,
			Result:   result.Result,
			Duration: time.Duration(result.Duration) * time.Millisecond,
		},
		Timestamp: time.Now(),
	})
}

// GetToolResults возвращает результаты инструментов последнего Execute.
func (s *ToolExecutionStep) GetToolResults() []ToolResult {
	return s.toolResults
}

// GetDuration возвращает длительность выполнения шага.
func (s *ToolExecutionStep) GetDuration() time.Duration {
	return time.Since(s.startTime)
}

// SetToolTimeout устанавливает индивидуальный timeout для инструмента.
//
// Вызывать до начала Execute().
func (s *ToolExecutionStep) SetToolTimeout(toolName string, timeout time.Duration) {
	if s.toolTimeouts == nil {
		s.toolTimeouts = make(map[string]time.Duration)
	}
	s.toolTimeouts[toolName] = timeout
}
