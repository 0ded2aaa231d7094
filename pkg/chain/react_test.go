package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/llm"
	"github.com/ilkoid/shkaf-ai/pkg/models"
	"github.com/ilkoid/shkaf-ai/pkg/state"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
)

// mockProvider возвращает заранее заданные ответы по очереди.
type mockProvider struct {
	mu        sync.Mutex
	responses []llm.Message
	callCount int
	lastMsgs  []llm.Message
}

func (p *mockProvider) Generate(_ context.Context, messages []llm.Message, _ ...any) (llm.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastMsgs = messages
	if p.callCount >= len(p.responses) {
		return llm.Message{}, fmt.Errorf("no more scripted responses (call %d)", p.callCount+1)
	}
	resp := p.responses[p.callCount]
	p.callCount++
	return resp, nil
}

func (p *mockProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCount
}

// mockTool записывает переданные аргументы.
type mockTool struct {
	name     string
	result   string
	err      error
	delay    time.Duration
	mu       sync.Mutex
	lastArgs string
	calls    int
}

func (t *mockTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        t.name,
		Description: "test tool",
		Parameters: tools.JSONSchema{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

func (t *mockTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	t.mu.Lock()
	t.lastArgs = argsJSON
	t.calls++
	t.mu.Unlock()

	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return t.result, t.err
}

func newTestCycle(t *testing.T, provider llm.Provider, testTools ...tools.Tool) *ReActCycle {
	t.Helper()

	modelReg := models.NewRegistry()
	require.NoError(t, modelReg.Register("chat", config.ModelDef{ModelName: "test-model"}, provider))

	toolReg := tools.NewRegistry()
	for _, tool := range testTools {
		require.NoError(t, toolReg.Register(tool))
	}

	cycle := NewReActCycle(NewReActCycleConfig())
	cycle.SetModelRegistry(modelReg, "chat")
	cycle.SetRegistry(toolReg)
	return cycle
}

func TestReActCycle_FinalAnswerWithoutTools(t *testing.T) {
	provider := &mockProvider{
		responses: []llm.Message{
			{Role: llm.RoleAssistant, Content: "В папке 10 файлов."},
		},
	}
	cycle := newTestCycle(t, provider)

	output, err := cycle.Execute(context.Background(), ChainInput{UserQuery: "сколько файлов?"})
	require.NoError(t, err)

	assert.Equal(t, "В папке 10 файлов.", output.Result)
	assert.Equal(t, 1, output.Iterations)
	assert.Equal(t, SignalFinalAnswer, output.Signal)
	assert.Equal(t, 1, provider.calls())
}

func TestReActCycle_ToolCallThenAnswer(t *testing.T) {
	tool := &mockTool{name: "list_files", result: `{"files": ["a.txt", "b.txt"]}`}
	provider := &mockProvider{
		responses: []llm.Message{
			{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{
					{ID: "call_1", Name: "list_files", Args: `{"path": ""}`},
				},
			},
			{Role: llm.RoleAssistant, Content: "Нашел 2 файла: a.txt и b.txt."},
		},
	}
	cycle := newTestCycle(t, provider, tool)

	output, err := cycle.Execute(context.Background(), ChainInput{UserQuery: "что в папке?"})
	require.NoError(t, err)

	assert.Equal(t, "Нашел 2 файла: a.txt и b.txt.", output.Result)
	assert.Equal(t, 2, output.Iterations)
	assert.Equal(t, 1, tool.calls)
	assert.JSONEq(t, `{"path": ""}`, tool.lastArgs)

	// user -> assistant(tool call) -> tool result -> assistant(final)
	require.Len(t, output.Messages, 4)
	assert.Equal(t, llm.RoleUser, output.Messages[0].Role)
	assert.Equal(t, llm.RoleTool, output.Messages[2].Role)
	assert.Equal(t, "call_1", output.Messages[2].ToolCallID)
}

func TestReActCycle_ToolErrorReturnedToLLM(t *testing.T) {
	tool := &mockTool{name: "read_file", err: fmt.Errorf("file is binary")}
	provider := &mockProvider{
		responses: []llm.Message{
			{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{
					{ID: "call_1", Name: "read_file", Args: `{"path": "x.bin"}`},
				},
			},
			{Role: llm.RoleAssistant, Content: "Этот файл нельзя прочитать."},
		},
	}
	cycle := newTestCycle(t, provider, tool)

	output, err := cycle.Execute(context.Background(), ChainInput{UserQuery: "прочитай x.bin"})
	require.NoError(t, err)

	// Ошибка инструмента не роняет цикл, а уходит обратно в LLM
	assert.Equal(t, "Этот файл нельзя прочитать.", output.Result)
	assert.Contains(t, output.Messages[2].Content, "file is binary")
}

func TestReActCycle_UnknownToolReturnedToLLM(t *testing.T) {
	provider := &mockProvider{
		responses: []llm.Message{
			{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{
					{ID: "call_1", Name: "no_such_tool", Args: `{}`},
				},
			},
			{Role: llm.RoleAssistant, Content: "Такого инструмента нет."},
		},
	}
	cycle := newTestCycle(t, provider)

	output, err := cycle.Execute(context.Background(), ChainInput{UserQuery: "сделай что-нибудь"})
	require.NoError(t, err)
	assert.Contains(t, output.Messages[2].Content, "tool not found")
}

func TestReActCycle_MaxIterations(t *testing.T) {
	tool := &mockTool{name: "list_files", result: "[]"}

	// LLM бесконечно зовет инструмент
	responses := make([]llm.Message, 0, 20)
	for i := 0; i < 20; i++ {
		responses = append(responses, llm.Message{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{
				{ID: fmt.Sprintf("call_%d", i), Name: "list_files", Args: `{}`},
			},
		})
	}

	provider := &mockProvider{responses: responses}

	cfg := NewReActCycleConfig()
	cfg.MaxIterations = 3

	cycle := NewReActCycle(cfg)
	modelReg := models.NewRegistry()
	require.NoError(t, modelReg.Register("chat", config.ModelDef{ModelName: "test-model"}, provider))
	toolReg := tools.NewRegistry()
	require.NoError(t, toolReg.Register(tool))
	cycle.SetModelRegistry(modelReg, "chat")
	cycle.SetRegistry(toolReg)

	_, err := cycle.Execute(context.Background(), ChainInput{UserQuery: "зацикливайся"})
	require.NoError(t, err)
	assert.Equal(t, 3, provider.calls())
}

func TestReActCycle_UserChoiceSignal(t *testing.T) {
	provider := &mockProvider{
		responses: []llm.Message{
			{Role: llm.RoleAssistant, Content: UserChoiceRequest},
		},
	}
	cycle := newTestCycle(t, provider)

	output, err := cycle.Execute(context.Background(), ChainInput{UserQuery: "применяй план"})
	require.NoError(t, err)
	assert.Equal(t, SignalNeedUserInput, output.Signal)
}

func TestReActCycle_LLMErrorStopsCycle(t *testing.T) {
	provider := &mockProvider{} // без ответов - каждый вызов ошибка
	cycle := newTestCycle(t, provider)

	_, err := cycle.Execute(context.Background(), ChainInput{UserQuery: "привет"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM generation failed")
}

func TestReActCycle_ValidatesDependencies(t *testing.T) {
	cycle := NewReActCycle(NewReActCycleConfig())

	_, err := cycle.Execute(context.Background(), ChainInput{UserQuery: "привет"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model registry")
}

func TestReActCycle_RunAppendsToStateHistory(t *testing.T) {
	provider := &mockProvider{
		responses: []llm.Message{
			{Role: llm.RoleAssistant, Content: "Готово."},
		},
	}
	cycle := newTestCycle(t, provider)

	st := state.NewCoreState(&config.AppConfig{})
	cycle.SetState(st)

	result, err := cycle.Run(context.Background(), "наведи порядок")
	require.NoError(t, err)
	assert.Equal(t, "Готово.", result)

	history := st.GetHistory()
	require.Len(t, history, 2)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, "наведи порядок", history[0].Content)
	assert.Equal(t, "Готово.", history[1].Content)
}

func TestReActCycle_StateContextReachesLLM(t *testing.T) {
	provider := &mockProvider{
		responses: []llm.Message{
			{Role: llm.RoleAssistant, Content: "ок"},
		},
	}
	cycle := newTestCycle(t, provider)

	st := state.NewCoreState(&config.AppConfig{})
	cycle.SetState(st)

	_, err := cycle.Run(context.Background(), "первый запрос")
	require.NoError(t, err)

	// Системный промпт должен дойти до провайдера
	require.NotEmpty(t, provider.lastMsgs)
	assert.Equal(t, llm.RoleSystem, provider.lastMsgs[0].Role)
	assert.Contains(t, provider.lastMsgs[0].Content, "AI-агент")
}

func TestToolExecutionStep_Timeout(t *testing.T) {
	tool := &mockTool{name: "slow_tool", result: "ok", delay: 200 * time.Millisecond}

	toolReg := tools.NewRegistry()
	require.NoError(t, toolReg.Register(tool))

	step := &ToolExecutionStep{
		registry:           toolReg,
		defaultToolTimeout: 20 * time.Millisecond,
	}

	chainCtx := NewChainContext(ChainInput{})
	chainCtx.AppendMessage(llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "slow_tool", Args: `{}`},
		},
	})

	result := step.Execute(context.Background(), chainCtx)
	assert.Equal(t, ActionContinue, result.Action)

	results := step.GetToolResults()
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Result, "timeout")
}

func TestToolExecutionStep_CleansMarkdownArgs(t *testing.T) {
	tool := &mockTool{name: "echo", result: "ok"}

	toolReg := tools.NewRegistry()
	require.NoError(t, toolReg.Register(tool))

	step := &ToolExecutionStep{registry: toolReg, defaultToolTimeout: time.Second}

	chainCtx := NewChainContext(ChainInput{})
	chainCtx.AppendMessage(llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "echo", Args: "```json\n{\"path\": \"docs\"}\n```"},
		},
	})

	result := step.Execute(context.Background(), chainCtx)
	require.Equal(t, ActionContinue, result.Action)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal([]byte(tool.lastArgs), &parsed))
	assert.Equal(t, "docs", parsed["path"])
}

func TestStepResult_WithError(t *testing.T) {
	err := fmt.Errorf("test error")
	result := StepResult{Action: ActionContinue}.WithError(err)

	assert.Equal(t, ActionError, result.Action)
	assert.Equal(t, SignalError, result.Signal)
	assert.Equal(t, err, result.Error)
}

func TestExecutionSignal_String(t *testing.T) {
	assert.Equal(t, "None", SignalNone.String())
	assert.Equal(t, "FinalAnswer", SignalFinalAnswer.String())
	assert.Equal(t, "NeedUserInput", SignalNeedUserInput.String())
	assert.Equal(t, "Error", SignalError.String())
	assert.Equal(t, "Unknown(99)", ExecutionSignal(99).String())
}
