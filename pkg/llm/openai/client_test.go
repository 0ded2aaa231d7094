package openai

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/llm"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(config.ModelDef{
		Provider:    "ollama",
		ModelName:   "qwen2.5:14b",
		BaseURL:     "http://localhost:11434/v1",
		Temperature: 0.2,
		MaxTokens:   2048,
	})

	require.NotNil(t, c)
	assert.Equal(t, "qwen2.5:14b", c.model)
	assert.Equal(t, "qwen2.5:14b", c.defaults.Model)
	assert.Equal(t, 0.2, c.defaults.Temperature)
	assert.Equal(t, 2048, c.defaults.MaxTokens)
}

func TestMapToOpenAI_TextOnly(t *testing.T) {
	msg := mapToOpenAI(llm.Message{
		Role:    llm.RoleUser,
		Content: "разложи файлы в папке docs",
	})

	assert.Equal(t, "user", msg.Role)
	assert.Equal(t, "разложи файлы в папке docs", msg.Content)
	assert.Empty(t, msg.MultiContent)
}

func TestMapToOpenAI_WithImages(t *testing.T) {
	msg := mapToOpenAI(llm.Message{
		Role:    llm.RoleUser,
		Content: "что на фото?",
		Images:  []string{"data:image/jpeg;base64,/9j/4AAQ"},
	})

	assert.Empty(t, msg.Content)
	require.Len(t, msg.MultiContent, 2)
	assert.Equal(t, openai.ChatMessagePartTypeText, msg.MultiContent[0].Type)
	assert.Equal(t, "что на фото?", msg.MultiContent[0].Text)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, msg.MultiContent[1].Type)
	require.NotNil(t, msg.MultiContent[1].ImageURL)
	assert.Equal(t, "data:image/jpeg;base64,/9j/4AAQ", msg.MultiContent[1].ImageURL.URL)
}

func TestMapToOpenAI_ToolMessages(t *testing.T) {
	// Ответ ассистента с вызовом инструмента
	assistant := mapToOpenAI(llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "list_files", Args: `{"path":"docs"}`},
		},
	})
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "call_1", assistant.ToolCalls[0].ID)
	assert.Equal(t, "list_files", assistant.ToolCalls[0].Function.Name)
	assert.Equal(t, `{"path":"docs"}`, assistant.ToolCalls[0].Function.Arguments)

	// Результат инструмента привязывается через ToolCallID
	toolResult := mapToOpenAI(llm.Message{
		Role:       llm.RoleTool,
		Content:    `["a.txt","b.txt"]`,
		ToolCallID: "call_1",
	})
	assert.Equal(t, "tool", toolResult.Role)
	assert.Equal(t, "call_1", toolResult.ToolCallID)
}

func TestConvertToolsToOpenAI(t *testing.T) {
	defs := []tools.ToolDefinition{
		{
			Name:        "move_file",
			Description: "Перемещает файл в указанную папку",
			Parameters: tools.JSONSchema{
				"type": "object",
				"properties": map[string]any{
					"src": map[string]any{"type": "string"},
					"dst": map[string]any{"type": "string"},
				},
				"required": []string{"src", "dst"},
			},
		},
	}

	converted := convertToolsToOpenAI(defs)
	require.Len(t, converted, 1)
	assert.Equal(t, openai.ToolType("function"), converted[0].Type)
	require.NotNil(t, converted[0].Function)
	assert.Equal(t, "move_file", converted[0].Function.Name)
	assert.Equal(t, "Перемещает файл в указанную папку", converted[0].Function.Description)
}
