// Package openai реализует адаптер LLM провайдера для OpenAI-совместимых API.
//
// Основной сценарий — локальная Ollama через её OpenAI-совместимый endpoint
// (http://localhost:11434/v1), но любой совместимый сервис тоже работает.
// Поддерживает Function Calling (tools), Vision запросы и embeddings.
package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sethvargo/go-retry"

	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/llm"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// Client реализует интерфейсы llm.Provider и llm.Embedder
// для OpenAI-совместимых API.
type Client struct {
	api      *openai.Client
	model    string
	defaults llm.GenerateOptions

	// retryAttempts — сколько раз повторяем транзиентные ошибки API.
	// Локальная Ollama под нагрузкой охотно отвечает 500/timeout.
	retryAttempts uint64
}

// NewClient создает клиент на основе конфигурации модели.
//
// Принимает ModelDef напрямую для упрощения создания клиентов через registry.
// BaseURL обязателен для non-OpenAI провайдеров (Ollama, DeepSeek и т.д.).
// APIKey может быть пустым — Ollama его не проверяет, но SDK требует непустую
// строку, поэтому подставляем заглушку.
func NewClient(modelDef config.ModelDef) *Client {
	apiKey := modelDef.APIKey
	if apiKey == "" {
		apiKey = "local"
	}

	cfg := openai.DefaultConfig(apiKey)
	if modelDef.BaseURL != "" {
		cfg.BaseURL = modelDef.BaseURL
	}

	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: modelDef.ModelName,
		defaults: llm.GenerateOptions{
			Model:       modelDef.ModelName,
			Temperature: modelDef.Temperature,
			MaxTokens:   modelDef.MaxTokens,
		},
		retryAttempts: 2,
	}
}

// Generate выполняет запрос к API и возвращает ответ модели.
//
// Поддерживает опциональную передачу definitions инструментов для
// Function Calling (opts может содержать []tools.ToolDefinition) и
// runtime переопределения параметров (llm.GenerateOption).
//
// Алгоритм:
//  1. Конвертирует внутренние сообщения в формат OpenAI SDK
//  2. Если переданы tools — добавляет их в запрос
//  3. Вызывает API (с retry на транзиентных ошибках)
//  4. Конвертирует ответ обратно в наш формат
//  5. Извлекает ToolCalls если модель решила вызвать функции
func (c *Client) Generate(ctx context.Context, messages []llm.Message, opts ...any) (llm.Message, error) {
	startTime := time.Now()

	var toolDefs []tools.ToolDefinition
	for _, opt := range opts {
		if defs, ok := opt.([]tools.ToolDefinition); ok {
			toolDefs = defs
		}
	}
	genOpts := llm.ApplyOptions(c.defaults, opts)

	utils.Debug("LLM request started",
		"model", genOpts.Model,
		"messages_count", len(messages),
		"tools_count", len(toolDefs))

	// 1. Конвертируем наши сообщения в формат OpenAI SDK
	openaiMsgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		openaiMsgs[i] = mapToOpenAI(m)
	}

	// 2. Создаём базовый запрос
	req := openai.ChatCompletionRequest{
		Model:       genOpts.Model,
		Messages:    openaiMsgs,
		Temperature: float32(genOpts.Temperature),
	}
	if genOpts.MaxTokens > 0 {
		req.MaxTokens = genOpts.MaxTokens
	}
	if genOpts.Format == "json_object" {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	// 3. Добавляем tools если переданы.
	// ToolChoice "auto" — LLM сама решает когда вызывать инструменты.
	if len(toolDefs) > 0 {
		req.Tools = convertToolsToOpenAI(toolDefs)
		req.ToolChoice = "auto"
	}

	// 4. Вызываем API с retry на транзиентных ошибках
	var resp openai.ChatCompletionResponse
	backoff := retry.WithMaxRetries(c.retryAttempts, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var apiErr error
		resp, apiErr = c.api.CreateChatCompletion(ctx, req)
		if apiErr != nil {
			return retry.RetryableError(apiErr)
		}
		return nil
	})
	if err != nil {
		utils.Error("LLM API request failed",
			"error", err,
			"model", genOpts.Model,
			"duration_ms", time.Since(startTime).Milliseconds())
		return llm.Message{}, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return llm.Message{}, fmt.Errorf("no choices in response")
	}

	// 5. Маппим ответ обратно в наш формат
	choice := resp.Choices[0].Message

	result := llm.Message{
		Role:    llm.Role(choice.Role),
		Content: choice.Content,
	}

	// 6. Извлекаем ToolCalls если модель решила вызвать функции
	if len(choice.ToolCalls) > 0 {
		result.ToolCalls = make([]llm.ToolCall, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			result.ToolCalls[i] = llm.ToolCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: tc.Function.Arguments,
			}
		}
	}

	utils.Info("LLM response received",
		"model", genOpts.Model,
		"tool_calls_count", len(result.ToolCalls),
		"content_length", len(result.Content),
		"duration_ms", time.Since(startTime).Milliseconds())

	return result, nil
}

// Embed возвращает векторы для набора текстов через embeddings endpoint.
//
// Реализует llm.Embedder. Порядок векторов соответствует порядку входа.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	}

	var resp openai.EmbeddingResponse
	backoff := retry.WithMaxRetries(c.retryAttempts, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var apiErr error
		resp, apiErr = c.api.CreateEmbeddings(ctx, req)
		if apiErr != nil {
			return retry.RetryableError(apiErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings api error: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings count mismatch: sent %d, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings response index out of range: %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	return vectors, nil
}

// mapToOpenAI конвертирует наше внутреннее сообщение в формат SDK.
// Здесь происходит магия Vision: если есть картинки, создаем MultiContent.
func mapToOpenAI(m llm.Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:       string(m.Role),
		ToolCallID: m.ToolCallID,
	}

	// Tool calls ассистента тоже нужно вернуть в API при следующем запросе
	if len(m.ToolCalls) > 0 {
		msg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			msg.ToolCalls[i] = openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Args,
				},
			}
		}
	}

	// Если картинок нет, отправляем просто текст
	if len(m.Images) == 0 {
		msg.Content = m.Content
		return msg
	}

	// Если есть картинки (Vision запрос)
	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: m.Content,
		},
	}

	for _, imgURL := range m.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    imgURL, // Ожидается base64 data-uri или http ссылка
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	msg.MultiContent = parts
	return msg
}

// convertToolsToOpenAI конвертирует определения инструментов во внутреннем
// формате в формат OpenAI Function Calling.
//
// ToolDefinition.Parameters уже является JSON Schema объектом,
// поэтому напрямую передаётся в SDK.
func convertToolsToOpenAI(defs []tools.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(defs))

	for i, def := range defs {
		result[i] = openai.Tool{
			Type: "function",
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}

	return result
}

// Проверки реализации интерфейсов
var (
	_ llm.Provider = (*Client)(nil)
	_ llm.Embedder = (*Client)(nil)
)
