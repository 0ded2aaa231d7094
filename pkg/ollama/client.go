// Package ollama предоставляет SDK для нативного API Ollama.
//
// Архитектура:
//
// Это **API SDK**, а не просто "тупой" HTTP клиент. Он предоставляет:
//   - HTTP клиент с retry, rate limiting и классификацией ошибок
//   - Высокоуровневые методы поверх management endpoints Ollama
//   - Health-check для ранней диагностики ("модель не скачана" понятнее,
//     чем таймаут посреди сортировки файлов)
//
// Сравнение с LLM провайдером:
//   - pkg/llm/openai ходит в OpenAI-совместимый endpoint (/v1) для инференса
//   - pkg/ollama ходит в нативный API (/api) для управления: список моделей,
//     метаданные, версия сервера
//
// Паттерн использования:
//   - pkg/ollama - переиспользуемый SDK
//   - pkg/tools/std и cmd/llm-ping - тонкие обертки поверх него
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ilkoid/shkaf-ai/pkg/config"
)

// ErrorType представляет тип ошибки при работе с API Ollama.
type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrModelNotFound
	ErrTimeout
	ErrNetwork
	ErrRateLimit
)

// String возвращает строковое представление типа ошибки.
func (e ErrorType) String() string {
	switch e {
	case ErrModelNotFound:
		return "model_not_found"
	case ErrTimeout:
		return "timeout"
	case ErrNetwork:
		return "network_error"
	case ErrRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// HumanMessage возвращает человекочитаемое сообщение для типа ошибки.
func (e ErrorType) HumanMessage() string {
	switch e {
	case ErrModelNotFound:
		return "Модель не найдена на сервере Ollama. Выполните ollama pull <модель>."
	case ErrTimeout:
		return "Превышено время ожидания. Сервер Ollama не отвечает или модель еще загружается в память."
	case ErrNetwork:
		return "Сервер Ollama недоступен. Проверьте что ollama serve запущен."
	case ErrRateLimit:
		return "Превышен лимит запросов к Ollama. Подождите перед следующей попыткой."
	default:
		return "Неизвестная ошибка при подключении к Ollama."
	}
}

// HTTPClient интерфейс для выполнения HTTP запросов.
//
// Позволяет мокировать HTTP клиент в тестах.
// Стандартный *http.Client реализует этот интерфейс.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ModelInfo описывает модель из ответа /api/tags.
type ModelInfo struct {
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
	ModifiedAt time.Time `json:"modified_at"`
	Details    struct {
		Family            string `json:"family"`
		ParameterSize     string `json:"parameter_size"`
		QuantizationLevel string `json:"quantization_level"`
	} `json:"details"`
}

// ShowResponse описывает метаданные модели из /api/show.
type ShowResponse struct {
	Modelfile    string         `json:"modelfile"`
	Parameters   string         `json:"parameters"`
	Template     string         `json:"template"`
	Capabilities []string       `json:"capabilities"`
	ModelInfo    map[string]any `json:"model_info"`
}

type Client struct {
	baseURL       string
	httpClient    HTTPClient // Интерфейс вместо конкретного типа для testability
	retryAttempts int        // Количество retry попыток
	rateLimit     int        // Запросов в минуту
	burst         int

	mu       sync.RWMutex
	limiters map[string]*rate.Limiter // endpoint → limiter
}

// NewFromConfig создает новый клиент из конфигурации.
//
// Поля с нулевыми значениями используют дефолтные значения через GetDefaults().
// Лимитеры создаются динамически при первом обращении к endpoint.
func NewFromConfig(cfg config.OllamaConfig) (*Client, error) {
	cfg = cfg.GetDefaults()

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama.base_url is required")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama.timeout format: %w", err)
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		retryAttempts: cfg.RetryAttempts,
		rateLimit:     cfg.RateLimit,
		burst:         cfg.BurstLimit,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

// ClassifyError классифицирует ошибку по типу для лучшей диагностики.
//
// Анализирует текст ошибки и возвращает соответствующий тип:
//   - ErrModelNotFound: ошибки 404, "model not found"
//   - ErrTimeout: timeout, deadline exceeded
//   - ErrNetwork: connection refused, no such host
//   - ErrRateLimit: ошибки 429, Too Many Requests
//   - ErrUnknown: все остальные ошибки
func (c *Client) ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrUnknown
	}

	errMsg := err.Error()
	errMsgLower := strings.ToLower(errMsg)

	if strings.Contains(errMsg, "404") ||
		strings.Contains(errMsgLower, "model") && strings.Contains(errMsgLower, "not found") {
		return ErrModelNotFound
	}

	if strings.Contains(errMsgLower, "timeout") ||
		strings.Contains(errMsg, "deadline exceeded") {
		return ErrTimeout
	}

	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no such host") {
		return ErrNetwork
	}

	if strings.Contains(errMsg, "429") ||
		strings.Contains(errMsg, "Too Many Requests") {
		return ErrRateLimit
	}

	return ErrUnknown
}

// ListModels возвращает список моделей, установленных на сервере.
//
// Использует GET /api/tags.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var resp struct {
		Models []ModelInfo `json:"models"`
	}
	if err := c.doRequest(ctx, "tags", httpRequest{
		method: "GET",
		path:   "/api/tags",
	}, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// ShowModel возвращает метаданные конкретной модели.
//
// Использует POST /api/show. Полезно для проверки capabilities
// (vision, embedding) перед тем как отправлять модели картинки.
func (c *Client) ShowModel(ctx context.Context, name string) (*ShowResponse, error) {
	if name == "" {
		return nil, fmt.Errorf("model name is required")
	}

	payload, err := json.Marshal(map[string]string{"model": name})
	if err != nil {
		return nil, fmt.Errorf("marshal show request: %w", err)
	}

	var resp ShowResponse
	if err := c.doRequest(ctx, "show", httpRequest{
		method: "POST",
		path:   "/api/show",
		body:   payload,
	}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version возвращает версию сервера Ollama.
//
// Использует GET /api/version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	if err := c.doRequest(ctx, "version", httpRequest{
		method: "GET",
		path:   "/api/version",
	}, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// HasModel проверяет что модель установлена на сервере.
//
// Сравнение по имени без учета тега: "qwen2.5" совпадает с "qwen2.5:14b",
// но "qwen2.5:14b" совпадает только с точным тегом.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}

	for _, m := range models {
		if m.Name == name || m.Model == name {
			return true, nil
		}
		// Имя без тега совпадает с любым тегом этой модели
		if !strings.Contains(name, ":") && strings.HasPrefix(m.Name, name+":") {
			return true, nil
		}
	}
	return false, nil
}

// Ping проверяет доступность сервера и возвращает его версию.
//
// Удобный health-check перед стартом агента.
func (c *Client) Ping(ctx context.Context) (string, error) {
	version, err := c.Version(ctx)
	if err != nil {
		errType := c.ClassifyError(err)
		return "", fmt.Errorf("%s: %w", errType.HumanMessage(), err)
	}
	return version, nil
}

// httpRequest описывает параметры HTTP запроса.
type httpRequest struct {
	method string
	path   string
	body   []byte
}

// doRequest выполняет HTTP запрос с retry логикой и rate limiting.
//
// Общий метод для всех endpoint-ов, реализующий retry loop, rate limiting
// и обработку 429 ответов.
func (c *Client) doRequest(ctx context.Context, endpoint string, req httpRequest, dest interface{}) error {
	limiter := c.getOrCreateLimiter(endpoint)

	var lastErr error

	// Retry loop
	for i := 0; i < c.retryAttempts; i++ {
		// 1. Ждем разрешения от лимитера (блокирует горутину, если превысили лимит)
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}

		var bodyReader io.Reader
		if req.body != nil {
			bodyReader = bytes.NewReader(req.body)
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, bodyReader)
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			continue // Сетевая ошибка, пробуем еще
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		// Обработка 429 (Too Many Requests)
		if resp.StatusCode == http.StatusTooManyRequests {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(1 * time.Second):
				continue
			}
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("ollama api error: status %d, body: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("unmarshal error: %w", err)
		}

		return nil // Успех
	}

	return fmt.Errorf("max retries exceeded, last error: %v", lastErr)
}

// getOrCreateLimiter возвращает существующий limiter для endpoint или создаёт новый.
func (c *Client) getOrCreateLimiter(endpoint string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limiter, exists := c.limiters[endpoint]; exists {
		return limiter
	}

	// rateLimit в запросах/минуту → rate.Limit в запросах/секунду
	ratePerSec := float64(c.rateLimit) / 60.0
	limiter := rate.NewLimiter(rate.Limit(ratePerSec), c.burst)
	c.limiters[endpoint] = limiter

	return limiter
}
