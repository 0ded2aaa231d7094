// Интерфейс Провайдера через который работает всё приложение.

package llm

import "context"

// Provider — абстракция над LLM API.
//
// Все адаптеры (OpenAI-совместимые и любые будущие) реализуют этот
// интерфейс. Приложение никогда не зависит от SDK напрямую.
type Provider interface {
	// Generate принимает контекст и историю сообщений.
	// Возвращает ответ модели в унифицированном формате Message.
	//
	// opts — опциональные параметры:
	//   - []tools.ToolDefinition: определения функций для Function Calling
	//   - GenerateOption: runtime переопределения (модель, температура и т.д.)
	Generate(ctx context.Context, messages []Message, opts ...any) (Message, error)
}

// Embedder — абстракция над embedding API.
//
// Отдельный интерфейс от Provider: не каждая модель умеет embeddings,
// и semindex зависит только от этой способности.
type Embedder interface {
	// Embed возвращает векторы для набора текстов (порядок сохраняется).
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
