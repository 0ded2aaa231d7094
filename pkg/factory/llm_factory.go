package factory

import (
	"fmt"

	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/llm"
	"github.com/ilkoid/shkaf-ai/pkg/llm/openai"
)

// NewLLMProvider создает провайдера на основе конфигурации модели.
//
// Ollama подключается через свой OpenAI-совместимый endpoint,
// поэтому использует тот же клиент что и облачные провайдеры.
func NewLLMProvider(modelDef config.ModelDef) (llm.Provider, error) {
	switch modelDef.Provider {
	case "ollama", "openai", "deepseek":
		return openai.NewClient(modelDef), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s", modelDef.Provider)
	}
}

// NewEmbedder создает embedding провайдера на основе конфигурации модели.
//
// Отдельная функция, потому что не каждый провайдер умеет embeddings.
func NewEmbedder(modelDef config.ModelDef) (llm.Embedder, error) {
	switch modelDef.Provider {
	case "ollama", "openai":
		return openai.NewClient(modelDef), nil

	default:
		return nil, fmt.Errorf("provider '%s' does not support embeddings", modelDef.Provider)
	}
}
