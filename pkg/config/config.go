package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig — корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	Models          ModelsConfig          `yaml:"models"`
	Tools           map[string]ToolConfig `yaml:"tools"`
	Storage         StorageConfig         `yaml:"storage"`
	Scan            ScanConfig            `yaml:"scan"`
	Index           IndexConfig           `yaml:"index"`
	Ollama          OllamaConfig          `yaml:"ollama"`
	ImageProcessing ImageProcConfig       `yaml:"image_processing"`
	App             AppSpecific           `yaml:"app"`
	FileRules       []FileRule            `yaml:"file_rules"`
}

// FileRule — правило классификации файлов по имени.
type FileRule struct {
	Tag      string   `yaml:"tag"`      // Например "docs", "images", "archives"
	Patterns []string `yaml:"patterns"` // Glob паттерны: "*.pdf", "*_draft.txt"
	Folder   string   `yaml:"folder"`   // Целевая папка для файлов этого тега (пусто = не перемещать)
}

// ModelsConfig — настройки AI моделей.
type ModelsConfig struct {
	DefaultChat   string              `yaml:"default_chat"`   // Алиас чат-модели по умолчанию (например, "llama3")
	DefaultVision string              `yaml:"default_vision"` // Алиас vision-модели (например, "llava")
	DefaultEmbed  string              `yaml:"default_embed"`  // Алиас embedding-модели (например, "nomic-embed")
	Definitions   map[string]ModelDef `yaml:"definitions"`    // Словарь определений моделей
}

// ModelDef — параметры конкретной модели.
type ModelDef struct {
	Provider    string        `yaml:"provider"`    // "ollama", "openai" и т.д.
	ModelName   string        `yaml:"model_name"`  // Реальное имя в API
	APIKey      string        `yaml:"api_key"`     // Поддерживает ${VAR}; для локальной Ollama не нужен
	BaseURL     string        `yaml:"base_url"`    // OpenAI-совместимый endpoint (http://localhost:11434/v1)
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"` // Go умеет парсить строки вида "60s", "1m"
}

// ToolConfig — настройки инструментов агента.
type ToolConfig struct {
	// Enabled — указатель, чтобы отличать "не задано" от "false":
	// запись tools.read_file с одним только timeout не должна
	// выключать инструмент.
	Enabled     *bool         `yaml:"enabled"`
	Timeout     time.Duration `yaml:"timeout"`
	Description string        `yaml:"description"` // Переопределение описания для LLM (пусто = дефолт)
}

// IsEnabled возвращает true, если инструмент не выключен явно.
func (t ToolConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// StorageConfig — настройки хранилищ файлов.
//
// Локальная директория и/или S3-совместимый remote drive.
// Хотя бы одно из них должно быть настроено.
type StorageConfig struct {
	LocalRoot  string   `yaml:"local_root"`  // Корень локальной директории для организации
	S3         S3Config `yaml:"s3"`          // Удалённый drive (опционально)
	TrashDir   string   `yaml:"trash_dir"`   // Папка-корзина для soft delete (относительно корня)
	HardDelete bool     `yaml:"hard_delete"` // true = удалять безвозвратно, минуя корзину
	LedgerPath string   `yaml:"ledger_path"` // SQLite файл журнала корзины
	PlansPath  string   `yaml:"plans_path"`  // SQLite файл хранилища планов (пусто = рядом с журналом)
}

// S3Config — настройки объектного хранилища.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled сообщает, настроен ли remote drive.
func (s S3Config) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// ScanConfig — параметры сканирования файлов.
type ScanConfig struct {
	MaxFileBytes int64    `yaml:"max_file_bytes"` // Файлы крупнее не читаем целиком (0 = дефолт)
	Workers      int      `yaml:"workers"`        // Параллелизм хеширования/чтения
	Exclude      []string `yaml:"exclude"`        // Glob паттерны для исключения (".git", "node_modules")
}

// GetDefaults возвращает конфиг с заполненными дефолтами.
func (c ScanConfig) GetDefaults() ScanConfig {
	result := c
	if result.MaxFileBytes == 0 {
		result.MaxFileBytes = 4 * 1024 * 1024 // 4 MB
	}
	if result.Workers == 0 {
		result.Workers = 4
	}
	return result
}

// IndexConfig — настройки семантического индекса.
type IndexConfig struct {
	Path         string `yaml:"path"`          // SQLite файл индекса
	ChunkSize    int    `yaml:"chunk_size"`    // Размер чанка в рунах
	ChunkOverlap int    `yaml:"chunk_overlap"` // Перекрытие чанков в рунах
	TopK         int    `yaml:"top_k"`         // Сколько чанков отдавать в retrieval
}

// GetDefaults возвращает конфиг с заполненными дефолтами.
func (c IndexConfig) GetDefaults() IndexConfig {
	result := c
	if result.Path == "" {
		result.Path = "shkaf-index.db"
	}
	if result.ChunkSize == 0 {
		result.ChunkSize = 800
	}
	if result.ChunkOverlap == 0 {
		result.ChunkOverlap = 80
	}
	if result.TopK == 0 {
		result.TopK = 8
	}
	return result
}

// OllamaConfig — настройки нативного Ollama API (не OpenAI-совместимого).
//
// Используется для health-check и списка локальных моделей.
type OllamaConfig struct {
	BaseURL       string `yaml:"base_url"`       // Базовый URL (http://localhost:11434)
	RateLimit     int    `yaml:"rate_limit"`     // Запросов в минуту
	BurstLimit    int    `yaml:"burst_limit"`    // Burst для rate limiter
	RetryAttempts int    `yaml:"retry_attempts"` // Количество retry попыток
	Timeout       string `yaml:"timeout"`        // Timeout для HTTP запросов (например, "30s")
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *OllamaConfig) GetDefaults() OllamaConfig {
	result := *c

	if result.BaseURL == "" {
		result.BaseURL = "http://localhost:11434"
	}
	if result.RateLimit == 0 {
		result.RateLimit = 60 // запросов в минуту
	}
	if result.BurstLimit == 0 {
		result.BurstLimit = 5
	}
	if result.RetryAttempts == 0 {
		result.RetryAttempts = 3
	}
	if result.Timeout == "" {
		result.Timeout = "30s"
	}

	return result
}

// ImageProcConfig — настройки обработки изображений.
type ImageProcConfig struct {
	MaxWidth int `yaml:"max_width"`
	Quality  int `yaml:"quality"`
}

// GetDefaults возвращает конфигурацию с заполненными дефолтными значениями.
func (c ImageProcConfig) GetDefaults() ImageProcConfig {
	if c.MaxWidth == 0 {
		c.MaxWidth = 1024
	}
	if c.Quality == 0 {
		c.Quality = 80
	}
	return c
}

// AppSpecific — общие настройки приложения.
type AppSpecific struct {
	Debug         bool   `yaml:"debug"`
	PromptsDir    string `yaml:"prompts_dir"`
	MaxIterations int    `yaml:"max_iterations"` // Лимит итераций ReAct цикла (0 = дефолт 10)
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	// 1. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 3. Подставляем переменные окружения.
	// os.ExpandEnv заменяет ${VAR} или $VAR на значение из системы.
	contentWithEnv := os.ExpandEnv(string(rawBytes))

	// 4. Парсим YAML в структуру
	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	// 5. Валидируем критические настройки
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate проверяет обязательные поля.
func (c *AppConfig) validate() error {
	if c.Storage.LocalRoot == "" && !c.Storage.S3.Enabled() {
		return fmt.Errorf("storage: either local_root or s3 must be configured")
	}
	if c.Storage.S3.Enabled() && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required")
	}
	if c.Models.DefaultChat != "" {
		if _, ok := c.Models.Definitions[c.Models.DefaultChat]; !ok {
			return fmt.Errorf("default_chat model '%s' is not defined in definitions", c.Models.DefaultChat)
		}
	}
	if c.Models.DefaultVision != "" {
		if _, ok := c.Models.Definitions[c.Models.DefaultVision]; !ok {
			return fmt.Errorf("default_vision model '%s' is not defined in definitions", c.Models.DefaultVision)
		}
	}
	if c.Models.DefaultEmbed != "" {
		if _, ok := c.Models.Definitions[c.Models.DefaultEmbed]; !ok {
			return fmt.Errorf("default_embed model '%s' is not defined in definitions", c.Models.DefaultEmbed)
		}
	}
	return nil
}

// Helper методы для удобства доступа (Syntactic sugar)

// GetChatModel возвращает конфигурацию чат-модели по умолчанию или по имени.
func (c *AppConfig) GetChatModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.DefaultChat
	}
	m, ok := c.Models.Definitions[name]
	return m, ok
}

// GetVisionModel возвращает конфигурацию vision-модели по умолчанию или по имени.
func (c *AppConfig) GetVisionModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.DefaultVision
	}
	m, ok := c.Models.Definitions[name]
	return m, ok
}

// MaxIterations возвращает лимит итераций ReAct цикла с дефолтом.
func (c *AppConfig) MaxIterations() int {
	if c.App.MaxIterations > 0 {
		return c.App.MaxIterations
	}
	return 10
}
