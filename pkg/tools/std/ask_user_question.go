// Package std предоставляет стандартные инструменты агента-организатора.
//
// AskUserQuestionTool — инструмент для задавания вопросов пользователю
// с вариантами ответов.
//
// АРХИТЕКТУРА (Polling Pattern):
// Tool не отправляет события! UI опрашивает QuestionManager.HasPendingQuestions()
// после каждого события и переключается в режим вопрос-ответ.
package std

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ilkoid/shkaf-ai/pkg/questions"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
)

// AskUserQuestionTool — инструмент для задавания вопросов пользователю.
//
// Процесс:
// 1. LLM вызывает tool с вопросом и вариантами
// 2. Tool создает вопрос в QuestionManager (shared state)
// 3. Tool блокируется на WaitForAnswer()
// 4. UI опрашивает HasPendingQuestions() и показывает вопрос
// 5. Пользователь выбирает вариант, UI вызывает SubmitAnswer()
// 6. Tool разблокируется и возвращает результат в LLM
type AskUserQuestionTool struct {
	questionManager *questions.QuestionManager
	maxOptions      int
	timeout         time.Duration
}

// NewAskUserQuestionTool создает инструмент для задавания вопросов.
func NewAskUserQuestionTool(qm *questions.QuestionManager) *AskUserQuestionTool {
	return &AskUserQuestionTool{
		questionManager: qm,
		maxOptions:      5, // цифры 1-5 в UI
		timeout:         5 * time.Minute,
	}
}

// GetQuestionManager возвращает QuestionManager для использования в UI.
func (t *AskUserQuestionTool) GetQuestionManager() *questions.QuestionManager {
	return t.questionManager
}

func (t *AskUserQuestionTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "ask_user_question",
		Description: "Задает пользователю вопрос с вариантами ответов (1-5 штук). Используй когда нужно уточнение: куда положить файл, какую копию оставить, продолжать ли операцию.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Текст вопроса пользователю",
				},
				"options": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"label": map[string]interface{}{
								"type":        "string",
								"description": "Короткий текст варианта",
							},
							"description": map[string]interface{}{
								"type":        "string",
								"description": "Пояснение варианта (опционально)",
							},
						},
						"required": []string{"label"},
					},
					"minItems": 1,
					"maxItems": t.maxOptions,
				},
			},
			"required": []string{"question", "options"},
		},
	}
}

// Execute выполняет инструмент согласно контракту "Raw In, String Out".
func (t *AskUserQuestionTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Question string                     `json:"question"`
		Options  []questions.QuestionOption `json:"options"`
	}

	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("ошибка парсинга аргументов: %w", err)
	}

	if args.Question == "" {
		return "", fmt.Errorf("question не может быть пустым")
	}
	if len(args.Options) == 0 {
		return "", fmt.Errorf("нужен хотя бы один вариант")
	}
	if len(args.Options) > t.maxOptions {
		return "", fmt.Errorf("слишком много вариантов: %d (максимум %d)", len(args.Options), t.maxOptions)
	}
	for i, opt := range args.Options {
		if opt.Label == "" {
			return "", fmt.Errorf("вариант %d: label не может быть пустым", i)
		}
	}

	if t.questionManager == nil {
		return "", fmt.Errorf("questionManager is nil: tool not configured properly")
	}

	questionID, err := t.questionManager.CreateQuestion(args.Question, args.Options)
	if err != nil {
		return "", fmt.Errorf("ошибка создания вопроса: %w", err)
	}

	result, err := t.questionManager.WaitForAnswer(ctx, questionID)
	if err != nil {
		return "", fmt.Errorf("ошибка ожидания ответа: %w", err)
	}

	return result.ToJSONString(), nil
}
