package tools

// WithDescription оборачивает инструмент, подменяя описание для LLM.
//
// Используется конфигом (tools.<имя>.description): пользователь может
// уточнить формулировку под свою модель без пересборки. Пустое описание
// возвращает инструмент как есть.
func WithDescription(t Tool, description string) Tool {
	if description == "" {
		return t
	}
	return &describedTool{Tool: t, description: description}
}

type describedTool struct {
	Tool
	description string
}

func (t *describedTool) Definition() ToolDefinition {
	def := t.Tool.Definition()
	def.Description = t.description
	return def
}
