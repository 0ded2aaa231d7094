// Базовые типы - определяем универсальный язык общения с моделями.
package llm

// Role — роль участника диалога.
type Role string

// Константы для удобства
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message — одно сообщение диалога в унифицированном формате.
//
// Тяжёлые base64 картинки живут в Images и не попадают в историю state.
type Message struct {
	Role    Role
	Content string

	// Images — data-uri или http ссылки для Vision запросов
	Images []string

	// ToolCalls — вызовы инструментов, которые запросила модель
	ToolCalls []ToolCall

	// ToolCallID — для Role == RoleTool: ID вызова, на который отвечаем
	ToolCallID string
}

// ToolCall — запрос модели на вызов инструмента (Function Calling).
type ToolCall struct {
	ID   string
	Name string
	Args string // Сырой JSON аргументов как прислала модель
}
