// Package state предоставляет thread-safe core состояние агента-организатора.
//
// CoreState содержит переиспользуемую бизнес-логику:
// - Конфигурацию приложения
// - Диски (локальная ФС, S3)
// - Семантический индекс
// - Реестр инструментов (tools registry)
// - Менеджер задач (todo manager)
// - Менеджер вопросов пользователю
// - Историю диалога
// - "Рабочую память" (классифицированные файлы и планы изменений)
//
// Все изменения runtime полей защищены sync.RWMutex, без глобальных
// переменных. Ошибки возвращаются, никаких panic в бизнес-логике.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/drive"
	"github.com/ilkoid/shkaf-ai/pkg/events"
	"github.com/ilkoid/shkaf-ai/pkg/llm"
	"github.com/ilkoid/shkaf-ai/pkg/organize"
	"github.com/ilkoid/shkaf-ai/pkg/questions"
	"github.com/ilkoid/shkaf-ai/pkg/semindex"
	"github.com/ilkoid/shkaf-ai/pkg/todo"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// CoreState представляет thread-safe core состояние агента.
//
// Может использоваться в различных приложениях: CLI, TUI, HTTP API.
type CoreState struct {
	// Config - конфигурация приложения (YAML с подстановкой ENV)
	Config *config.AppConfig

	// Todo - менеджер задач для планирования
	// Используется агентом для отслеживания многошаговых задач
	Todo *todo.Manager

	// Questions - координатор вопросов пользователю
	Questions *questions.QuestionManager

	// ToolsRegistry - реестр инструментов
	ToolsRegistry *tools.Registry

	// Index - семантический индекс содержимого файлов (опционален)
	Index *semindex.Index

	// Executor - единственная точка мутации дисков
	Executor *organize.Executor

	// PlanStore - sqlite хранилище планов (опционально)
	// С ним план переживает перезапуск процесса: plan и apply
	// могут быть разными вызовами CLI
	PlanStore *organize.PlanStore

	// Emitter - шина событий для UI (опциональна)
	Emitter events.Emitter

	// mu защищает доступ к runtime полям ниже
	mu sync.RWMutex

	// drives - подключенные хранилища по имени ("local", "s3")
	drives       map[string]drive.Drive
	defaultDrive string

	// History - хронология диалога (User <-> Agent)
	// Сюда НЕ попадают тяжелые base64, только текст и tool calls
	History []llm.Message

	// Files - "Рабочая память" (Working Memory)
	// Хранит результат последнего сканирования и анализа
	// Ключ: тег классификации ("photos", "documents", "other")
	Files map[string][]*drive.FileMeta

	// Plans - построенные планы изменений, ждущие подтверждения
	// Ключ: ID плана
	Plans map[string]*organize.Plan
}

// NewCoreState создает новое thread-safe core состояние.
//
// ToolsRegistry, Index, Executor, PlanStore и Emitter устанавливаются
// после создания.
func NewCoreState(cfg *config.AppConfig) *CoreState {
	return &CoreState{
		Config:    cfg,
		Todo:      todo.NewManager(),
		Questions: questions.NewQuestionManager(0, 0),
		drives:    make(map[string]drive.Drive),
		Files:     make(map[string][]*drive.FileMeta),
		Plans:     make(map[string]*organize.Plan),
		History:   make([]llm.Message, 0),
	}
}

// --- Drives ---

// AddDrive регистрирует хранилище под именем.
//
// Первое зарегистрированное хранилище становится дефолтным.
func (s *CoreState) AddDrive(name string, d drive.Drive) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.drives) == 0 {
		s.defaultDrive = name
	}
	s.drives[name] = d
}

// GetDrive возвращает хранилище по имени.
// Пустое имя означает дефолтное хранилище.
func (s *CoreState) GetDrive(name string) (drive.Drive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name == "" {
		name = s.defaultDrive
	}
	d, ok := s.drives[name]
	if !ok {
		return nil, fmt.Errorf("drive '%s' not found", name)
	}
	return d, nil
}

// DriveNames возвращает имена подключенных хранилищ.
func (s *CoreState) DriveNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.drives))
	for name := range s.drives {
		names = append(names, name)
	}
	return names
}

// --- Tools Registry ---

// SetToolsRegistry устанавливает реестр инструментов.
func (s *CoreState) SetToolsRegistry(registry *tools.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ToolsRegistry = registry
}

// GetToolsRegistry возвращает реестр инструментов.
func (s *CoreState) GetToolsRegistry() *tools.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ToolsRegistry
}

// --- Thread-Safe History Methods ---

// AppendMessage безопасно добавляет сообщение в историю диалога.
func (s *CoreState) AppendMessage(msg llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, msg)
}

// GetHistory возвращает копию истории диалога.
//
// Возвращает копию слайса, чтобы избежать race condition при изменении.
func (s *CoreState) GetHistory() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dst := make([]llm.Message, len(s.History))
	copy(dst, s.History)
	return dst
}

// ClearHistory очищает историю диалога.
func (s *CoreState) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = make([]llm.Message, 0)
}

// --- Thread-Safe File Management (Working Memory Pattern) ---

// SetFiles устанавливает результат сканирования для текущей сессии.
//
// Thread-safe: атомарная замена всей map Files.
func (s *CoreState) SetFiles(files map[string][]*drive.FileMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Files = files
}

// GetFiles возвращает копию текущих файлов.
func (s *CoreState) GetFiles() map[string][]*drive.FileMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]*drive.FileMeta, len(s.Files))
	for k, v := range s.Files {
		result[k] = append([]*drive.FileMeta{}, v...)
	}
	return result
}

// AllFiles возвращает плоский список всех файлов рабочей памяти.
func (s *CoreState) AllFiles() []*drive.FileMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*drive.FileMeta
	for _, files := range s.Files {
		all = append(all, files...)
	}
	return all
}

// UpdateFileAnalysis сохраняет результат работы Vision модели в "память" файла.
//
// "Working Memory" паттерн: Vision модель анализирует изображение один раз,
// результат сохраняется в FileMeta.Description и переиспользуется
// в последующих вызовах LLM без повторной отправки изображения.
//
// Thread-safe: атомарно заменяет объект в слайсе под мьютексом.
func (s *CoreState) UpdateFileAnalysis(tag string, filename string, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, ok := s.Files[tag]
	if !ok {
		utils.Error("UpdateFileAnalysis: tag not found", "tag", tag, "filename", filename)
		return
	}

	for i := range files {
		if files[i].Filename == filename {
			// Создаем новый объект для thread-safety
			updated := *files[i]
			updated.Description = description
			files[i] = &updated
			utils.Debug("file analysis updated", "tag", tag, "filename", filename, "desc_length", len(description))
			return
		}
	}

	utils.Warn("UpdateFileAnalysis: file not found in state",
		"tag", tag,
		"filename", filename,
		"available_files", len(files))
}

// SetFileStatus помечает источник классификации файла по его пути.
//
// Вызывается при AI-раскладке (StatusAI): решение модели фиксируется
// в провенансе файла. Пользовательская классификация (StatusUser)
// не перетирается: она сильнее любой автоматики.
func (s *CoreState) SetFileStatus(path string, status drive.ClassificationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for tag, files := range s.Files {
		for i := range files {
			if files[i].Path != path {
				continue
			}
			if files[i].Status == drive.StatusUser && status != drive.StatusUser {
				utils.Debug("file status pinned by user, not overwriting", "path", path)
				return
			}
			updated := *files[i]
			updated.Status = status
			s.Files[tag][i] = &updated
			return
		}
	}

	utils.Warn("SetFileStatus: file not found in state", "path", path, "status", string(status))
}

// RetagFile переносит файл под другой тег по указанию пользователя.
//
// Файл получает StatusUser: автоклассификация и планы раскладки
// больше его не трогают.
func (s *CoreState) RetagFile(path, newTag string) error {
	if newTag == "" {
		return fmt.Errorf("tag must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for tag, files := range s.Files {
		for i := range files {
			if files[i].Path != path {
				continue
			}
			updated := *files[i]
			updated.Tag = newTag
			updated.Status = drive.StatusUser

			s.Files[tag] = append(files[:i:i], files[i+1:]...)
			if len(s.Files[tag]) == 0 {
				delete(s.Files, tag)
			}
			s.Files[newTag] = append(s.Files[newTag], &updated)

			utils.Info("file retagged by user", "path", path, "from", tag, "to", newTag)
			return nil
		}
	}

	return fmt.Errorf("file '%s' not found in working memory: сначала вызови scan_files", path)
}

// --- Plans ---

// PutPlan сохраняет план изменений в рабочей памяти и, если подключен
// PlanStore, на диске. Ошибка персистентности не блокирует работу
// текущей сессии: план остается применимым из памяти.
func (s *CoreState) PutPlan(plan *organize.Plan) {
	s.mu.Lock()
	s.Plans[plan.ID] = plan
	s.mu.Unlock()

	if s.PlanStore != nil {
		if err := s.PlanStore.Save(context.Background(), plan); err != nil {
			utils.Warn("plan persistence failed", "plan_id", plan.ID, "error", err)
		}
	}
}

// GetPlan возвращает план по ID: сначала из памяти, затем из PlanStore.
func (s *CoreState) GetPlan(id string) (*organize.Plan, error) {
	s.mu.RLock()
	plan, ok := s.Plans[id]
	s.mu.RUnlock()
	if ok {
		return plan, nil
	}

	if s.PlanStore != nil {
		stored, err := s.PlanStore.Get(context.Background(), id)
		if err == nil {
			s.mu.Lock()
			s.Plans[stored.ID] = stored
			s.mu.Unlock()
			return stored, nil
		}
	}
	return nil, fmt.Errorf("plan '%s' not found", id)
}

// LatestPlan возвращает последний созданный план или nil.
//
// PlanStore имеет приоритет: он видит и планы прошлых сессий.
func (s *CoreState) LatestPlan() *organize.Plan {
	if s.PlanStore != nil {
		if plan, err := s.PlanStore.Latest(context.Background()); err == nil && plan != nil {
			return plan
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *organize.Plan
	for _, p := range s.Plans {
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	return latest
}

// --- Events ---

// Notify отправляет событие в шину, если UI подписан на нее.
// Без подключенного Emitter вызов ничего не делает.
func (s *CoreState) Notify(ctx context.Context, eventType events.EventType, data events.EventData) {
	if s.Emitter == nil {
		return
	}
	s.Emitter.Emit(ctx, events.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// --- Context Building ---

// BuildAgentContext собирает полный контекст для генеративного запроса (ReAct).
//
// Объединяет:
// 1. Системный промпт
// 2. "Рабочую память" (сводка по файлам и описания от vision)
// 3. Контекст плана задач (Todo Manager)
// 4. Историю диалога
//
// Возвращаемый массив сообщений готов для передачи в LLM.
func (s *CoreState) BuildAgentContext(systemPrompt string) []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// 1. Формируем блок знаний из отсканированных файлов
	var filesContext string
	for tag, files := range s.Files {
		filesContext += fmt.Sprintf("- %s: %d файлов\n", tag, len(files))
		for _, f := range files {
			if f.Description != "" {
				filesContext += fmt.Sprintf("  - %s: %s\n", f.Path, f.Description)
			}
		}
	}

	knowledgeMsg := ""
	if filesContext != "" {
		knowledgeMsg = "\nРАБОЧАЯ ПАМЯТЬ (результаты сканирования):\n" + filesContext
	}

	// 2. Формируем контекст плана задач
	todoContext := s.Todo.String()

	// 3. Собираем итоговый массив сообщений
	messages := make([]llm.Message, 0, len(s.History)+2)

	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: systemPrompt + knowledgeMsg,
	})

	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: todoContext,
	})

	messages = append(messages, s.History...)

	return messages
}
