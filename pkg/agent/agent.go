/*
Package agent собирает все подсистемы в работающего агента.

Это единственное место, где знают про всё сразу: конфиг, диски,
модели, индекс, корзину, инструменты и ReAct цикл. UI и CLI
работают только с фасадом Agent, внутренности им не видны.

Порядок сборки:
 1. Конфиг (YAML + ENV подстановка)
 2. Диски (локальный и/или S3)
 3. Реестр моделей (все provider-ы из definitions)
 4. Health-check Ollama (не фатален: предупреждение вместо падения)
 5. Семантический индекс (только при настроенной embedding-модели)
 6. Корзина, хранилище планов и Executor (единственная точка мутации дисков)
 7. Инструменты и ReAct цикл
*/
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilkoid/shkaf-ai/pkg/chain"
	"github.com/ilkoid/shkaf-ai/pkg/classifier"
	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/drive/localdrive"
	"github.com/ilkoid/shkaf-ai/pkg/drive/s3drive"
	"github.com/ilkoid/shkaf-ai/pkg/events"
	"github.com/ilkoid/shkaf-ai/pkg/factory"
	"github.com/ilkoid/shkaf-ai/pkg/models"
	"github.com/ilkoid/shkaf-ai/pkg/ollama"
	"github.com/ilkoid/shkaf-ai/pkg/organize"
	"github.com/ilkoid/shkaf-ai/pkg/prompt"
	"github.com/ilkoid/shkaf-ai/pkg/questions"
	"github.com/ilkoid/shkaf-ai/pkg/semindex"
	"github.com/ilkoid/shkaf-ai/pkg/state"
	"github.com/ilkoid/shkaf-ai/pkg/tools"
	"github.com/ilkoid/shkaf-ai/pkg/tools/std"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// Agent — фасад над всеми подсистемами.
type Agent struct {
	cfg     *config.AppConfig
	state   *state.CoreState
	tools   *tools.Registry
	models  *models.Registry
	cycle   *chain.ReActCycle
	emitter *events.ChanEmitter

	// Ресурсы, требующие Close()
	ledger *organize.TrashLedger
	plans  *organize.PlanStore
	store  *semindex.Store
}

// New создает агента из конфигурационного файла.
func New(ctx context.Context, configPath string) (*Agent, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	a := &Agent{
		cfg:     cfg,
		emitter: events.NewChanEmitter(64),
	}

	st := state.NewCoreState(cfg)
	st.Emitter = a.emitter
	a.state = st

	if err := a.setupDrives(); err != nil {
		return nil, err
	}

	modelRegistry, err := models.NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("model registry failed: %w", err)
	}
	a.models = modelRegistry

	ollamaClient := a.checkOllama(ctx)

	if err := a.setupIndex(); err != nil {
		return nil, err
	}

	if err := a.setupExecutor(); err != nil {
		a.Close()
		return nil, err
	}

	engine := classifier.New(cfg.FileRules)

	if err := a.setupTools(engine, ollamaClient); err != nil {
		a.Close()
		return nil, err
	}

	a.setupCycle()

	utils.Info("agent ready",
		"drives", st.DriveNames(),
		"models", modelRegistry.ListNames(),
		"tools", a.tools.Names())
	return a, nil
}

// setupDrives регистрирует настроенные хранилища.
//
// Локальный диск идет первым и становится дефолтным. Папка корзины
// исключается из списков, чтобы удаленные файлы не попадали в скан.
func (a *Agent) setupDrives() error {
	st := a.cfg.Storage

	if st.LocalRoot != "" {
		exclude := append([]string{}, a.cfg.Scan.GetDefaults().Exclude...)
		if !st.HardDelete {
			exclude = append(exclude, a.trashDir())
		}
		local, err := localdrive.New(st.LocalRoot, exclude)
		if err != nil {
			return fmt.Errorf("local drive failed: %w", err)
		}
		a.state.AddDrive("local", local)
	}

	if st.S3.Enabled() {
		remote, err := s3drive.New(st.S3)
		if err != nil {
			return fmt.Errorf("s3 drive failed: %w", err)
		}
		a.state.AddDrive("s3", remote)
	}

	if len(a.state.DriveNames()) == 0 {
		return fmt.Errorf("no drives configured")
	}
	return nil
}

func (a *Agent) trashDir() string {
	if a.cfg.Storage.TrashDir != "" {
		return a.cfg.Storage.TrashDir
	}
	return ".shkaf-trash"
}

// checkOllama выполняет health-check сервера Ollama.
//
// Недоступный сервер не мешает старту: пользователь может сначала
// посмотреть корзину или список файлов. Ошибка всплывет при первом
// LLM запросе, а предупреждение в логе объяснит причину.
func (a *Agent) checkOllama(ctx context.Context) *ollama.Client {
	client, err := ollama.NewFromConfig(a.cfg.Ollama)
	if err != nil {
		utils.Warn("ollama client unavailable", "error", err)
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	version, err := client.Ping(pingCtx)
	if err != nil {
		utils.Warn("ollama health-check failed", "error", err)
		return client
	}
	utils.Info("ollama server available", "version", version)
	return client
}

// setupIndex подключает семантический индекс, если настроена embedding-модель.
func (a *Agent) setupIndex() error {
	embedAlias := a.cfg.Models.DefaultEmbed
	if embedAlias == "" {
		utils.Debug("semantic index disabled: no embedding model configured")
		return nil
	}

	embedDef, ok := a.cfg.Models.Definitions[embedAlias]
	if !ok {
		return fmt.Errorf("embedding model '%s' is not defined", embedAlias)
	}

	embedder, err := factory.NewEmbedder(embedDef)
	if err != nil {
		return fmt.Errorf("embedder failed: %w", err)
	}

	idxCfg := a.cfg.Index.GetDefaults()
	store, err := semindex.OpenStore(idxCfg.Path)
	if err != nil {
		return fmt.Errorf("index store failed: %w", err)
	}
	a.store = store
	a.state.Index = semindex.New(store, embedder, idxCfg)
	return nil
}

// setupExecutor создает корзину и Executor поверх дефолтного диска.
func (a *Agent) setupExecutor() error {
	d, err := a.state.GetDrive("")
	if err != nil {
		return err
	}

	var ledger *organize.TrashLedger
	if !a.cfg.Storage.HardDelete {
		ledgerPath := a.cfg.Storage.LedgerPath
		if ledgerPath == "" {
			ledgerPath = "shkaf-trash.db"
		}
		ledger, err = organize.OpenTrashLedger(ledgerPath)
		if err != nil {
			return fmt.Errorf("trash ledger failed: %w", err)
		}
		a.ledger = ledger
	}

	executor, err := organize.NewExecutor(d, a.state.Index, ledger, a.trashDir(), a.cfg.Storage.HardDelete)
	if err != nil {
		return fmt.Errorf("executor failed: %w", err)
	}
	a.state.Executor = executor

	// Планы переживают процесс: plan и apply могут быть разными вызовами CLI
	plans, err := organize.OpenPlanStore(a.plansPath())
	if err != nil {
		return fmt.Errorf("plan store failed: %w", err)
	}
	a.plans = plans
	a.state.PlanStore = plans
	return nil
}

// plansPath возвращает путь к хранилищу планов.
// Без явной настройки файл лежит рядом с журналом корзины.
func (a *Agent) plansPath() string {
	if a.cfg.Storage.PlansPath != "" {
		return a.cfg.Storage.PlansPath
	}
	if a.cfg.Storage.LedgerPath != "" {
		return filepath.Join(filepath.Dir(a.cfg.Storage.LedgerPath), "shkaf-plans.db")
	}
	return "shkaf-plans.db"
}

// setupTools регистрирует стандартный набор инструментов.
//
// Инструмент можно отключить через tools.<имя>.enabled=false в конфиге.
func (a *Agent) setupTools(engine *classifier.Engine, ollamaClient *ollama.Client) error {
	registry := tools.NewRegistry()
	st := a.state
	scanCfg := a.cfg.Scan.GetDefaults()

	toolset := []tools.Tool{
		std.NewListFilesTool(st),
		std.NewStatFileTool(st),
		std.NewReadFileTool(st),
		std.NewScanFilesTool(st, engine),
		std.NewFindDuplicatesTool(st, scanCfg.Workers),
		std.NewProposePlanTool(st, engine, a.models, a.cfg.Models.DefaultChat),
		std.NewApplyPlanTool(st),
		std.NewMoveFileTool(st),
		std.NewCreateFolderTool(st),
		std.NewDeletePathTool(st),
		std.NewRetagFileTool(st),
		std.NewRestoreFileTool(st),
		std.NewListTrashTool(a.ledger),
		std.NewIndexFilesTool(st, scanCfg.MaxFileBytes),
		std.NewSearchIndexTool(st),
		std.NewAskUserQuestionTool(st.Questions),
		std.NewPlanAddTaskTool(st.Todo),
		std.NewPlanMarkDoneTool(st.Todo),
		std.NewPlanMarkFailedTool(st.Todo),
		std.NewPlanClearTool(st.Todo),
	}

	if vision := a.visionDescriber(); vision != nil {
		toolset = append(toolset, std.NewDescribeImageTool(st, vision))
	}
	if ollamaClient != nil {
		toolset = append(toolset, std.NewCheckModelsTool(ollamaClient, a.cfg))
	}

	for _, tool := range toolset {
		name := tool.Definition().Name
		if tc, ok := a.cfg.Tools[name]; ok {
			if !tc.IsEnabled() {
				utils.Debug("tool disabled by config", "tool", name)
				continue
			}
			tool = tools.WithDescription(tool, tc.Description)
		}
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("register tool '%s': %w", name, err)
		}
	}

	a.tools = registry
	st.SetToolsRegistry(registry)
	return nil
}

// visionDescriber возвращает VisionDescriber или nil, если vision модель не настроена.
func (a *Agent) visionDescriber() *classifier.VisionDescriber {
	alias := a.cfg.Models.DefaultVision
	if alias == "" {
		return nil
	}
	provider, _, err := a.models.Get(alias)
	if err != nil {
		utils.Warn("vision model unavailable", "error", err)
		return nil
	}
	return classifier.NewVisionDescriber(provider, a.cfg.ImageProcessing)
}

// setupCycle создает ReAct цикл с системным промптом и таймаутами.
func (a *Agent) setupCycle() {
	cycleConfig := chain.NewReActCycleConfig()
	cycleConfig.MaxIterations = a.cfg.MaxIterations()
	cycleConfig.SystemPrompt = a.loadSystemPrompt()

	cycle := chain.NewReActCycle(cycleConfig)
	cycle.SetModelRegistry(a.models, a.cfg.Models.DefaultChat)
	cycle.SetRegistry(a.tools)
	cycle.SetState(a.state)
	cycle.SetEmitter(a.emitter)

	// Индивидуальные таймауты инструментов из конфига
	for name, tc := range a.cfg.Tools {
		if tc.Timeout > 0 {
			cycle.SetToolTimeout(name, tc.Timeout)
		}
	}
	a.cycle = cycle
}

// loadSystemPrompt читает системный промпт из prompts_dir.
//
// Файл agent_system.yaml опционален: без него используется встроенный
// промпт. Так пользователь может настроить поведение агента без
// пересборки.
func (a *Agent) loadSystemPrompt() string {
	dir := a.cfg.App.PromptsDir
	if dir == "" {
		dir = "prompts"
	}

	path := filepath.Join(dir, "agent_system.yaml")
	if _, err := os.Stat(path); err != nil {
		return chain.DefaultSystemPrompt
	}

	pf, err := prompt.Load(path)
	if err != nil {
		utils.Warn("system prompt load failed, using default", "error", err)
		return chain.DefaultSystemPrompt
	}

	messages, err := pf.RenderMessages(nil)
	if err != nil {
		utils.Warn("system prompt render failed, using default", "error", err)
		return chain.DefaultSystemPrompt
	}
	for _, m := range messages {
		if m.Role == "system" {
			return m.Content
		}
	}
	return chain.DefaultSystemPrompt
}

// Run выполняет один запрос пользователя через ReAct цикл.
func (a *Agent) Run(ctx context.Context, query string) (string, error) {
	return a.cycle.Run(ctx, query)
}

// Subscribe возвращает подписку на события агента для UI.
func (a *Agent) Subscribe() events.Subscriber {
	return a.emitter.Subscribe()
}

// Emit отправляет событие в шину. Используется UI для собственных событий.
func (a *Agent) Emit(ctx context.Context, event events.Event) {
	a.emitter.Emit(ctx, event)
}

// State возвращает состояние агента.
//
// UI использует его для поллинга вопросов и показа рабочей памяти.
func (a *Agent) State() *state.CoreState {
	return a.state
}

// Questions возвращает координатор вопросов пользователю.
func (a *Agent) Questions() *questions.QuestionManager {
	return a.state.Questions
}

// Config возвращает загруженную конфигурацию.
func (a *Agent) Config() *config.AppConfig {
	return a.cfg
}

// Tools возвращает реестр инструментов.
func (a *Agent) Tools() *tools.Registry {
	return a.tools
}

// RegisterTool добавляет пользовательский инструмент к стандартному набору.
func (a *Agent) RegisterTool(tool tools.Tool) error {
	return a.tools.Register(tool)
}

// SetToolTimeout переопределяет таймаут конкретного инструмента.
func (a *Agent) SetToolTimeout(toolName string, timeout time.Duration) {
	a.cycle.SetToolTimeout(toolName, timeout)
}

// ClearHistory сбрасывает историю диалога.
func (a *Agent) ClearHistory() {
	a.state.ClearHistory()
}

// Close освобождает ресурсы агента.
func (a *Agent) Close() {
	if a.emitter != nil {
		a.emitter.Close()
	}
	if a.ledger != nil {
		_ = a.ledger.Close()
	}
	if a.plans != nil {
		_ = a.plans.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
