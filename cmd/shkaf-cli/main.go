// Shkaf CLI - headless режим агента для скриптов и cron.
//
// В отличие от TUI здесь нет LLM-диалога: команды зовут инструменты
// напрямую. Подтверждение планов идет через те же вопросы, что и в TUI:
// интерактивно через stdin или автоматически с флагом --yes.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ilkoid/shkaf-ai/pkg/agent"
	"github.com/ilkoid/shkaf-ai/pkg/questions"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

var (
	configPath string
	driveName  string
	autoYes    bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shkaf-cli",
		Short: "Наведение порядка в файлах без TUI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := utils.InitLogger(); err != nil {
				log.Printf("Warning: failed to init logger: %v", err)
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "./config.yaml", "путь к конфигу")
	root.PersistentFlags().StringVar(&driveName, "drive", "", "имя диска (пусто = по умолчанию)")
	root.PersistentFlags().BoolVar(&autoYes, "yes", false, "подтверждать планы автоматически")

	root.AddCommand(scanCmd())
	root.AddCommand(dedupeCmd())
	root.AddCommand(planCmd())
	root.AddCommand(applyCmd())
	root.AddCommand(trashCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(askCmd())
	return root
}

// withAgent создает агента, выполняет fn и закрывает ресурсы.
func withAgent(fn func(ctx context.Context, a *agent.Agent) error) error {
	ctx := context.Background()

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	a, err := agent.New(initCtx, configPath)
	if err != nil {
		return fmt.Errorf("agent creation failed: %w", err)
	}
	defer a.Close()

	stop := answerQuestions(a)
	defer stop()

	return fn(ctx, a)
}

// answerQuestions обслуживает вопросы агента в фоне.
//
// С --yes всегда выбирается первый вариант (он подтверждающий по
// соглашению инструментов). Без флага вопрос печатается в терминал
// и ответ читается из stdin.
func answerQuestions(a *agent.Agent) (stop func()) {
	done := make(chan struct{})

	go func() {
		qm := a.Questions()
		reader := bufio.NewReader(os.Stdin)

		for {
			select {
			case <-done:
				return
			case <-time.After(100 * time.Millisecond):
			}

			id := qm.GetFirstPendingID()
			if id == "" {
				continue
			}
			q, ok := qm.GetQuestion(id)
			if !ok {
				continue
			}

			index := 0
			if !autoYes {
				fmt.Printf("\n%s\n", q.Question)
				for i, opt := range q.Options {
					fmt.Printf("  [%d] %s", i+1, opt.Label)
					if opt.Description != "" {
						fmt.Printf(" — %s", opt.Description)
					}
					fmt.Println()
				}
				fmt.Print("Выбор: ")

				line, err := reader.ReadString('\n')
				if err != nil {
					qm.Cancel(id, "stdin closed")
					continue
				}
				n, err := strconv.Atoi(strings.TrimSpace(line))
				if err != nil || !q.IsValidIndex(n-1) {
					fmt.Println("Непонятный выбор, операция отменена.")
					qm.Cancel(id, "invalid choice")
					continue
				}
				index = n - 1
			}

			opt, _ := q.GetOption(index)
			_ = qm.SubmitAnswer(id, questions.QuestionAnswer{
				Index:       index,
				Label:       opt.Label,
				Description: opt.Description,
				Timestamp:   time.Now(),
			})
		}
	}()

	return func() { close(done) }
}

// runTool вызывает инструмент по имени и печатает результат.
func runTool(ctx context.Context, a *agent.Agent, name, argsJSON string) error {
	tool, err := a.Tools().Get(name)
	if err != nil {
		return err
	}

	result, err := tool.Execute(ctx, argsJSON)
	if err != nil {
		return err
	}

	fmt.Println(prettyJSON(result))
	return nil
}

// prettyJSON форматирует JSON-ответ инструмента для терминала.
// Не-JSON текст печатается как есть.
func prettyJSON(s string) string {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return s
	}
	return string(data)
}

func toolArgs(kv map[string]interface{}) string {
	data, err := json.Marshal(kv)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func scanCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Сканирует диск и классифицирует файлы по правилам",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(func(ctx context.Context, a *agent.Agent) error {
				return runTool(ctx, a, "scan_files", toolArgs(map[string]interface{}{
					"path":  path,
					"drive": driveName,
				}))
			})
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "подпапка для сканирования (пусто = весь диск)")
	return cmd
}

func dedupeCmd() *cobra.Command {
	var keepPolicy string

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Ищет дубликаты и готовит план удаления копий",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(func(ctx context.Context, a *agent.Agent) error {
				if err := runTool(ctx, a, "scan_files", toolArgs(map[string]interface{}{"drive": driveName})); err != nil {
					return err
				}
				return runTool(ctx, a, "find_duplicates", toolArgs(map[string]interface{}{
					"keep_policy": keepPolicy,
					"drive":       driveName,
				}))
			})
		},
	}
	cmd.Flags().StringVar(&keepPolicy, "keep", "oldest", "какую копию оставить: oldest, newest, shortest_path")
	return cmd
}

func planCmd() *cobra.Command {
	var strategy string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Строит план раскладки файлов по папкам",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(func(ctx context.Context, a *agent.Agent) error {
				if err := runTool(ctx, a, "scan_files", toolArgs(map[string]interface{}{"drive": driveName})); err != nil {
					return err
				}
				return runTool(ctx, a, "propose_plan", toolArgs(map[string]interface{}{
					"strategy": strategy,
				}))
			})
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "rules", "стратегия: rules или semantic")
	return cmd
}

func applyCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply [plan_id]",
		Short: "Применяет сохраненный план (последний, если ID не указан)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(func(ctx context.Context, a *agent.Agent) error {
				planID := ""
				if len(args) > 0 {
					planID = args[0]
				}
				return runTool(ctx, a, "apply_plan", toolArgs(map[string]interface{}{
					"plan_id": planID,
					"dry_run": dryRun,
				}))
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "показать действия без выполнения")
	return cmd
}

func trashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trash",
		Short: "Показывает содержимое корзины",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(func(ctx context.Context, a *agent.Agent) error {
				return runTool(ctx, a, "list_trash", "{}")
			})
		},
	}
}

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <record_id>",
		Short: "Восстанавливает файл из корзины",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(func(ctx context.Context, a *agent.Agent) error {
				return runTool(ctx, a, "restore_file", toolArgs(map[string]interface{}{
					"record_id": args[0],
				}))
			})
		},
	}
}

// askCmd отправляет один запрос LLM-агенту и печатает ответ.
// Headless аналог диалога в TUI.
func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <запрос>",
		Short: "Выполняет запрос через LLM-агента",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(func(ctx context.Context, a *agent.Agent) error {
				result, err := a.Run(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Println(result)
				return nil
			})
		},
	}
}
