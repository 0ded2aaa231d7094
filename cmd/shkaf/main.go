// Shkaf AI - TUI агент для наведения порядка в файлах.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/shkaf-ai/internal/ui"
	"github.com/ilkoid/shkaf-ai/pkg/agent"
	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "./config.yaml", "путь к конфигу")
	flag.Parse()

	if err := utils.InitLogger(); err != nil {
		log.Printf("Warning: failed to init logger: %v", err)
	}
	defer utils.Close()

	utils.Info("Shkaf AI started")

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	client, err := agent.New(initCtx, *configPath)
	if err != nil {
		utils.Error("Agent creation failed", "error", err)
		return fmt.Errorf("agent creation failed: %w", err)
	}
	defer client.Close()

	logKeysInfo(client.Config())

	model := ui.New(client, client.Config().Models.DefaultChat)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithInput(os.Stdin),   // Явно используем stdin (фикс для WSL2)
		tea.WithOutput(os.Stdout), // Явно используем stdout (фикс для WSL2)
	)

	if _, err := p.Run(); err != nil {
		utils.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	utils.Info("Application exited normally")
	return nil
}

// maskKey показывает первые 8 символов ключа для идентификации.
func maskKey(key string) string {
	if key == "" {
		return "NOT SET"
	}
	if len(key) <= 8 {
		return key + "..."
	}
	return key[:8] + "..."
}

// logKeysInfo логирует статус секретов без раскрытия значений.
func logKeysInfo(cfg *config.AppConfig) {
	for name, modelDef := range cfg.Models.Definitions {
		if modelDef.APIKey != "" {
			utils.Debug("api key loaded", "model", name, "key", maskKey(modelDef.APIKey))
		}
	}
	if cfg.Storage.S3.Enabled() {
		utils.Debug("s3 keys loaded",
			"access_key", maskKey(cfg.Storage.S3.AccessKey),
			"secret_key", maskKey(cfg.Storage.S3.SecretKey))
	}
}
