// llm-ping - диагностика сервера Ollama перед запуском агента.
//
// Проверяет доступность сервера, печатает версию и список моделей,
// сверяет настроенные в конфиге модели с установленными.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/ollama"
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

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	client, err := ollama.NewFromConfig(cfg.Ollama)
	if err != nil {
		return fmt.Errorf("ollama client failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	version, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Ollama server: OK (version %s)\n", version)

	models, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("список моделей недоступен: %w", err)
	}

	fmt.Printf("\nУстановленные модели (%d):\n", len(models))
	for _, m := range models {
		fmt.Printf("  %-40s %10s  %s\n", m.Name, utils.FormatSize(m.Size), m.Details.ParameterSize)
	}

	fmt.Println("\nНастроенные модели:")
	ok := true
	for alias, def := range cfg.Models.Definitions {
		if def.Provider != "ollama" {
			fmt.Printf("  %-12s %-40s (провайдер %s, пропуск)\n", alias, def.ModelName, def.Provider)
			continue
		}
		has, err := client.HasModel(ctx, def.ModelName)
		if err != nil {
			return err
		}
		status := "OK"
		if !has {
			status = "НЕ НАЙДЕНА (ollama pull " + def.ModelName + ")"
			ok = false
		}
		fmt.Printf("  %-12s %-40s %s\n", alias, def.ModelName, status)
	}

	if !ok {
		return fmt.Errorf("не все настроенные модели установлены")
	}
	return nil
}
