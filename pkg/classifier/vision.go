package classifier

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/llm"
	"github.com/ilkoid/shkaf-ai/pkg/utils"
)

// visionPrompt просит короткое описание, пригодное как тег и как текст
// для семантического индекса.
const visionPrompt = "Опиши содержимое изображения одним коротким предложением. " +
	"Укажи тип документа если это скан или скриншот."

// VisionDescriber описывает изображения через vision-модель.
//
// Картинка уменьшается перед отправкой: локальным моделям не нужны
// полноразмерные фото, а токены стоят времени.
type VisionDescriber struct {
	provider llm.Provider
	cfg      config.ImageProcConfig
}

// NewVisionDescriber создает дескрайбер поверх vision-провайдера.
func NewVisionDescriber(provider llm.Provider, cfg config.ImageProcConfig) *VisionDescriber {
	return &VisionDescriber{provider: provider, cfg: cfg.GetDefaults()}
}

// SupportedImage проверяет является ли файл изображением по расширению.
func SupportedImage(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// Describe возвращает текстовое описание изображения.
//
// Алгоритм:
//  1. Уменьшаем картинку до MaxWidth (JPEG)
//  2. Кодируем в base64 data-uri
//  3. Отправляем vision-модели с коротким промптом
func (v *VisionDescriber) Describe(ctx context.Context, imageData []byte) (string, error) {
	resized, err := utils.ResizeImage(imageData, v.cfg.MaxWidth, v.cfg.Quality)
	if err != nil {
		return "", fmt.Errorf("resize image: %w", err)
	}

	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(resized)

	resp, err := v.provider.Generate(ctx, []llm.Message{
		{
			Role:    llm.RoleUser,
			Content: visionPrompt,
			Images:  []string{dataURI},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision request: %w", err)
	}

	return strings.TrimSpace(resp.Content), nil
}
