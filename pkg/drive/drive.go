// Package drive определяет единый интерфейс хранилища файлов.
//
// Агент работает с файлами через интерфейс Drive, не зная где они лежат.
// Реализации:
//   - localdrive - локальная файловая система
//   - s3drive - S3-совместимое облачное хранилище
//
// Семантика путей одинаковая для обеих реализаций: прямые слеши,
// относительно корня диска, без ведущего слеша. "docs/report.pdf"
// означает одно и то же локально и в бакете.
package drive

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound возвращается когда файл или папка не существуют.
var ErrNotFound = errors.New("path not found")

// Drive — абстракция хранилища файлов.
//
// Все методы принимают пути в унифицированном виде (см. описание пакета).
// Реализации обязаны быть потокобезопасными: сканер ходит по диску
// из нескольких горутин.
type Drive interface {
	// Name возвращает человекочитаемое имя хранилища для логов и UI.
	Name() string

	// List возвращает содержимое папки. При recursive=true обходит
	// вложенные папки. Пустой path означает корень.
	List(ctx context.Context, path string, recursive bool) ([]Entry, error)

	// Stat возвращает метаданные одного файла или папки.
	// Возвращает ErrNotFound если путь не существует.
	Stat(ctx context.Context, path string) (Entry, error)

	// Open открывает файл на чтение. Вызывающий обязан закрыть reader.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Mkdir создает папку (вместе с родительскими). Для S3 папка
	// материализуется маркерным объектом.
	Mkdir(ctx context.Context, path string) error

	// Move перемещает файл в другую папку, сохраняя имя.
	// dstFolder создается при необходимости.
	Move(ctx context.Context, src, dstFolder string) error

	// Delete удаляет файл или папку. Папка удаляется только
	// при recursive=true, иначе возвращается ошибка.
	Delete(ctx context.Context, path string, recursive bool) error
}

// Entry — запись листинга: файл или папка.
type Entry struct {
	Path     string    // Полный путь относительно корня диска
	Name     string    // Имя без пути
	Size     int64     // Размер в байтах (0 для папок)
	ModTime  time.Time // Время последней модификации
	IsFolder bool
}

// ClassificationStatus описывает источник классификации файла.
type ClassificationStatus string

const (
	// StatusUnclassified — файл еще не классифицирован.
	StatusUnclassified ClassificationStatus = "UNCLASSIFIED"
	// StatusRule — тег назначен glob-правилом из конфига.
	StatusRule ClassificationStatus = "CLASSIFIED_BY_RULE"
	// StatusAI — тег назначен LLM.
	StatusAI ClassificationStatus = "CLASSIFIED_BY_AI"
	// StatusUser — пользователь вручную поменял тег. Такой файл
	// больше не трогаем при autoclassify.
	StatusUser ClassificationStatus = "USER_MODIFIED"
)

// FileMeta хранит метаданные файла с тегом классификации.
//
// Description может быть заполнен позже vision-моделью
// (например, "Скан паспорта").
type FileMeta struct {
	Tag          string               // Тег классификации (documents, photos, etc.)
	Path         string               // Текущий путь на диске
	OriginalPath string               // Путь на момент сканирования
	Size         int64                // Размер файла в байтах
	ModTime      time.Time            // Время последней модификации
	Filename     string               // Имя файла без пути
	Digest       string               // SHA-256 содержимого (заполняется дедупликатором)
	Description  string               // Результат анализа vision-модели (Working Memory)
	Status       ClassificationStatus // Источник классификации
	Tags         []string             // Дополнительные теги (для расширенной классификации)
}

// NewFileMeta создает новый FileMeta с базовыми метаданными.
func NewFileMeta(tag, path string, size int64, filename string) *FileMeta {
	return &FileMeta{
		Tag:          tag,
		Path:         path,
		OriginalPath: path, // Изначально Path и OriginalPath совпадают
		Size:         size,
		Filename:     filename,
		Status:       StatusUnclassified,
		Tags:         []string{},
	}
}

// ReadAll скачивает файл целиком в память.
//
// Удобная обертка для мелких файлов (классификация, индексация).
// Крупные файлы читайте через Open.
func ReadAll(ctx context.Context, d Drive, path string) ([]byte, error) {
	rc, err := d.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
