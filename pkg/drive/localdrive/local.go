// Package localdrive реализует drive.Drive поверх локальной файловой системы.
//
// "Тупой" клиент: классификация и планирование живут отдельно.
package localdrive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ilkoid/shkaf-ai/pkg/drive"
)

type Drive struct {
	root    string   // Абсолютный путь к корню
	exclude []string // Glob-паттерны для пропуска (трэш, .git и т.п.)
}

// Проверка что Drive реализует интерфейс
var _ drive.Drive = (*Drive)(nil)

// New создает диск с корнем в указанной директории.
//
// Паттерны exclude сопоставляются с именем каждого элемента пути
// через path.Match, поэтому ".shkaf-trash" исключает папку целиком.
func New(root string, exclude []string) (*Drive, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}

	return &Drive{root: abs, exclude: exclude}, nil
}

// Name возвращает имя хранилища для логов и UI.
func (d *Drive) Name() string {
	return "local:" + d.root
}

// resolve превращает унифицированный путь в абсолютный путь ФС.
// Отклоняет выход за пределы корня.
func (d *Drive) resolve(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return d.root, nil
	}
	full := filepath.Join(d.root, filepath.FromSlash(p))
	// filepath.Join чистит "..", поэтому достаточно проверить префикс
	if full != d.root && !strings.HasPrefix(full, d.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes drive root", p)
	}
	return full, nil
}

// rel возвращает унифицированный путь для абсолютного пути ФС.
func (d *Drive) rel(full string) string {
	r, err := filepath.Rel(d.root, full)
	if err != nil || r == "." {
		return ""
	}
	return filepath.ToSlash(r)
}

// excluded проверяет попадает ли путь под exclude-паттерны.
// Паттерны матчатся по каждому элементу пути.
func (d *Drive) excluded(relPath string) bool {
	for _, part := range strings.Split(relPath, "/") {
		for _, pattern := range d.exclude {
			if ok, _ := path.Match(pattern, part); ok {
				return true
			}
		}
	}
	return false
}

// List возвращает содержимое папки.
func (d *Drive) List(ctx context.Context, p string, recursive bool) ([]drive.Entry, error) {
	full, err := d.resolve(p)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(full); os.IsNotExist(err) {
		return nil, fmt.Errorf("%q: %w", p, drive.ErrNotFound)
	}

	var entries []drive.Entry

	if !recursive {
		dirEntries, err := os.ReadDir(full)
		if err != nil {
			return nil, fmt.Errorf("read dir %q: %w", p, err)
		}
		for _, de := range dirEntries {
			relPath := d.rel(filepath.Join(full, de.Name()))
			if d.excluded(relPath) {
				continue
			}
			info, err := de.Info()
			if err != nil {
				continue // Файл исчез между ReadDir и Info
			}
			entries = append(entries, entryFromInfo(relPath, info))
		}
		return entries, nil
	}

	err = filepath.WalkDir(full, func(fsPath string, de fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		// Кооперативная отмена при обходе больших деревьев
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if fsPath == full {
			return nil
		}
		relPath := d.rel(fsPath)
		if d.excluded(relPath) {
			if de.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, entryFromInfo(relPath, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", p, err)
	}

	return entries, nil
}

// Stat возвращает метаданные одного пути.
func (d *Drive) Stat(ctx context.Context, p string) (drive.Entry, error) {
	full, err := d.resolve(p)
	if err != nil {
		return drive.Entry{}, err
	}

	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return drive.Entry{}, fmt.Errorf("%q: %w", p, drive.ErrNotFound)
	}
	if err != nil {
		return drive.Entry{}, fmt.Errorf("stat %q: %w", p, err)
	}

	return entryFromInfo(d.rel(full), info), nil
}

// Open открывает файл на чтение.
func (d *Drive) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	full, err := d.resolve(p)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%q: %w", p, drive.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", p, err)
	}
	return f, nil
}

// Mkdir создает папку вместе с родительскими.
func (d *Drive) Mkdir(ctx context.Context, p string) error {
	full, err := d.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return fmt.Errorf("mkdir %q: %w", p, err)
	}
	return nil
}

// Move перемещает файл в другую папку, сохраняя имя.
//
// Идемпотентность: если файл уже лежит в целевой папке, операция
// считается выполненной.
func (d *Drive) Move(ctx context.Context, src, dstFolder string) error {
	srcFull, err := d.resolve(src)
	if err != nil {
		return err
	}

	name := filepath.Base(srcFull)
	dstRel := path.Join(strings.Trim(dstFolder, "/"), name)
	dstFull, err := d.resolve(dstRel)
	if err != nil {
		return err
	}

	if srcFull == dstFull {
		return nil
	}

	if _, err := os.Stat(srcFull); os.IsNotExist(err) {
		// Если источник пропал, но файл уже на месте: считаем перемещение выполненным
		if _, dstErr := os.Stat(dstFull); dstErr == nil {
			return nil
		}
		return fmt.Errorf("%q: %w", src, drive.ErrNotFound)
	}

	if err := os.MkdirAll(filepath.Dir(dstFull), 0o755); err != nil {
		return fmt.Errorf("mkdir for move: %w", err)
	}

	if err := os.Rename(srcFull, dstFull); err != nil {
		return fmt.Errorf("move %q to %q: %w", src, dstFolder, err)
	}
	return nil
}

// Delete удаляет файл или папку.
func (d *Drive) Delete(ctx context.Context, p string, recursive bool) error {
	full, err := d.resolve(p)
	if err != nil {
		return err
	}
	if full == d.root {
		return fmt.Errorf("refusing to delete drive root")
	}

	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return fmt.Errorf("%q: %w", p, drive.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("stat %q: %w", p, err)
	}

	if info.IsDir() {
		if !recursive {
			return fmt.Errorf("%q is a folder, use recursive delete", p)
		}
		if err := os.RemoveAll(full); err != nil {
			return fmt.Errorf("delete folder %q: %w", p, err)
		}
		return nil
	}

	if err := os.Remove(full); err != nil {
		return fmt.Errorf("delete %q: %w", p, err)
	}
	return nil
}

func entryFromInfo(relPath string, info fs.FileInfo) drive.Entry {
	size := info.Size()
	if info.IsDir() {
		size = 0
	}
	return drive.Entry{
		Path:     relPath,
		Name:     info.Name(),
		Size:     size,
		ModTime:  info.ModTime(),
		IsFolder: info.IsDir(),
	}
}
