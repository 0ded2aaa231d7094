// Package s3drive реализует drive.Drive поверх S3-совместимого хранилища.
//
// "Тупой" клиент: классификация и планирование живут отдельно.
// Папки в S3 виртуальные, материализуются маркерными объектами с ключом
// "folder/". Move реализован как server-side copy + remove, потому что
// S3 API не умеет rename.
package s3drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ilkoid/shkaf-ai/pkg/config"
	"github.com/ilkoid/shkaf-ai/pkg/drive"
)

type Drive struct {
	api    *minio.Client
	bucket string
}

// Проверка что Drive реализует интерфейс
var _ drive.Drive = (*Drive)(nil)

// New создает клиент, используя наш конфиг.
func New(cfg config.S3Config) (*Drive, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &Drive{
		api:    minioClient,
		bucket: cfg.Bucket,
	}, nil
}

// Name возвращает имя хранилища для логов и UI.
func (d *Drive) Name() string {
	return "s3:" + d.bucket
}

// normalize приводит путь к виду ключа S3 (без ведущих/замыкающих слешей).
func normalize(p string) string {
	return strings.Trim(p, "/")
}

// folderPrefix превращает путь папки в префикс листинга.
// Пустой путь означает корень бакета.
func folderPrefix(p string) string {
	p = normalize(p)
	if p == "" {
		return ""
	}
	return p + "/"
}

// List возвращает содержимое "папки" по префиксу.
func (d *Drive) List(ctx context.Context, p string, recursive bool) ([]drive.Entry, error) {
	prefix := folderPrefix(p)

	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	}

	var entries []drive.Entry
	for obj := range d.api.ListObjects(ctx, d.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %q: %w", p, obj.Err)
		}
		// Пропускаем маркер самой папки
		if obj.Key == prefix {
			continue
		}

		key := obj.Key
		isFolder := strings.HasSuffix(key, "/")
		if isFolder {
			key = strings.TrimSuffix(key, "/")
		}

		entries = append(entries, drive.Entry{
			Path:     key,
			Name:     path.Base(key),
			Size:     obj.Size,
			ModTime:  obj.LastModified,
			IsFolder: isFolder,
		})
	}

	// Пустой результат по непустому префиксу означает что папки нет.
	// Корень бакета пустым быть может.
	if len(entries) == 0 && prefix != "" {
		if _, err := d.Stat(ctx, p); err != nil {
			return nil, fmt.Errorf("%q: %w", p, drive.ErrNotFound)
		}
	}

	return entries, nil
}

// Stat возвращает метаданные объекта или папки.
//
// Сначала пробуем как файл (StatObject), потом как папку
// (маркер или наличие детей).
func (d *Drive) Stat(ctx context.Context, p string) (drive.Entry, error) {
	key := normalize(p)
	if key == "" {
		return drive.Entry{Path: "", Name: "", IsFolder: true}, nil
	}

	info, err := d.api.StatObject(ctx, d.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return drive.Entry{
			Path:    key,
			Name:    path.Base(key),
			Size:    info.Size,
			ModTime: info.LastModified,
		}, nil
	}

	// Не файл. Возможно папка: ищем хотя бы один объект под префиксом
	prefix := key + "/"
	objCh := d.api.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
		MaxKeys:   1,
	})
	for obj := range objCh {
		if obj.Err != nil {
			return drive.Entry{}, fmt.Errorf("stat %q: %w", p, obj.Err)
		}
		return drive.Entry{
			Path:     key,
			Name:     path.Base(key),
			IsFolder: true,
		}, nil
	}

	return drive.Entry{}, fmt.Errorf("%q: %w", p, drive.ErrNotFound)
}

// Open открывает объект на чтение.
//
// GetObject у minio ленивый: ошибка "ключ не найден" всплывает только
// при первом чтении, поэтому сразу проверяем объект через Stat.
func (d *Drive) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	key := normalize(p)

	if _, err := d.api.StatObject(ctx, d.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%q: %w", p, drive.ErrNotFound)
		}
		return nil, fmt.Errorf("stat %q: %w", p, err)
	}

	obj, err := d.api.GetObject(ctx, d.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", p, err)
	}
	return obj, nil
}

// Mkdir материализует папку маркерным объектом "folder/".
func (d *Drive) Mkdir(ctx context.Context, p string) error {
	prefix := folderPrefix(p)
	if prefix == "" {
		return nil
	}

	_, err := d.api.PutObject(ctx, d.bucket, prefix, bytes.NewReader(nil), 0, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("mkdir %q: %w", p, err)
	}
	return nil
}

// Move перемещает объект в другую папку через copy + remove.
//
// Идемпотентность: если источник пропал, а объект уже лежит в целевой
// папке, операция считается выполненной.
func (d *Drive) Move(ctx context.Context, src, dstFolder string) error {
	srcKey := normalize(src)
	dstKey := path.Join(normalize(dstFolder), path.Base(srcKey))

	if srcKey == dstKey {
		return nil
	}

	if _, err := d.api.StatObject(ctx, d.bucket, srcKey, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			if _, dstErr := d.api.StatObject(ctx, d.bucket, dstKey, minio.StatObjectOptions{}); dstErr == nil {
				return nil
			}
			return fmt.Errorf("%q: %w", src, drive.ErrNotFound)
		}
		return fmt.Errorf("stat %q: %w", src, err)
	}

	_, err := d.api.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: d.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: d.bucket, Object: srcKey},
	)
	if err != nil {
		return fmt.Errorf("copy %q to %q: %w", src, dstFolder, err)
	}

	if err := d.api.RemoveObject(ctx, d.bucket, srcKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove source %q after copy: %w", src, err)
	}
	return nil
}

// Delete удаляет объект или папку.
//
// Папка удаляется рекурсивно: сначала все дочерние объекты, затем маркер.
func (d *Drive) Delete(ctx context.Context, p string, recursive bool) error {
	key := normalize(p)
	if key == "" {
		return fmt.Errorf("refusing to delete bucket root")
	}

	entry, err := d.Stat(ctx, p)
	if err != nil {
		return err
	}

	if !entry.IsFolder {
		if err := d.api.RemoveObject(ctx, d.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("delete %q: %w", p, err)
		}
		return nil
	}

	if !recursive {
		return fmt.Errorf("%q is a folder, use recursive delete", p)
	}

	prefix := key + "/"
	objCh := d.api.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objCh {
		if obj.Err != nil {
			return fmt.Errorf("list for delete %q: %w", p, obj.Err)
		}
		if err := d.api.RemoveObject(ctx, d.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("delete %q: %w", obj.Key, err)
		}
	}

	// Маркер папки, если он есть
	if err := d.api.RemoveObject(ctx, d.bucket, prefix, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete folder marker %q: %w", p, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}
