// Package storage хранит вложения откликов на диске или в S3-совместимом хранилище.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound возвращается, когда объект отсутствует в хранилище.
	ErrNotFound = errors.New("storage: объект не найден")
	// ErrTooLarge возвращается, когда файл превышает допустимый размер.
	ErrTooLarge = errors.New("storage: размер файла превышает лимит")
)

// Object - содержимое файла для сохранения.
type Object struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

// FileStorage - хранилище вложений.
type FileStorage interface {
	Save(ctx context.Context, key string, obj Object) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// AttachmentKey формирует уникальный ключ вложения владельца.
func AttachmentKey(ownerID uuid.UUID, originalName, ext string) string {
	base := strings.TrimSuffix(SanitizeFilename(originalName), filepath.Ext(originalName))
	if base == "" {
		base = "file"
	}
	return path.Join(
		"applications",
		ownerID.String(),
		fmt.Sprintf("%d_%s.%s", time.Now().UnixNano(), base, ext),
	)
}

// SanitizeFilename удаляет потенциально опасные символы.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." {
		name = "file"
	}
	return name
}
