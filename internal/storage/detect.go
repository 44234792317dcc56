package storage

import (
	"errors"

	"github.com/h2non/filetype"
)

// SniffLen - сколько байт из начала файла достаточно для определения типа.
const SniffLen = 261

// ErrUnsupportedType возвращается для файлов недопустимого типа.
var ErrUnsupportedType = errors.New("недопустимый тип файла: разрешены pdf, doc, docx, png, jpg, zip")

// AttachmentType - распознанный тип вложения.
type AttachmentType struct {
	MIME      string
	Extension string
}

// allowedAttachments ключ - расширение, которое возвращает filetype.
var allowedAttachments = map[string]struct{}{
	"pdf":  {},
	"doc":  {},
	"docx": {},
	"png":  {},
	"jpg":  {},
	"zip":  {},
}

// DetectAttachmentType определяет тип по содержимому, а не по имени файла.
func DetectAttachmentType(head []byte) (AttachmentType, error) {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return AttachmentType{}, ErrUnsupportedType
	}

	if _, ok := allowedAttachments[kind.Extension]; !ok {
		return AttachmentType{}, ErrUnsupportedType
	}

	return AttachmentType{MIME: kind.MIME.Value, Extension: kind.Extension}, nil
}
