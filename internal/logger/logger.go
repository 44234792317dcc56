package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Форматы вывода логов.
const (
	FormatJSON = "json"
	FormatText = "text"
)

var (
	mu  sync.RWMutex
	std *logrus.Logger
)

// New собирает логгер с заданным уровнем и форматом.
func New(out io.Writer, level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("logger: неизвестный уровень %q", level)
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON, "":
		l.SetFormatter(&logrus.JSONFormatter{})
	case FormatText:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("logger: неизвестный формат %q", format)
	}
	return l, nil
}

// Init заменяет общий логгер процесса. Вызывается один раз при старте.
func Init(level, format string) error {
	l, err := New(os.Stderr, level, format)
	if err != nil {
		return err
	}

	mu.Lock()
	std = l
	mu.Unlock()
	return nil
}

// L возвращает общий логгер, до Init это JSON на уровне info.
func L() *logrus.Logger {
	mu.RLock()
	l := std
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if std == nil {
		std, _ = New(os.Stderr, "info", FormatJSON)
	}
	return std
}

// WithComponent возвращает запись лога с полем component.
func WithComponent(name string) *logrus.Entry {
	return L().WithField("component", name)
}
