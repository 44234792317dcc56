package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_SaveOpenDelete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), 1)
	require.NoError(t, err)

	ctx := context.Background()
	key := AttachmentKey(uuid.New(), "cv.pdf", "pdf")

	written, err := s.Save(ctx, key, Object{Body: strings.NewReader("%PDF-1.4 body"), Size: 13})
	require.NoError(t, err)
	assert.Equal(t, int64(13), written)

	rc, err := s.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF-1.4 body", string(data))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Open(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_RejectsTooLarge(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), 1)
	require.NoError(t, err)

	big := bytes.Repeat([]byte("a"), 1024*1024+1)
	_, err = s.Save(context.Background(), "applications/x/big.zip", Object{Body: bytes.NewReader(big)})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLocalStorage_KeyCannotEscapeRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(root, 1)
	require.NoError(t, err)

	target, err := s.resolve("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(target, root))
}

func TestAttachmentKey(t *testing.T) {
	owner := uuid.New()
	key := AttachmentKey(owner, "../My CV.pdf", "pdf")

	assert.True(t, strings.HasPrefix(key, "applications/"+owner.String()+"/"))
	assert.True(t, strings.HasSuffix(key, "_My_CV.pdf"))
	assert.NotContains(t, key, "..")
}

func TestDetectAttachmentType(t *testing.T) {
	tests := []struct {
		name    string
		head    []byte
		wantExt string
		wantErr bool
	}{
		{"pdf", []byte("%PDF-1.7\n%âãÏÓ"), "pdf", false},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D}, "png", false},
		{"jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F'}, "jpg", false},
		{"gif not allowed", []byte("GIF89a\x01\x00\x01\x00"), "", true},
		{"plain text", []byte("просто текст без сигнатуры"), "", true},
		{"empty", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectAttachmentType(tt.head)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, got.Extension)
			assert.NotEmpty(t, got.MIME)
		})
	}
}
