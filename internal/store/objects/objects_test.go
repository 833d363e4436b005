package objects

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe/internal/store"
)

func TestLocalStore_Open(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "media", "org-1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "media", "org-1", "a.mp3"), []byte("audio"), 0o644))

	s, err := NewLocalStore(root)
	require.NoError(t, err)

	rc, err := s.Open(context.Background(), "media", "org-1/a.mp3")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(b))
}

func TestLocalStore_Missing(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open(context.Background(), "media", "nope.mp3")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open(context.Background(), "media", "../../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}

func TestGCSStore_Open(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") != "media" {
			http.Error(w, "expected media download", http.StatusBadRequest)
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/b/media/o/org-1/a.mp3"):
			_, _ = w.Write([]byte("gcs-audio"))
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"No such object"}}`))
		}
	}))
	defer srv.Close()

	s, err := NewGCSStore(context.Background(), GCSConfig{Endpoint: srv.URL + "/storage/v1/"})
	require.NoError(t, err)

	rc, err := s.Open(context.Background(), "media", "org-1/a.mp3")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "gcs-audio", string(b))

	_, err = s.Open(context.Background(), "media", "missing.mp3")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
