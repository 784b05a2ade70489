package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storelink/backend/internal/infrastructure/config"
)

func TestNewS3Archive_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3Archive(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3Archive(&config.StorageConfig{AccessKey: "k", SecretKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing access key returns error", func(t *testing.T) {
		_, err := NewS3Archive(&config.StorageConfig{Bucket: "b", SecretKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("missing secret key returns error", func(t *testing.T) {
		_, err := NewS3Archive(&config.StorageConfig{Bucket: "b", AccessKey: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("defaults are applied", func(t *testing.T) {
		archive, err := NewS3Archive(&config.StorageConfig{Bucket: "b", AccessKey: "k", SecretKey: "s", Endpoint: "minio:9000"})
		require.NoError(t, err)
		assert.Equal(t, "b", archive.Bucket())
		assert.Equal(t, 15*time.Minute, archive.presignExpiration)
	})

	t.Run("option overrides expiration", func(t *testing.T) {
		archive, err := NewS3Archive(&config.StorageConfig{Bucket: "b", AccessKey: "k", SecretKey: "s"},
			WithPresignExpiration(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, time.Hour, archive.presignExpiration)
	})
}

// fakeS3 is a minimal path-style S3 endpoint
type fakeS3 struct {
	mu      sync.Mutex
	puts    map[string]string
	listing string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPut:
		f.puts[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		w.Header().Set("Content-Type", "application/xml")
		_, _ = fmt.Fprint(w, f.listing)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFakeArchive(t *testing.T, fake *fakeS3) *S3Archive {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	archive, err := NewS3Archive(&config.StorageConfig{
		Bucket:       "archives",
		AccessKey:    "k",
		SecretKey:    "s",
		Endpoint:     server.URL,
		UsePathStyle: true,
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return archive
}

func TestS3Archive_Upload(t *testing.T) {
	fake := &fakeS3{puts: map[string]string{}}
	archive := newFakeArchive(t, fake)

	err := archive.Upload(context.Background(), "sync-logs/20260101T000000Z-0000.ndjson",
		[]byte("{\"kind\":\"job.full\"}\n"), "application/x-ndjson")
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "application/x-ndjson", fake.puts["/archives/sync-logs/20260101T000000Z-0000.ndjson"])
}

func TestS3Archive_UploadRequiresKey(t *testing.T) {
	archive := newFakeArchive(t, &fakeS3{puts: map[string]string{}})
	err := archive.Upload(context.Background(), "", []byte("x"), "text/plain")
	assert.Error(t, err)
}

func TestS3Archive_List(t *testing.T) {
	fake := &fakeS3{puts: map[string]string{}, listing: strings.TrimSpace(`
<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>archives</Name>
  <Prefix>sync-logs/</Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>sync-logs/a.ndjson</Key>
    <LastModified>2026-01-01T00:00:00.000Z</LastModified>
    <Size>120</Size>
  </Contents>
  <Contents>
    <Key>sync-logs/b.ndjson</Key>
    <LastModified>2026-01-08T00:00:00.000Z</LastModified>
    <Size>80</Size>
  </Contents>
</ListBucketResult>`)}
	archive := newFakeArchive(t, fake)

	objects, err := archive.List(context.Background(), "sync-logs/", 10)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "sync-logs/a.ndjson", objects[0].Key)
	assert.Equal(t, int64(120), objects[0].Size)

	limited, err := archive.List(context.Background(), "sync-logs/", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestS3Archive_DownloadURL(t *testing.T) {
	archive := newFakeArchive(t, &fakeS3{puts: map[string]string{}})

	link, expiresAt, err := archive.DownloadURL(context.Background(), "sync-logs/a.ndjson")
	require.NoError(t, err)
	assert.Contains(t, link, "/archives/sync-logs/a.ndjson")
	assert.Contains(t, link, "X-Amz-Signature")
	assert.True(t, expiresAt.After(time.Now()))

	_, _, err = archive.DownloadURL(context.Background(), "")
	assert.Error(t, err)
}
