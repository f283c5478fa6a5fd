package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-upload/pkg/simpleupload/storageworker"
)

func TestS3Backend_BasicConfiguration(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(ctx, Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		backend, err := New(ctx, Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
	})

	t.Run("InvalidSSE", func(t *testing.T) {
		_, err := New(ctx, Config{
			Bucket:       "test-bucket",
			EnableSSE:    true,
			SSEAlgorithm: "rot13",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid SSE")
	})

	t.Run("MinIOEndpoint", func(t *testing.T) {
		backend, err := New(ctx, Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			Endpoint:        "http://localhost:9000",
			UsePathStyle:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9000", backend.config.Endpoint)
		assert.True(t, backend.config.UsePathStyle)
	})
}

func TestEncryption(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantSSE  types.ServerSideEncryption
		wantKMSK string
	}{
		{"disabled", Config{}, "", ""},
		{"aes256", Config{EnableSSE: true, SSEAlgorithm: "AES256"}, types.ServerSideEncryptionAes256, ""},
		{"kms default key", Config{EnableSSE: true, SSEAlgorithm: "aws:kms"}, types.ServerSideEncryptionAwsKms, ""},
		{"kms with key", Config{EnableSSE: true, SSEAlgorithm: "aws:kms", SSEKMSKeyID: "key-1"}, types.ServerSideEncryptionAwsKms, "key-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Backend{config: tt.config}
			sse, kms := b.encryption()
			assert.Equal(t, tt.wantSSE, sse)
			if tt.wantKMSK == "" {
				assert.Nil(t, kms)
			} else {
				require.NotNil(t, kms)
				assert.Equal(t, tt.wantKMSK, *kms)
			}
		})
	}
}

func TestCopySource(t *testing.T) {
	assert.Equal(t, "bucket/public/uploads/a%20b.png", copySource("bucket", "public/uploads/a b.png"))
	assert.Equal(t, "bucket/private/%C4%91e.pdf", copySource("bucket", "private/đe.pdf"))
}

// newFakeBackend points a backend at a minimal path-style S3 stand-in
func newFakeBackend(t *testing.T, handler http.HandlerFunc) *Backend {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	backend, err := New(context.Background(), Config{
		Bucket:          "uploads",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        server.URL,
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	return backend
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"typed no such key", &types.NoSuchKey{}, true},
		{"typed not found", fmt.Errorf("head: %w", &types.NotFound{}), true},
		{"bare api error", &smithy.GenericAPIError{Code: "NoSuchKey"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"transport error", fmt.Errorf("dial tcp: connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}

func TestS3Backend_GetObjectMeta(t *testing.T) {
	modified := time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC)

	backend := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		switch r.URL.Path {
		case "/uploads/public/a.png":
			w.Header().Set("Content-Length", "42")
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))
			w.Header().Set("ETag", `"abc123"`)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	meta, err := backend.GetObjectMeta(context.Background(), "public/a.png")
	require.NoError(t, err)
	assert.Equal(t, int64(42), meta.Size)
	assert.Equal(t, "image/png", meta.ContentType)
	assert.Equal(t, "abc123", meta.ETag)
	assert.True(t, meta.UpdatedAt.Equal(modified))

	_, err = backend.GetObjectMeta(context.Background(), "public/missing.png")
	assert.ErrorIs(t, err, storageworker.ErrObjectNotFound)
}

func TestS3Backend_DownloadNotFound(t *testing.T) {
	backend := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
	})

	_, err := backend.Download(context.Background(), "public/missing.png")
	assert.ErrorIs(t, err, storageworker.ErrObjectNotFound)
}

func TestS3Backend_Delete(t *testing.T) {
	var deleted string
	backend := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deleted = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, backend.Delete(context.Background(), "private/docs/a.pdf"))
	assert.Equal(t, "/uploads/private/docs/a.pdf", deleted)
}

// TestS3Backend_Integration requires a running MinIO instance or S3 credentials
func TestS3Backend_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	endpoint := os.Getenv("AWS_S3_ENDPOINT")
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	bucket := os.Getenv("AWS_S3_BUCKET")
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		t.Skip("Skipping integration test: S3/MinIO environment variables not set")
	}

	ctx := context.Background()
	backend, err := New(ctx, Config{
		Bucket:                 bucket,
		Region:                 "us-east-1",
		AccessKeyID:            accessKey,
		SecretAccessKey:        secretKey,
		Endpoint:               endpoint,
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	key := fmt.Sprintf("public/integration/%d/file.txt", time.Now().UnixNano())
	copyKey := key + ".copy"
	data := []byte("Hello from S3 integration test!")

	require.NoError(t, backend.Upload(ctx, bytes.NewReader(data), storageworker.UploadParams{ObjectKey: key, MimeType: "text/plain"}))

	meta, err := backend.GetObjectMeta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), meta.Size)
	assert.Equal(t, "text/plain", meta.ContentType)

	require.NoError(t, backend.Copy(ctx, key, copyKey))
	reader, err := backend.Download(ctx, copyKey)
	require.NoError(t, err)
	got, _ := io.ReadAll(reader)
	reader.Close()
	assert.Equal(t, data, got)

	require.NoError(t, backend.Delete(ctx, key))
	require.NoError(t, backend.Delete(ctx, copyKey))

	_, err = backend.GetObjectMeta(ctx, key)
	assert.ErrorIs(t, err, storageworker.ErrObjectNotFound)
}
