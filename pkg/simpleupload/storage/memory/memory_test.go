package memory_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-upload/pkg/simpleupload/storage/memory"
	"github.com/tendant/simple-upload/pkg/simpleupload/storageworker"
)

func TestMemoryBackend(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()
	testKey := "public/uploads/object"
	testData := "Hello, World! This is test data."

	t.Run("Upload", func(t *testing.T) {
		err := backend.Upload(ctx, strings.NewReader(testData), storageworker.UploadParams{ObjectKey: testKey})
		assert.NoError(t, err)
	})

	t.Run("GetObjectMeta", func(t *testing.T) {
		meta, err := backend.GetObjectMeta(ctx, testKey)
		require.NoError(t, err)
		assert.Equal(t, testKey, meta.Key)
		assert.Equal(t, int64(len(testData)), meta.Size)
		assert.Equal(t, "application/octet-stream", meta.ContentType) // Default content type
		assert.NotEmpty(t, meta.ETag)
		assert.False(t, meta.UpdatedAt.IsZero())
	})

	t.Run("Download", func(t *testing.T) {
		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		downloaded, err := io.ReadAll(reader)
		assert.NoError(t, err)
		assert.Equal(t, testData, string(downloaded))
	})

	t.Run("UploadWithMimeType", func(t *testing.T) {
		err := backend.Upload(ctx, strings.NewReader(testData), storageworker.UploadParams{
			ObjectKey: "public/uploads/typed",
			MimeType:  "text/plain",
		})
		require.NoError(t, err)

		meta, err := backend.GetObjectMeta(ctx, "public/uploads/typed")
		require.NoError(t, err)
		assert.Equal(t, "text/plain", meta.ContentType)
	})

	t.Run("Copy", func(t *testing.T) {
		require.NoError(t, backend.Copy(ctx, testKey, "private/copies/object"))

		reader, err := backend.Download(ctx, "private/copies/object")
		require.NoError(t, err)
		copied, _ := io.ReadAll(reader)
		assert.Equal(t, testData, string(copied))

		// Overwriting the source leaves the copy untouched
		require.NoError(t, backend.Upload(ctx, strings.NewReader("changed"), storageworker.UploadParams{ObjectKey: testKey}))
		reader, err = backend.Download(ctx, "private/copies/object")
		require.NoError(t, err)
		copied, _ = io.ReadAll(reader)
		assert.Equal(t, testData, string(copied))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, testKey))

		_, err := backend.GetObjectMeta(ctx, testKey)
		assert.ErrorIs(t, err, storageworker.ErrObjectNotFound)
	})

	t.Run("ErrorCases", func(t *testing.T) {
		missing := "public/missing"

		meta, err := backend.GetObjectMeta(ctx, missing)
		assert.ErrorIs(t, err, storageworker.ErrObjectNotFound)
		assert.Nil(t, meta)

		reader, err := backend.Download(ctx, missing)
		assert.ErrorIs(t, err, storageworker.ErrObjectNotFound)
		assert.Nil(t, reader)

		assert.ErrorIs(t, backend.Delete(ctx, missing), storageworker.ErrObjectNotFound)
		assert.ErrorIs(t, backend.Copy(ctx, missing, "public/target"), storageworker.ErrObjectNotFound)
	})
}

func TestMemoryBackendConcurrency(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("public/concurrent/%d", i)
			assert.NoError(t, backend.Upload(ctx, strings.NewReader(key), storageworker.UploadParams{ObjectKey: key}))
			_, err := backend.GetObjectMeta(ctx, key)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		_, err := backend.GetObjectMeta(ctx, fmt.Sprintf("public/concurrent/%d", i))
		assert.NoError(t, err)
	}
}
