package simpleupload_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/objectkey"
	"github.com/tendant/simple-upload/pkg/simpleupload/token"
	"github.com/tendant/simple-upload/pkg/simpleupload/worker"
)

const (
	clientKey  = "client-secret"
	backendKey = "backend-secret"
	workerURL  = "https://worker.example"
)

var fixedID = uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")

func newIssuer(opts ...token.Option) *token.Issuer {
	return token.New(append([]token.Option{token.WithClientKey(clientKey), token.WithBackendKey(backendKey)}, opts...)...)
}

func newService(t *testing.T, opts ...simpleupload.Option) simpleupload.Service {
	t.Helper()
	base := []simpleupload.Option{
		simpleupload.WithTokenIssuer(newIssuer()),
		simpleupload.WithWorkerBaseURL(workerURL),
		simpleupload.WithKeyGenerator(&objectkey.Generator{NewID: func() uuid.UUID { return fixedID }}),
	}
	svc, err := simpleupload.New(append(base, opts...)...)
	require.NoError(t, err)
	return svc
}

// newWorker starts a mock worker and returns a service pointed at it
func newWorker(t *testing.T, handler http.HandlerFunc) simpleupload.Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return newService(t, simpleupload.WithWorker(worker.NewClient(server.URL, newIssuer())))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name    string
		options []simpleupload.Option
		wantErr error
	}{
		{
			name:    "no options should fail",
			wantErr: simpleupload.ErrTokenIssuerRequired,
		},
		{
			name:    "issuer without worker URL should fail",
			options: []simpleupload.Option{simpleupload.WithTokenIssuer(newIssuer())},
			wantErr: simpleupload.ErrWorkerBaseURLRequired,
		},
		{
			name: "issuer and worker URL should succeed",
			options: []simpleupload.Option{
				simpleupload.WithTokenIssuer(newIssuer()),
				simpleupload.WithWorkerBaseURL(workerURL),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := simpleupload.New(tt.options...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func parseUploadToken(t *testing.T, uploadURL string) map[string]any {
	t.Helper()
	u, err := url.Parse(uploadURL)
	require.NoError(t, err)

	claims, err := token.NewVerifier(clientKey, backendKey).Verify(u.Query().Get("token"), token.AudienceClient)
	require.NoError(t, err)
	return claims
}

func TestPresignUpload(t *testing.T) {
	svc := newService(t)

	resp, err := svc.PresignUpload(context.Background(), simpleupload.PresignRequest{
		FileName:   "report.pdf",
		AccessRole: simpleupload.RoleGuest,
	})
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", resp.Key)
	assert.Equal(t, 900, resp.ExpiresIn)
	assert.Equal(t, simpleupload.RoleGuest, resp.AccessRole)
	assert.True(t, strings.HasPrefix(resp.UploadURL, workerURL+"/upload/report.pdf?token="), resp.UploadURL)

	_, err = uuid.Parse(resp.UploadID)
	assert.NoError(t, err)

	claims := parseUploadToken(t, resp.UploadURL)
	assert.Equal(t, "report.pdf", claims["fileKey"])
	assert.Equal(t, "application/octet-stream", claims["ContentType"])
	assert.Equal(t, resp.UploadID, claims["uploadId"])
	assert.Equal(t, "GUEST", claims["accessRole"])
	assert.NotContains(t, claims, "role")
	assert.EqualValues(t, 900, claims["exp"].(float64)-claims["iat"].(float64))
}

func TestPresignUploadDefaults(t *testing.T) {
	svc := newService(t)

	resp, err := svc.PresignUpload(context.Background(), simpleupload.PresignRequest{})
	require.NoError(t, err)

	assert.Equal(t, "file", resp.Key)
	assert.Equal(t, simpleupload.RoleGuest, resp.AccessRole)

	other, err := svc.PresignUpload(context.Background(), simpleupload.PresignRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, resp.UploadID, other.UploadID, "every presign gets a fresh upload id")
}

func TestPresignUploadKeepsFileNameVerbatim(t *testing.T) {
	svc := newService(t)

	resp, err := svc.PresignUpload(context.Background(), simpleupload.PresignRequest{
		FileName:    "Đề Thi 12.pdf",
		AccessRole:  "STUDENT",
		ContentType: "application/pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, "Đề Thi 12.pdf", resp.Key)

	u, err := url.Parse(resp.UploadURL)
	require.NoError(t, err)
	assert.Equal(t, "/upload/Đề Thi 12.pdf", u.Path)

	claims := parseUploadToken(t, resp.UploadURL)
	assert.Equal(t, "Đề Thi 12.pdf", claims["fileKey"])
	assert.Equal(t, "application/pdf", claims["ContentType"])
	assert.Equal(t, "STUDENT", claims["accessRole"])
}

func TestPresignUploadExpiresInFollowsTTL(t *testing.T) {
	svc, err := simpleupload.New(
		simpleupload.WithTokenIssuer(newIssuer(token.WithClientTTL(30*time.Minute))),
		simpleupload.WithWorkerBaseURL(workerURL),
	)
	require.NoError(t, err)

	resp, err := svc.PresignUpload(context.Background(), simpleupload.PresignRequest{FileName: "a.png"})
	require.NoError(t, err)

	assert.Equal(t, 1800, resp.ExpiresIn)
	claims := parseUploadToken(t, resp.UploadURL)
	assert.EqualValues(t, 1800, claims["exp"].(float64)-claims["iat"].(float64))
}

func TestPresignUploadWithoutClientKey(t *testing.T) {
	svc, err := simpleupload.New(
		simpleupload.WithTokenIssuer(token.New(token.WithBackendKey(backendKey))),
		simpleupload.WithWorkerBaseURL(workerURL),
	)
	require.NoError(t, err)

	resp, err := svc.PresignUpload(context.Background(), simpleupload.PresignRequest{FileName: "a.png"})

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, token.ErrMissingSigningKey)
	var cfgErr *token.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "jwtKey", cfgErr.Key)
}

func TestGenerateFileKey(t *testing.T) {
	svc := newService(t)

	assert.Equal(t,
		"public/uploads/123e4567-e89b-12d3-a456-426614174000-de-thi-toan-12.pdf",
		svc.GenerateFileKey(simpleupload.RoleGuest, "", "Đề Thi Toán 12.pdf"))
	assert.Equal(t,
		"private/courses/math/123e4567-e89b-12d3-a456-426614174000-notes.txt",
		svc.GenerateFileKey("STUDENT", "Courses/Math", "notes.txt"))
}

func TestDeleteFileWorkerError(t *testing.T) {
	svc := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"success":false,"error":"boom"}`)
	})

	assert.NotPanics(t, func() {
		assert.False(t, svc.DeleteFile(context.Background(), "public/uploads/a.png"))
	})
}

func TestBatchDeleteFiles(t *testing.T) {
	svc := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/batch-delete", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"data":{"deleted":3}}`)
	})

	assert.Equal(t, 3, svc.BatchDeleteFiles(context.Background(), []string{"public/a", "public/b", "public/c"}))
}

func TestCreateFileDerivesKey(t *testing.T) {
	want := "private/lessons/123e4567-e89b-12d3-a456-426614174000-bai-giang.mp4"

	svc := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, want, r.FormValue("key"))
		assert.Equal(t, "Bài giảng.mp4", r.FormValue("fileName"))
		writeJSON(w, http.StatusCreated, `{"success":true,"data":{"key":"`+want+`"}}`)
	})

	key := svc.CreateFile(context.Background(), simpleupload.CreateFileRequest{
		AccessRole:  "TEACHER",
		Folder:      "lessons",
		FileName:    "Bài giảng.mp4",
		ContentType: "video/mp4",
		Body:        strings.NewReader("frames"),
	})
	assert.Equal(t, want, key)
}

func TestCopyFileDerivesTargetFromSource(t *testing.T) {
	source := "private/lessons/0b9e8a0c-7d6f-4d1e-9a4b-1c2d3e4f5a6b-bai-giang.mp4"
	target := "public/shared/123e4567-e89b-12d3-a456-426614174000-bai-giang.mp4"

	svc := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/copy", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"success":true,"data":{"key":"`+target+`"}}`)
	})

	got := svc.CopyFile(context.Background(), simpleupload.CopyFileRequest{
		SourceKey:  source,
		AccessRole: simpleupload.RoleGuest,
		Folder:     "shared",
	})
	assert.Equal(t, target, got)

	assert.Empty(t, svc.CopyFile(context.Background(), simpleupload.CopyFileRequest{}))
}

func TestValidateAndConfirmFile(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/files/public%2Fuploads%2Fx.png/confirm", r.URL.EscapedPath())
		writeJSON(w, http.StatusOK, `{"success":true}`)
	}))
	defer server.Close()

	svc, err := simpleupload.New(
		simpleupload.WithTokenIssuer(newIssuer()),
		simpleupload.WithWorkerBaseURL(server.URL),
	)
	require.NoError(t, err)

	assert.False(t, svc.ValidateAndConfirmFile(context.Background(), "https://other.example/files/public/x.png"))
	assert.False(t, svc.ValidateAndConfirmFile(context.Background(), server.URL+"/notfiles/public/x.png"))
	assert.False(t, svc.ValidateAndConfirmFile(context.Background(), ""))
	assert.Zero(t, atomic.LoadInt32(&calls), "invalid URLs never reach the worker")

	assert.True(t, svc.ValidateAndConfirmFile(context.Background(), server.URL+"/files/public/uploads/x.png"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestValidateAndExtractKey(t *testing.T) {
	svc := newService(t)

	key, err := svc.ValidateAndExtractKey("https://worker.example/files/public/uploads/x.png")
	require.NoError(t, err)
	assert.Equal(t, "public/uploads/x.png", key)

	_, err = svc.ValidateAndExtractKey("https://other.example/files/public/x.png")
	assert.ErrorContains(t, err, workerURL)

	assert.Equal(t, "https://worker.example/files/public/uploads/x.png", svc.FileURL("public/uploads/x.png"))
}

func TestOrphansUseDefaultAge(t *testing.T) {
	svc := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "24", r.URL.Query().Get("maxAge"))
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, `{"success":true,"data":{"orphans":[{"key":"public/a","size":3}],"count":1}}`)
		case http.MethodDelete:
			writeJSON(w, http.StatusOK, `{"success":true,"data":{"deleted":1,"failed":0}}`)
		}
	})

	orphans := svc.ListOrphans(context.Background(), 0)
	require.Len(t, orphans, 1)
	assert.Equal(t, "public/a", orphans[0].Key)

	assert.Equal(t, simpleupload.CleanupResult{Deleted: 1}, svc.CleanupOrphans(context.Background(), -5))
}
