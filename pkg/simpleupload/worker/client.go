// Package worker talks to the storage worker on behalf of backend services.
//
// Client methods return explicit errors. Safe wraps a Client and turns every
// failure into the operation's documented default value, so request handlers
// never fail because the worker is flaky.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/simple-upload/pkg/simpleupload/token"
)

const (
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// TokenSource mints backend tokens. *token.Issuer satisfies it.
type TokenSource interface {
	IssueBackendToken(claims token.Claims, ttl time.Duration) (string, error)
}

// API is the set of privileged worker operations
type API interface {
	Delete(ctx context.Context, key string) error
	BatchDelete(ctx context.Context, keys []string) (int, error)
	GetInfo(ctx context.Context, key string) (*FileInfo, error)
	Create(ctx context.Context, req CreateRequest) (string, error)
	Update(ctx context.Context, key string, req UpdateRequest) error
	Copy(ctx context.Context, sourceKey, targetKey string) (string, error)
	Confirm(ctx context.Context, key string) error
	ListOrphans(ctx context.Context, maxAge int) ([]OrphanFile, error)
	CleanupOrphans(ctx context.Context, maxAge int) (CleanupResult, error)
}

// Client performs one authenticated HTTP call per operation; it never retries.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// ClientOption is a functional option for configuring a Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. The client is copied; its
// Timeout is replaced by the one set with WithTimeout.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout bounds every worker call (default 30s). Non-positive values
// keep the default.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a worker client for baseURL
func NewClient(baseURL string, tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	hc := *c.httpClient
	hc.Timeout = c.timeout
	c.httpClient = &hc

	return c
}

var _ API = (*Client)(nil)

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.do(ctx, call{
		op:     "delete",
		method: http.MethodDelete,
		path:   "/files/" + escapeKey(key),
		claims: token.DeleteClaims{Key: key},
	}, nil)
}

func (c *Client) BatchDelete(ctx context.Context, keys []string) (int, error) {
	body, err := json.Marshal(batchDeleteBody{Keys: keys})
	if err != nil {
		return 0, err
	}

	var data batchDeleteData
	err = c.do(ctx, call{
		op:          "batch-delete",
		method:      http.MethodPost,
		path:        "/files/batch-delete",
		claims:      token.BatchDeleteClaims{Keys: keys},
		body:        bytes.NewReader(body),
		contentType: "application/json",
	}, &data)
	if err != nil {
		return 0, err
	}
	return data.Deleted, nil
}

func (c *Client) GetInfo(ctx context.Context, key string) (*FileInfo, error) {
	var info FileInfo
	err := c.do(ctx, call{
		op:     "get-info",
		method: http.MethodGet,
		path:   "/files/info/" + escapeKey(key),
		claims: token.GetInfoClaims{Key: key},
	}, &info)
	if err != nil {
		return nil, err
	}
	if !info.Exists {
		return nil, ErrNotFound
	}
	return &info, nil
}

func (c *Client) Create(ctx context.Context, req CreateRequest) (string, error) {
	fields := map[string]string{
		"key":         req.Key,
		"fileName":    req.FileName,
		"contentType": req.ContentType,
		"accessRole":  req.AccessRole,
	}
	body, contentType := multipartBody(fields, req.FileName, req.ContentType, req.Body)

	var data keyData
	err := c.do(ctx, call{
		op:          "create",
		method:      http.MethodPost,
		path:        "/files",
		claims:      token.CreateClaims{Key: req.Key, ContentType: req.ContentType, AccessRole: req.AccessRole},
		body:        body,
		contentType: contentType,
	}, &data)
	if err != nil {
		return "", err
	}
	if data.Key == "" {
		return "", fmt.Errorf("%w: create returned no key", ErrUnexpectedResponse)
	}
	return data.Key, nil
}

func (c *Client) Update(ctx context.Context, key string, req UpdateRequest) error {
	fields := map[string]string{}
	if req.ContentType != "" {
		fields["contentType"] = req.ContentType
	}
	if req.AccessRole != "" {
		fields["accessRole"] = req.AccessRole
	}

	var body io.Reader
	var contentType string
	if req.Body != nil {
		body, contentType = multipartBody(fields, req.FileName, req.ContentType, req.Body)
	} else {
		form := url.Values{}
		for k, v := range fields {
			form.Set(k, v)
		}
		body, contentType = strings.NewReader(form.Encode()), "application/x-www-form-urlencoded"
	}

	return c.do(ctx, call{
		op:          "update",
		method:      http.MethodPut,
		path:        "/files/" + escapeKey(key),
		claims:      token.UpdateClaims{Key: key, ContentType: req.ContentType, AccessRole: req.AccessRole},
		body:        body,
		contentType: contentType,
	}, nil)
}

func (c *Client) Copy(ctx context.Context, sourceKey, targetKey string) (string, error) {
	body, err := json.Marshal(copyBody{SourceKey: sourceKey, TargetKey: targetKey})
	if err != nil {
		return "", err
	}

	var data keyData
	err = c.do(ctx, call{
		op:          "copy",
		method:      http.MethodPost,
		path:        "/files/copy",
		claims:      token.CopyClaims{SourceKey: sourceKey, TargetKey: targetKey},
		body:        bytes.NewReader(body),
		contentType: "application/json",
	}, &data)
	if err != nil {
		return "", err
	}
	if data.Key == "" {
		return targetKey, nil
	}
	return data.Key, nil
}

// Confirm marks an uploaded object as referenced. The key travels as a single
// escaped path segment.
func (c *Client) Confirm(ctx context.Context, key string) error {
	return c.do(ctx, call{
		op:     "confirm",
		method: http.MethodPost,
		path:   "/files/" + url.PathEscape(key) + "/confirm",
		claims: token.ConfirmClaims{Key: key},
	}, nil)
}

func (c *Client) ListOrphans(ctx context.Context, maxAge int) ([]OrphanFile, error) {
	var data orphansData
	err := c.do(ctx, call{
		op:     "list-orphans",
		method: http.MethodGet,
		path:   "/files/orphans?maxAge=" + strconv.Itoa(maxAge),
		claims: token.ListOrphansClaims{MaxAge: maxAge},
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.Orphans == nil {
		return []OrphanFile{}, nil
	}
	return data.Orphans, nil
}

func (c *Client) CleanupOrphans(ctx context.Context, maxAge int) (CleanupResult, error) {
	var data CleanupResult
	err := c.do(ctx, call{
		op:     "cleanup-orphans",
		method: http.MethodDelete,
		path:   "/files/cleanup-orphans?maxAge=" + strconv.Itoa(maxAge),
		claims: token.CleanupOrphansClaims{MaxAge: maxAge},
	}, &data)
	if err != nil {
		return CleanupResult{}, err
	}
	return data, nil
}

type call struct {
	op          string
	method      string
	path        string
	claims      token.Claims
	body        io.Reader
	contentType string
}

type rawEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	tok, err := c.tokens.IssueBackendToken(cl.claims, 0)
	if err != nil {
		closeBody(cl.body)
		return fmt.Errorf("worker: %s: issue token: %w", cl.op, err)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, cl.body)
	if err != nil {
		closeBody(cl.body)
		return fmt.Errorf("worker: %s: build request: %w", cl.op, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("worker: %s: %w", cl.op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("worker: %s: read response: %w", cl.op, err)
	}

	c.logger.DebugContext(ctx, "storage worker call",
		"op", cl.op, "status", resp.StatusCode, "duration", time.Since(start))

	var env rawEnvelope
	decodeErr := json.Unmarshal(payload, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(payload))
		}
		return &StatusError{Op: cl.op, StatusCode: resp.StatusCode, Message: truncate(msg, 200)}
	}

	if out == nil {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnexpectedResponse, cl.op, decodeErr)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnexpectedResponse, cl.op, err)
	}
	return nil
}

// closeBody releases a streaming body that will never be sent
func closeBody(body io.Reader) {
	if closer, ok := body.(io.Closer); ok {
		closer.Close()
	}
}

// escapeKey escapes each key segment but keeps the slashes
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// multipartBody streams fields and an optional file part through a pipe
func multipartBody(fields map[string]string, fileName, contentType string, file io.Reader) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeMultipart(mw, fields, fileName, contentType, file)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}

func writeMultipart(mw *multipart.Writer, fields map[string]string, fileName, contentType string, file io.Reader) error {
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if file == nil {
		return nil
	}
	if fileName == "" {
		fileName = "file"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
