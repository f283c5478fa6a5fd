package worker

import (
	"io"
	"time"
)

// FileInfo is the worker's view of a stored object
type FileInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType"`
	LastModified time.Time `json:"lastModified"`
	AccessRole   string    `json:"accessRole"`
	Exists       bool      `json:"exists"`
}

// OrphanFile is an uploaded object that was never confirmed within the age threshold
type OrphanFile struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	Uploaded    time.Time `json:"uploaded"`
	OrphanSince time.Time `json:"orphanSince"`
}

// CleanupResult counts the outcome of an orphan cleanup run
type CleanupResult struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// CreateRequest describes a server-originated upload. Key is the final storage key.
type CreateRequest struct {
	Key         string
	FileName    string
	ContentType string
	AccessRole  string
	Body        io.Reader
}

// UpdateRequest replaces content and/or metadata of an existing object.
// When Body is nil only metadata is sent.
type UpdateRequest struct {
	FileName    string
	ContentType string
	AccessRole  string
	Body        io.Reader
}

// Envelope is the JSON body every worker endpoint responds with
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type keyData struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

type batchDeleteData struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

type orphansData struct {
	Orphans []OrphanFile `json:"orphans"`
	Count   int          `json:"count"`
}

type copyBody struct {
	SourceKey string `json:"sourceKey"`
	TargetKey string `json:"targetKey"`
}

type batchDeleteBody struct {
	Keys []string `json:"keys"`
}
