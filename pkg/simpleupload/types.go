package simpleupload

import (
	"io"

	"github.com/tendant/simple-upload/pkg/simpleupload/objectkey"
	"github.com/tendant/simple-upload/pkg/simpleupload/worker"
)

// AccessRole decides whether a key is stored under public/ or private/
type AccessRole = objectkey.AccessRole

const RoleGuest = objectkey.RoleGuest

// Defaults applied to a PresignRequest
const (
	DefaultFolder      = objectkey.DefaultFolder
	DefaultFileName    = "file"
	DefaultContentType = "application/octet-stream"

	// DefaultOrphanMaxAge is used when orphan operations get a non-positive age (hours)
	DefaultOrphanMaxAge = 24
)

type (
	FileInfo      = worker.FileInfo
	OrphanFile    = worker.OrphanFile
	CleanupResult = worker.CleanupResult
	UpdateRequest = worker.UpdateRequest
)

// PresignRequest describes a client-side direct upload
type PresignRequest struct {
	AccessRole  AccessRole `json:"accessRole"`
	Folder      string     `json:"folder"`
	FileName    string     `json:"fileName"`
	ContentType string     `json:"contentType"`
}

// PresignResponse is handed to the client, which uploads to UploadURL itself
type PresignResponse struct {
	UploadURL  string     `json:"uploadUrl"`
	Key        string     `json:"key"`
	UploadID   string     `json:"uploadId"`
	AccessRole AccessRole `json:"accessRole"`
	ExpiresIn  int        `json:"expiresIn"`
}

// CreateFileRequest describes a server-originated upload. The storage key is
// derived from AccessRole, Folder and FileName.
type CreateFileRequest struct {
	AccessRole  AccessRole
	Folder      string
	FileName    string
	ContentType string
	Body        io.Reader
}

// CopyFileRequest copies SourceKey to a freshly derived key
type CopyFileRequest struct {
	SourceKey  string
	AccessRole AccessRole
	Folder     string
}
