package storageworker

import "time"

// FileStatus is the lifecycle state of an uploaded file
type FileStatus string

const (
	FileStatusUploaded  FileStatus = "uploaded"
	FileStatusConfirmed FileStatus = "confirmed"
)

// FileRecord is the worker's bookkeeping for one stored object
type FileRecord struct {
	Key         string     `json:"key"`
	FileName    string     `json:"fileName"`
	ContentType string     `json:"contentType"`
	AccessRole  string     `json:"accessRole"`
	Size        int64      `json:"size"`
	UploadID    string     `json:"uploadId,omitempty"`
	Status      FileStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
}

// Confirmed reports whether a backend has confirmed the upload
func (f *FileRecord) Confirmed() bool {
	return f.Status == FileStatusConfirmed
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
}
