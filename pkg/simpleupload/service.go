package simpleupload

import "context"

// Service is the main interface of the upload authorization library
type Service interface {
	// Client uploads
	PresignUpload(ctx context.Context, req PresignRequest) (*PresignResponse, error)

	// Backend operations. These never return errors; failures map to
	// false, 0, nil, "" or a zero CleanupResult.
	DeleteFile(ctx context.Context, key string) bool
	BatchDeleteFiles(ctx context.Context, keys []string) int
	GetFileInfo(ctx context.Context, key string) *FileInfo
	CreateFile(ctx context.Context, req CreateFileRequest) string
	UpdateFile(ctx context.Context, key string, req UpdateRequest) bool
	CopyFile(ctx context.Context, req CopyFileRequest) string
	ConfirmFile(ctx context.Context, key string) bool
	ListOrphans(ctx context.Context, maxAge int) []OrphanFile
	CleanupOrphans(ctx context.Context, maxAge int) CleanupResult

	// Callback URLs
	ValidateAndExtractKey(fileURL string) (string, error)
	ValidateAndConfirmFile(ctx context.Context, fileURL string) bool
	FileURL(key string) string

	// Keys
	GenerateFileKey(role AccessRole, folder, fileName string) string
}
