package token

import (
	"errors"
	"fmt"
)

// Action names the worker operation a backend token authorizes.
type Action string

const (
	ActionDelete         Action = "delete"
	ActionBatchDelete    Action = "batch-delete"
	ActionGetInfo        Action = "get-info"
	ActionCreate         Action = "create"
	ActionUpdate         Action = "update"
	ActionCopy           Action = "copy"
	ActionConfirm        Action = "confirm"
	ActionListOrphans    Action = "list-orphans"
	ActionCleanupOrphans Action = "cleanup-orphans"
)

// Claim names shared with the storage worker.
const (
	ClaimAction      = "action"
	ClaimRole        = "role"
	ClaimKey         = "key"
	ClaimKeys        = "keys"
	ClaimFileKey     = "fileKey"
	ClaimContentType = "ContentType"
	ClaimUploadID    = "uploadId"
	ClaimAccessRole  = "accessRole"
	ClaimSourceKey   = "sourceKey"
	ClaimTargetKey   = "targetKey"
	ClaimMaxAge      = "maxAge"
	ClaimIssuedAt    = "iat"
	ClaimExpiresAt   = "exp"

	RoleBackend = "backend"
)

// Claims is a typed claim set for one operation. Fields flattens it into the
// map that gets signed; iat, exp and role are added by the Issuer.
type Claims interface {
	Validate() error
	Fields() map[string]any
}

var errEmptyKey = errors.New("key is required")

// Fields is a free-form claim set.
type Fields map[string]any

func (f Fields) Validate() error { return nil }

func (f Fields) Fields() map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// UploadClaims authorize a single client-side direct upload.
type UploadClaims struct {
	FileKey     string
	ContentType string
	UploadID    string
	AccessRole  string
}

func (c UploadClaims) Validate() error {
	if c.FileKey == "" {
		return fmt.Errorf("%w: fileKey is required", ErrInvalidClaims)
	}
	return nil
}

func (c UploadClaims) Fields() map[string]any {
	return map[string]any{
		ClaimFileKey:     c.FileKey,
		ClaimContentType: c.ContentType,
		ClaimUploadID:    c.UploadID,
		ClaimAccessRole:  c.AccessRole,
	}
}

type DeleteClaims struct{ Key string }

func (c DeleteClaims) Validate() error { return requireKey(c.Key) }

func (c DeleteClaims) Fields() map[string]any {
	return map[string]any{ClaimAction: string(ActionDelete), ClaimKey: c.Key}
}

type BatchDeleteClaims struct{ Keys []string }

func (c BatchDeleteClaims) Validate() error {
	if len(c.Keys) == 0 {
		return fmt.Errorf("%w: keys must not be empty", ErrInvalidClaims)
	}
	for _, k := range c.Keys {
		if err := requireKey(k); err != nil {
			return err
		}
	}
	return nil
}

func (c BatchDeleteClaims) Fields() map[string]any {
	keys := make([]string, len(c.Keys))
	copy(keys, c.Keys)
	return map[string]any{ClaimAction: string(ActionBatchDelete), ClaimKeys: keys}
}

type GetInfoClaims struct{ Key string }

func (c GetInfoClaims) Validate() error { return requireKey(c.Key) }

func (c GetInfoClaims) Fields() map[string]any {
	return map[string]any{ClaimAction: string(ActionGetInfo), ClaimKey: c.Key}
}

type CreateClaims struct {
	Key         string
	ContentType string
	AccessRole  string
}

func (c CreateClaims) Validate() error { return requireKey(c.Key) }

func (c CreateClaims) Fields() map[string]any {
	return map[string]any{
		ClaimAction:      string(ActionCreate),
		ClaimKey:         c.Key,
		ClaimContentType: c.ContentType,
		ClaimAccessRole:  c.AccessRole,
	}
}

type UpdateClaims struct {
	Key         string
	ContentType string
	AccessRole  string
}

func (c UpdateClaims) Validate() error { return requireKey(c.Key) }

func (c UpdateClaims) Fields() map[string]any {
	fields := map[string]any{ClaimAction: string(ActionUpdate), ClaimKey: c.Key}
	if c.ContentType != "" {
		fields[ClaimContentType] = c.ContentType
	}
	if c.AccessRole != "" {
		fields[ClaimAccessRole] = c.AccessRole
	}
	return fields
}

type CopyClaims struct {
	SourceKey string
	TargetKey string
}

func (c CopyClaims) Validate() error {
	if c.SourceKey == "" || c.TargetKey == "" {
		return fmt.Errorf("%w: sourceKey and targetKey are required", ErrInvalidClaims)
	}
	return nil
}

func (c CopyClaims) Fields() map[string]any {
	return map[string]any{
		ClaimAction:    string(ActionCopy),
		ClaimSourceKey: c.SourceKey,
		ClaimTargetKey: c.TargetKey,
	}
}

type ConfirmClaims struct{ Key string }

func (c ConfirmClaims) Validate() error { return requireKey(c.Key) }

func (c ConfirmClaims) Fields() map[string]any {
	return map[string]any{ClaimAction: string(ActionConfirm), ClaimKey: c.Key}
}

// ListOrphansClaims and CleanupOrphansClaims carry the orphan age threshold in hours.
type ListOrphansClaims struct{ MaxAge int }

func (c ListOrphansClaims) Validate() error { return requireMaxAge(c.MaxAge) }

func (c ListOrphansClaims) Fields() map[string]any {
	return map[string]any{ClaimAction: string(ActionListOrphans), ClaimMaxAge: c.MaxAge}
}

type CleanupOrphansClaims struct{ MaxAge int }

func (c CleanupOrphansClaims) Validate() error { return requireMaxAge(c.MaxAge) }

func (c CleanupOrphansClaims) Fields() map[string]any {
	return map[string]any{ClaimAction: string(ActionCleanupOrphans), ClaimMaxAge: c.MaxAge}
}

func requireKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: %v", ErrInvalidClaims, errEmptyKey)
	}
	return nil
}

func requireMaxAge(maxAge int) error {
	if maxAge < 0 {
		return fmt.Errorf("%w: maxAge must not be negative", ErrInvalidClaims)
	}
	return nil
}
