package simpleupload

import "errors"

var (
	// ErrTokenIssuerRequired is returned by New without WithTokenIssuer
	ErrTokenIssuerRequired = errors.New("token issuer is required")

	// ErrWorkerBaseURLRequired is returned by New without a worker base URL
	ErrWorkerBaseURLRequired = errors.New("worker base URL is required")
)
