package core

import (
	"context"
	"io"
)

type (
	// UploadedFile is an in-memory file received from a multipart request.
	UploadedFile struct {
		Name        string
		ContentType string
		Size        int64
		Content     io.Reader
	}

	// FileStorage is any service that can store uploaded files and serve
	// them back by URL.
	FileStorage interface {
		// Store saves the file under folder and returns its public URL.
		Store(ctx context.Context, file UploadedFile, folder string) (string, error)
		// Delete removes the file behind url. Best-effort: callers treat
		// failures as non-fatal.
		Delete(ctx context.Context, url string) error
	}
)
