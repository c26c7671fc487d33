package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter writes objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver exports old records from the primary store to blob storage.
// Deletion of archived rows is a separate, explicit operator step.
type Archiver interface {
	ArchiveTrades(ctx context.Context, before time.Time) (int64, error)
}
