package service

import (
	"context"
	"io"
	"time"

	"github.com/repairdesk/repair-service/internal/cache"
	"github.com/repairdesk/repair-service/internal/mail"
)

// LoginLimiter tracks failed logins per username.
type LoginLimiter interface {
	Get(ctx context.Context, username string) (cache.LockoutState, error)
	RecordFailure(ctx context.Context, username string, now time.Time, threshold int, window time.Duration) (cache.LockoutState, error)
	Clear(ctx context.Context, username string) error
}

// LookupCache caches small string lists.
type LookupCache interface {
	GetStrings(ctx context.Context, key string) ([]string, bool, error)
	SetStrings(ctx context.Context, key string, values []string) error
	Delete(ctx context.Context, keys ...string) error
}

// FileStore persists attachment blobs.
type FileStore interface {
	Save(original string, r io.Reader) (string, int64, error)
	Open(stored string) (io.ReadCloser, error)
	Delete(stored string) error
}

// MailQueue accepts outgoing mail without blocking the caller.
type MailQueue interface {
	Enqueue(msg mail.Message) error
}
