// Package appconfig persists the active configuration document with
// revision-guarded writes for optimistic concurrency.
package appconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/atlas-cloud/ragdex/internal/db"
	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/domain/appconfig"
)

// store is the consumer interface for the config document (ISP).
type store interface {
	GetWithRev(ctx context.Context, key string) ([]byte, int64, error)
	CompareAndSet(ctx context.Context, key string, value []byte, expectedRev int64) (int64, error)
}

// Repo implements persisted configuration storage.
type Repo struct {
	store store
}

// New creates a configuration document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Get returns the stored configuration and its etag.
// Returns domain.ErrNotFound when no document has been saved yet.
func (r *Repo) Get(ctx context.Context) (*appconfig.Configuration, string, error) {
	data, rev, err := r.store.GetWithRev(ctx, domain.ActiveConfigKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, "", fmt.Errorf("active configuration: %w", domain.ErrNotFound)
		}
		return nil, "", fmt.Errorf("get active configuration: %w", err)
	}
	if rev == 0 || len(data) == 0 {
		return nil, "", fmt.Errorf("active configuration: %w", domain.ErrNotFound)
	}

	var cfg appconfig.Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, "", fmt.Errorf("unmarshal active configuration: %w", err)
	}

	return &cfg, etagFromRev(rev), nil
}

// Save writes the configuration when the caller's etag matches the stored
// revision. An empty etag means "create only". Returns the new etag, or
// domain.ErrEtagConflict on a concurrent update.
func (r *Repo) Save(ctx context.Context, cfg *appconfig.Configuration, etag string) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal configuration: %w", err)
	}

	expectedRev, err := revFromEtag(etag)
	if err != nil {
		return "", err
	}

	newRev, err := r.store.CompareAndSet(ctx, domain.ActiveConfigKey, data, expectedRev)
	if err != nil {
		if errors.Is(err, db.ErrRevisionMismatch) {
			return "", fmt.Errorf("configuration changed since etag %q: %w", etag, domain.ErrEtagConflict)
		}
		return "", fmt.Errorf("save configuration: %w", err)
	}

	return etagFromRev(newRev), nil
}

func etagFromRev(rev int64) string {
	return strconv.FormatInt(rev, 10)
}

func revFromEtag(etag string) (int64, error) {
	if etag == "" {
		return 0, nil
	}
	rev, err := strconv.ParseInt(etag, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid etag %q: %w", etag, domain.ErrBadInput)
	}
	return rev, nil
}
