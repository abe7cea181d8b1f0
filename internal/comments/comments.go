// Package comments looks up documentation written for declarations by an
// external pipeline. Absence of a comment is not an error.
package comments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/errors"
)

// Kind is the kind of declaration a comment documents
type Kind string

const (
	KindEnum   Kind = "enum"
	KindStruct Kind = "struct"
	KindMethod Kind = "method"
)

// Provider returns the comment for a declaration. A missing comment is
// ("", false, nil).
type Provider interface {
	Lookup(ctx context.Context, kind Kind, fqn string) (string, bool, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context, kind Kind, fqn string) (string, bool, error)

// Lookup calls f
func (f ProviderFunc) Lookup(ctx context.Context, kind Kind, fqn string) (string, bool, error) {
	return f(ctx, kind, fqn)
}

// Noop never has a comment
type Noop struct{}

// Lookup always reports absence
func (Noop) Lookup(context.Context, Kind, string) (string, bool, error) {
	return "", false, nil
}

// Source is a comment store keyed by kind and FQN
type Source interface {
	GetComment(ctx context.Context, kind, fqn string) (string, bool, error)
}

// StoreProvider reads comments from a Source (the repository)
type StoreProvider struct {
	source Source
}

// NewStoreProvider creates a provider backed by source
func NewStoreProvider(source Source) *StoreProvider {
	return &StoreProvider{source: source}
}

// Lookup reads the comment from the store
func (p *StoreProvider) Lookup(ctx context.Context, kind Kind, fqn string) (string, bool, error) {
	text, ok, err := p.source.GetComment(ctx, string(kind), fqn)
	if err != nil {
		return "", false, errors.ExternalError(err, fmt.Sprintf("comment lookup %s %s", kind, fqn))
	}
	return text, ok, nil
}

const bucketName = "comments"

type cachedComment struct {
	Text  string `json:"text"`
	Found bool   `json:"found"`
}

// CachedProvider caches comments found by another provider in a bbolt file.
// Absences and errors are not cached, so a comment written later is seen on
// the next lookup. Rewritten comments need Invalidate.
type CachedProvider struct {
	db    *bolt.DB
	next  Provider
	owned bool
}

// NewCachedProvider caches next in an already open database
func NewCachedProvider(db *bolt.DB, next Provider) *CachedProvider {
	return &CachedProvider{db: db, next: next}
}

// OpenCache opens (or creates) the cache file at path in front of next
func OpenCache(path string, next Provider) (*CachedProvider, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open comment cache %s: %w", path, err)
	}
	return &CachedProvider{db: db, next: next, owned: true}, nil
}

// Lookup answers from the cache, falling back to the wrapped provider
func (c *CachedProvider) Lookup(ctx context.Context, kind Kind, fqn string) (string, bool, error) {
	key := cacheKey(kind, fqn)
	if cached, err := c.get(key); err == nil {
		return cached.Text, cached.Found, nil
	}

	text, found, err := c.next.Lookup(ctx, kind, fqn)
	if err != nil || !found {
		return "", false, err
	}
	if err := c.put(key, cachedComment{Text: text, Found: found}); err != nil {
		return "", false, fmt.Errorf("failed to cache comment for %s: %w", fqn, err)
	}
	return text, found, nil
}

// Invalidate drops the cached entry for a declaration
func (c *CachedProvider) Invalidate(kind Kind, fqn string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return nil
		}
		return bucket.Delete(cacheKey(kind, fqn))
	})
}

// Close closes the cache file when OpenCache opened it
func (c *CachedProvider) Close() error {
	if !c.owned {
		return nil
	}
	return c.db.Close()
}

func cacheKey(kind Kind, fqn string) []byte {
	return []byte(string(kind) + "\x00" + fqn)
}

func (c *CachedProvider) get(key []byte) (cachedComment, error) {
	var result cachedComment
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return bolt.ErrBucketNotFound
		}
		data := bucket.Get(key)
		if data == nil {
			return bolt.ErrBucketNotFound
		}
		return json.Unmarshal(data, &result)
	})
	return result, err
}

func (c *CachedProvider) put(key []byte, value cachedComment) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
}
