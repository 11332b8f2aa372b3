package upstream

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const tokenBucket = "pairing_token"

var ErrTokenNotFound = errors.New("token not found")

// TokenStore keeps the pairing token each controller hands out, so a restart
// does not require approving the extension again.
type TokenStore interface {
	Token(ctx context.Context, coreID string) (string, error)
	SaveToken(ctx context.Context, coreID, token string) error
}

// BoltTokenStore is a TokenStore in a BoltDB file.
type BoltTokenStore struct {
	db *bbolt.DB
}

// OpenTokenStore opens or creates the store at path.
func OpenTokenStore(path string) (*BoltTokenStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("token store path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}

	store := &BoltTokenStore{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *BoltTokenStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltTokenStore) Token(ctx context.Context, coreID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(coreID) == "" {
		return "", fmt.Errorf("core id is required")
	}

	var token string
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(tokenBucket))
		if bucket == nil {
			return fmt.Errorf("token bucket is missing")
		}
		v := bucket.Get([]byte(coreID))
		if v == nil {
			return ErrTokenNotFound
		}
		token = string(v)
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *BoltTokenStore) SaveToken(ctx context.Context, coreID, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(coreID) == "" {
		return fmt.Errorf("core id is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(tokenBucket))
		if bucket == nil {
			return fmt.Errorf("token bucket is missing")
		}
		return bucket.Put([]byte(coreID), []byte(token))
	})
}

func (s *BoltTokenStore) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(tokenBucket)); err != nil {
			return fmt.Errorf("create token bucket: %w", err)
		}
		return nil
	})
}
