package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
)

var articlesBucket = []byte("articles")

// BoltStore keeps articles in an embedded bbolt file, one JSON value per link.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database file at path.
func OpenBolt(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt path is empty")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(articlesBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create articles bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Upsert stores a under its link.
func (s *BoltStore) Upsert(ctx context.Context, a domain.Article) (domain.Article, error) {
	if err := ctx.Err(); err != nil {
		return domain.Article{}, err
	}
	if err := validateArticle(a); err != nil {
		return domain.Article{}, err
	}

	var stored domain.Article
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(articlesBucket)
		key := []byte(a.Link)

		stored = a
		if raw := b.Get(key); raw != nil {
			var existing domain.Article
			if err := json.Unmarshal(raw, &existing); err != nil {
				return fmt.Errorf("decode stored article: %w", err)
			}
			stored = merge(existing, a)
		} else {
			stored = merge(domain.Article{}, a)
		}

		val, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("encode article: %w", err)
		}
		return b.Put(key, val)
	})
	if err != nil {
		return domain.Article{}, fmt.Errorf("upsert %s: %w", a.Link, err)
	}
	return stored, nil
}

// Query scans the bucket for articles in lang.
func (s *BoltStore) Query(ctx context.Context, lang domain.Language, limit int) ([]domain.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	var out []domain.Article
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(articlesBucket).ForEach(func(_, v []byte) error {
			var a domain.Article
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("decode stored article: %w", err)
			}
			if a.Language == lang {
				out = append(out, a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close releases the database file.
func (s *BoltStore) Close() error { return s.db.Close() }
