package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
)

// articleRow is the relational shape of an article.
type articleRow struct {
	ID          string    `gorm:"primaryKey;size:40"`
	ProviderID  string    `gorm:"size:64;index"`
	Title       string    `gorm:"size:512"`
	Link        string    `gorm:"size:1024;uniqueIndex"`
	Source      string    `gorm:"size:128"`
	Language    string    `gorm:"size:2;index:idx_lang_pub,priority:1"`
	PublishedAt time.Time `gorm:"index:idx_lang_pub,priority:2,sort:desc"`
	Excerpt     string    `gorm:"size:600"`
	ImageURL    string    `gorm:"size:1024"`
	Category    string    `gorm:"size:128"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (articleRow) TableName() string { return "articles" }

func rowFromArticle(a domain.Article) articleRow {
	return articleRow{
		ID:          a.ID,
		ProviderID:  a.ProviderID,
		Title:       toValidUTF8(a.Title),
		Link:        a.Link,
		Source:      a.Source,
		Language:    string(a.Language),
		PublishedAt: a.PublishedAt,
		Excerpt:     truncateRunes(toValidUTF8(a.Excerpt), 600),
		ImageURL:    a.ImageURL,
		Category:    a.Category,
	}
}

func (r articleRow) article() domain.Article {
	return domain.Article{
		ID:          r.ID,
		ProviderID:  r.ProviderID,
		Title:       r.Title,
		Link:        r.Link,
		Source:      r.Source,
		Language:    domain.Language(r.Language),
		PublishedAt: r.PublishedAt,
		Excerpt:     r.Excerpt,
		ImageURL:    r.ImageURL,
		Category:    r.Category,
	}
}

// PostgresStore keeps articles in a Postgres table through gorm.
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgres connects and migrates the articles table.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgresStore(db)
}

// NewPostgresStore wraps an open gorm handle.
func NewPostgresStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&articleRow{}); err != nil {
		return nil, fmt.Errorf("migrate articles: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Upsert inserts a or updates the row with the same link in one statement.
func (s *PostgresStore) Upsert(ctx context.Context, a domain.Article) (domain.Article, error) {
	if err := validateArticle(a); err != nil {
		return domain.Article{}, err
	}
	row := rowFromArticle(merge(domain.Article{}, a))

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "link"}},
		DoUpdates: clause.Assignments(map[string]any{
			"provider_id":  row.ProviderID,
			"title":        row.Title,
			"source":       row.Source,
			"language":     row.Language,
			"published_at": row.PublishedAt,
			"excerpt":      row.Excerpt,
			"category":     row.Category,
			"image_url":    gorm.Expr("COALESCE(NULLIF(EXCLUDED.image_url, ''), articles.image_url)"),
			"updated_at":   gorm.Expr("NOW()"),
		}),
	}).Create(&row).Error
	if err != nil {
		return domain.Article{}, fmt.Errorf("upsert %s: %w", a.Link, err)
	}

	var stored articleRow
	if err := s.db.WithContext(ctx).Where("link = ?", a.Link).First(&stored).Error; err != nil {
		return domain.Article{}, fmt.Errorf("reload %s: %w", a.Link, err)
	}
	return stored.article(), nil
}

// Query returns the newest articles in lang.
func (s *PostgresStore) Query(ctx context.Context, lang domain.Language, limit int) ([]domain.Article, error) {
	var rows []articleRow
	err := s.db.WithContext(ctx).
		Where("language = ?", string(lang)).
		Order("published_at DESC").
		Limit(normalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}

	out := make([]domain.Article, len(rows))
	for i, r := range rows {
		out[i] = r.article()
	}
	return out, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// toValidUTF8 replaces invalid byte sequences that Postgres would reject.
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
