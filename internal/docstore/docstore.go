// Package docstore keeps CSDL documents in a SQL database keyed by their reference URI.
//
// A Store serves as a reference loader: documents put into it once are found again when
// another document references their URI, without fetching them from the network.
package docstore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/nlstn/go-csdl/internal/semantics"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported dialects.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

var (
	// ErrNotFound is returned when no document is stored under a URI.
	ErrNotFound = errors.New("document not found")
	// ErrUnknownDialect is returned by Open for dialects other than sqlite and postgres.
	ErrUnknownDialect = errors.New("unknown database dialect")
	// ErrEmptyURI is returned when a document is stored without a URI.
	ErrEmptyURI = errors.New("document URI must not be empty")
)

// Document is one stored CSDL document.
type Document struct {
	URI       string `gorm:"primaryKey;size:2048"`
	Format    string `gorm:"size:8"`
	Hash      string `gorm:"size:16;index"`
	Size      int
	Content   []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the table name stable regardless of gorm naming settings.
func (Document) TableName() string { return "csdl_documents" }

// Store is a gorm backed document store. It is safe for concurrent use.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to a database and prepares the documents table. For sqlite the DSN is a
// file name or ":memory:"; for postgres a connection string.
func Open(dialect, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch dialect {
	case DialectSQLite:
		dialector = sqlite.Open(dsn)
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite && strings.Contains(dsn, ":memory:") {
		// Every connection to an in-memory database sees its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewFromDB(db)
}

// OpenSQL wraps an existing database/sql connection of the given dialect.
func OpenSQL(dialect string, conn *sql.DB) (*Store, error) {
	var dialector gorm.Dialector
	switch dialect {
	case DialectSQLite:
		dialector = sqlite.New(sqlite.Config{Conn: conn})
	case DialectPostgres:
		dialector = postgres.New(postgres.Config{Conn: conn})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	return NewFromDB(db)
}

// NewFromDB uses an open gorm database and migrates the documents table.
func NewFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("database must not be nil")
	}
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate documents table: %w", err)
	}
	return &Store{db: db, logger: slog.Default()}, nil
}

// SetLogger sets the logger. If logger is nil, slog.Default() is used.
func (s *Store) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	s.logger = l
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Hash returns the content hash stored with a document.
func Hash(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

// Put stores content under uri and reports whether the stored document changed. Storing
// identical content again leaves the row untouched.
func (s *Store) Put(ctx context.Context, uri string, content []byte) (*Document, bool, error) {
	if uri == "" {
		return nil, false, ErrEmptyURI
	}
	hash := Hash(content)
	var changed bool
	var doc Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("uri = ?", uri).First(&doc).Error
		exists := err == nil
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			doc = Document{URI: uri}
		case err != nil:
			return err
		case doc.Hash == hash:
			return nil
		}
		doc.Format = detectFormat(content)
		doc.Hash = hash
		doc.Size = len(content)
		doc.Content = content
		changed = true
		if exists {
			return tx.Save(&doc).Error
		}
		return tx.Create(&doc).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to store document %s: %w", uri, err)
	}
	s.logger.Debug("Stored CSDL document", "uri", uri, "hash", hash, "changed", changed)
	return &doc, changed, nil
}

// Get returns the document stored under uri.
func (s *Store) Get(ctx context.Context, uri string) (*Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).Where("uri = ?", uri).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", uri, err)
	}
	return &doc, nil
}

// List returns all documents ordered by URI, without their content.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := s.db.WithContext(ctx).
		Select("uri", "format", "hash", "size", "created_at", "updated_at").
		Order("uri").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Delete removes the document stored under uri.
func (s *Store) Delete(ctx context.Context, uri string) error {
	res := s.db.WithContext(ctx).Where("uri = ?", uri).Delete(&Document{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete document %s: %w", uri, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return nil
}

// LoadReference returns the stored content for uri. Unknown URIs are skipped so that the
// reference stays unloaded instead of failing the read.
func (s *Store) LoadReference(ctx context.Context, uri string) ([]byte, error) {
	doc, err := s.Get(ctx, uri)
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug("Reference not in store", "uri", uri)
		return nil, semantics.ErrSkipReference
	}
	if err != nil {
		return nil, err
	}
	return doc.Content, nil
}

func detectFormat(content []byte) string {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf")), " \t\r\n")
	switch {
	case bytes.HasPrefix(trimmed, []byte("<")):
		return "xml"
	case bytes.HasPrefix(trimmed, []byte("{")):
		return "json"
	}
	return ""
}
