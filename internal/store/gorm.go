package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// DocumentModel is the gorm row for a document record
type DocumentModel struct {
	Path           string `gorm:"primaryKey"`
	Title          string
	Author         *string
	LastPosition   int
	TotalLength    int
	CurrentChapter *string
	Progress       float64
	LastReadTime   time.Time `gorm:"index"`
	DocumentType   string
}

// BookmarkModel is the gorm row for a bookmark
type BookmarkModel struct {
	ID            string `gorm:"primaryKey"`
	DocumentPath  string `gorm:"index:idx_bookmark_document"`
	DocumentTitle string
	Position      int
	ChapterTitle  *string
	Note          *string
	Timestamp     time.Time `gorm:"index:idx_bookmark_document"`
	IsAuto        bool
}

// GormStore keeps the reading state in Postgres through gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: newGormLogger(slog.Default().Handler())})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return newGormStore(db)
}

// newGormLogger routes gorm's slow query and error lines to handler at warn
func newGormLogger(handler slog.Handler) gormlogger.Interface {
	return gormlogger.New(
		slog.NewLogLogger(handler, slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func newGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&DocumentModel{}, &BookmarkModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) UpsertDocument(ctx context.Context, rec types.DocumentRecord) error {
	model := documentToModel(rec)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		UpdateAll: true,
	}).Create(&model).Error
}

func (s *GormStore) GetDocument(ctx context.Context, path string) (*types.DocumentRecord, error) {
	var model DocumentModel
	if err := s.db.WithContext(ctx).First(&model, "path = ?", path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("document %s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	rec := documentFromModel(model)
	return &rec, nil
}

func (s *GormStore) UpdateProgress(ctx context.Context, path string, position int, progress float64) error {
	res := s.db.WithContext(ctx).Model(&DocumentModel{}).Where("path = ?", path).
		Updates(map[string]any{"last_position": position, "progress": progress})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("document %s: %w", path, ErrNotFound)
	}
	return nil
}

func (s *GormStore) ListDocuments(ctx context.Context) ([]types.DocumentRecord, error) {
	var models []DocumentModel
	if err := s.db.WithContext(ctx).Order("last_read_time desc").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.DocumentRecord, 0, len(models))
	for _, m := range models {
		out = append(out, documentFromModel(m))
	}
	return out, nil
}

func (s *GormStore) DeleteDocument(ctx context.Context, path string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_path = ?", path).Delete(&BookmarkModel{}).Error; err != nil {
			return err
		}
		return tx.Where("path = ?", path).Delete(&DocumentModel{}).Error
	})
}

func (s *GormStore) InsertBookmark(ctx context.Context, b *types.Bookmark) error {
	if err := prepareBookmark(b); err != nil {
		return err
	}
	return upsertBookmarkModel(s.db.WithContext(ctx), b)
}

func (s *GormStore) ReplaceAutoBookmark(ctx context.Context, b *types.Bookmark) error {
	b.IsAuto = true
	if err := prepareBookmark(b); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_path = ? AND is_auto = ?", b.DocumentPath, true).
			Delete(&BookmarkModel{}).Error; err != nil {
			return err
		}
		return upsertBookmarkModel(tx, b)
	})
}

func (s *GormStore) DeleteAutoBookmark(ctx context.Context, path string) error {
	return s.db.WithContext(ctx).Where("document_path = ? AND is_auto = ?", path, true).
		Delete(&BookmarkModel{}).Error
}

func (s *GormStore) GetAutoBookmark(ctx context.Context, path string) (*types.Bookmark, error) {
	var model BookmarkModel
	err := s.db.WithContext(ctx).Where("document_path = ? AND is_auto = ?", path, true).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("auto bookmark for %s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	b := bookmarkFromModel(model)
	return &b, nil
}

func (s *GormStore) ListBookmarks(ctx context.Context, path string) ([]types.Bookmark, error) {
	return s.findBookmarks(s.db.WithContext(ctx).Where("document_path = ?", path))
}

func (s *GormStore) ListAllBookmarks(ctx context.Context) ([]types.Bookmark, error) {
	return s.findBookmarks(s.db.WithContext(ctx))
}

func (s *GormStore) UpdateBookmark(ctx context.Context, b types.Bookmark) error {
	model := bookmarkToModel(b)
	res := s.db.WithContext(ctx).Model(&BookmarkModel{}).Where("id = ?", b.ID).Select("*").Updates(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("bookmark %s: %w", b.ID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) DeleteBookmark(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&BookmarkModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("bookmark %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) findBookmarks(q *gorm.DB) ([]types.Bookmark, error) {
	var models []BookmarkModel
	if err := q.Order("timestamp desc").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.Bookmark, 0, len(models))
	for _, m := range models {
		out = append(out, bookmarkFromModel(m))
	}
	return out, nil
}

func upsertBookmarkModel(db *gorm.DB, b *types.Bookmark) error {
	model := bookmarkToModel(*b)
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

func documentToModel(rec types.DocumentRecord) DocumentModel {
	return DocumentModel{
		Path:           rec.Path,
		Title:          rec.Title,
		Author:         rec.Author,
		LastPosition:   rec.LastPosition,
		TotalLength:    rec.TotalLength,
		CurrentChapter: rec.CurrentChapter,
		Progress:       rec.Progress,
		LastReadTime:   rec.LastReadTime,
		DocumentType:   string(rec.Type),
	}
}

func documentFromModel(m DocumentModel) types.DocumentRecord {
	return types.DocumentRecord{
		Path:           m.Path,
		Title:          m.Title,
		Author:         m.Author,
		LastPosition:   m.LastPosition,
		TotalLength:    m.TotalLength,
		CurrentChapter: m.CurrentChapter,
		Progress:       m.Progress,
		LastReadTime:   m.LastReadTime.UTC(),
		Type:           types.DocumentType(m.DocumentType),
	}
}

func bookmarkToModel(b types.Bookmark) BookmarkModel {
	return BookmarkModel{
		ID:            b.ID,
		DocumentPath:  b.DocumentPath,
		DocumentTitle: b.DocumentTitle,
		Position:      b.Position,
		ChapterTitle:  b.ChapterTitle,
		Note:          b.Note,
		Timestamp:     b.Timestamp,
		IsAuto:        b.IsAuto,
	}
}

func bookmarkFromModel(m BookmarkModel) types.Bookmark {
	return types.Bookmark{
		ID:            m.ID,
		DocumentPath:  m.DocumentPath,
		DocumentTitle: m.DocumentTitle,
		Position:      m.Position,
		ChapterTitle:  m.ChapterTitle,
		Note:          m.Note,
		Timestamp:     m.Timestamp.UTC(),
		IsAuto:        m.IsAuto,
	}
}
