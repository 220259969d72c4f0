// Package sqlstore keeps feedback records in MySQL or PostgreSQL through gorm.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spigell/interview-feedback/internal/feedback"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// mutableColumns are rewritten by every upsert; id, owner and created_at never change.
var mutableColumns = []string{
	"total_score",
	"category_scores",
	"strengths",
	"areas_for_improvement",
	"final_assessment",
	"updated_at",
}

type Config struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type feedbackRow struct {
	ID                  string                                      `gorm:"primaryKey;size:64"`
	InterviewID         string                                      `gorm:"size:191;not null;uniqueIndex:idx_feedback_owner"`
	UserID              string                                      `gorm:"size:191;not null;uniqueIndex:idx_feedback_owner"`
	TotalScore          int                                         `gorm:"not null"`
	CategoryScores      datatypes.JSONSlice[feedback.CategoryScore] `gorm:"not null"`
	Strengths           datatypes.JSONSlice[string]
	AreasForImprovement datatypes.JSONSlice[string]
	FinalAssessment     string    `gorm:"type:text;not null"`
	CreatedAt           time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime:false"`
}

func (feedbackRow) TableName() string { return "feedback" }

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to the database and optionally migrates the feedback table.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialector, err := dialectorFor(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", dialector.Name(), err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&feedbackRow{}); err != nil {
			return nil, fmt.Errorf("migrating feedback table: %w", err)
		}
		logger.Info("feedback table migrated", zap.String("driver", dialector.Name()))
	}

	return New(db, logger), nil
}

func New(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database dsn is not configured")
	}

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverPostgres, "postgresql", "pg":
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported sql driver: %q", driver)
	}
}

func (s *Store) Get(ctx context.Context, id string) (*feedback.Record, error) {
	var row feedbackRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return fromRow(&row), nil
}

func (s *Store) FindByOwner(ctx context.Context, interviewID, userID string) (*feedback.Record, error) {
	var row feedbackRow
	err := s.db.WithContext(ctx).
		Where("interview_id = ? AND user_id = ?", interviewID, userID).
		Take(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return fromRow(&row), nil
}

// Create inserts the record or, when the owner already has one, overwrites its
// mutable columns. The stored row is read back so the caller gets the winning id.
func (s *Store) Create(ctx context.Context, rec *feedback.Record) (*feedback.Record, error) {
	row := toRow(rec)

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "interview_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(mutableColumns),
	}).Create(row).Error
	if err != nil {
		return nil, fmt.Errorf("inserting feedback: %w", err)
	}

	stored, err := s.FindByOwner(ctx, rec.InterviewID, rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("reading stored feedback: %w", err)
	}
	return stored, nil
}

func (s *Store) Replace(ctx context.Context, rec *feedback.Record) error {
	row := toRow(rec)

	res := s.db.WithContext(ctx).
		Model(&feedbackRow{}).
		Where("id = ?", rec.ID).
		Updates(map[string]any{
			"total_score":           row.TotalScore,
			"category_scores":       row.CategoryScores,
			"strengths":             row.Strengths,
			"areas_for_improvement": row.AreasForImprovement,
			"final_assessment":      row.FinalAssessment,
			"updated_at":            row.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("updating feedback %s: %w", rec.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return feedback.ErrNotFound
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return feedback.ErrNotFound
	}
	return err
}

func toRow(rec *feedback.Record) *feedbackRow {
	return &feedbackRow{
		ID:                  rec.ID,
		InterviewID:         rec.InterviewID,
		UserID:              rec.UserID,
		TotalScore:          rec.TotalScore,
		CategoryScores:      datatypes.JSONSlice[feedback.CategoryScore](nonNil(rec.CategoryScores)),
		Strengths:           datatypes.JSONSlice[string](nonNil(rec.Strengths)),
		AreasForImprovement: datatypes.JSONSlice[string](nonNil(rec.AreasForImprovement)),
		FinalAssessment:     rec.FinalAssessment,
		CreatedAt:           rec.CreatedAt.UTC(),
		UpdatedAt:           rec.UpdatedAt.UTC(),
	}
}

func fromRow(row *feedbackRow) *feedback.Record {
	return &feedback.Record{
		ID:                  row.ID,
		InterviewID:         row.InterviewID,
		UserID:              row.UserID,
		TotalScore:          row.TotalScore,
		CategoryScores:      []feedback.CategoryScore(row.CategoryScores),
		Strengths:           []string(row.Strengths),
		AreasForImprovement: []string(row.AreasForImprovement),
		FinalAssessment:     row.FinalAssessment,
		CreatedAt:           row.CreatedAt.UTC(),
		UpdatedAt:           row.UpdatedAt.UTC(),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
