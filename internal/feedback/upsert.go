package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned by stores when no record matches.
var ErrNotFound = errors.New("feedback not found")

// Store persists feedback records. Each single write must be atomic.
type Store interface {
	// Get returns the record with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	// FindByOwner returns the record for the (interview, user) pair or ErrNotFound.
	FindByOwner(ctx context.Context, interviewID, userID string) (*Record, error)
	// Create stores a new record. When a record for the same (interview, user)
	// pair already exists its mutable fields are replaced instead, and the
	// stored record is returned.
	Create(ctx context.Context, rec *Record) (*Record, error)
	// Replace overwrites the mutable fields of the record with rec.ID.
	Replace(ctx context.Context, rec *Record) error
}

// UpsertManager resolves record identity and performs create-or-replace writes.
type UpsertManager struct {
	store  Store
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

func NewUpsertManager(store Store, logger *zap.Logger) *UpsertManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpsertManager{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		logger: logger,
	}
}

// Upsert writes the payload for the (interview, user) pair and returns the record id.
// Concurrent calls for the same pair are not coordinated: the last write wins.
func (m *UpsertManager) Upsert(ctx context.Context, payload *Payload, interviewID, userID, feedbackID string) (string, error) {
	if payload == nil {
		return "", persistError("nothing to persist", errors.New("payload is nil"))
	}

	existing, err := m.resolve(ctx, interviewID, userID, feedbackID)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", persistError("request cancelled before write", err)
	}

	now := m.now()

	if existing != nil {
		rec := *existing
		rec.Apply(payload)
		rec.UpdatedAt = now

		if err := m.store.Replace(ctx, &rec); err != nil {
			return "", persistError("failed to replace feedback", err)
		}

		m.logger.Info("feedback replaced", zap.String("feedback_id", rec.ID))
		return rec.ID, nil
	}

	id := feedbackID
	if id == "" {
		id = m.newID()
	}

	rec := &Record{
		ID:          id,
		InterviewID: interviewID,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec.Apply(payload)

	stored, err := m.store.Create(ctx, rec)
	if err != nil {
		return "", persistError("failed to create feedback", err)
	}

	m.logger.Info("feedback created", zap.String("feedback_id", stored.ID))
	return stored.ID, nil
}

func (m *UpsertManager) resolve(ctx context.Context, interviewID, userID, feedbackID string) (*Record, error) {
	if feedbackID == "" {
		rec, err := m.store.FindByOwner(ctx, interviewID, userID)
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, nil
		case err != nil:
			return nil, persistError("failed to look up feedback", err)
		}
		return rec, nil
	}

	rec, err := m.store.Get(ctx, feedbackID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, persistError("failed to load feedback", err)
	}

	if rec.InterviewID != interviewID || rec.UserID != userID {
		return nil, persistError("feedback belongs to another interview",
			fmt.Errorf("feedback %s is owned by interview %s and user %s", rec.ID, rec.InterviewID, rec.UserID))
	}

	return rec, nil
}
