// Package escalations persists human handoff tickets in postgres.
package escalations

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"conversation-orchestrator/internal/common/database"
	"conversation-orchestrator/internal/common/errors"
	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/models"
)

const selectColumns = `id, user_id, session_id, query, proposed_response, reason, interim_response,
	status, estimated_wait_minutes, resolution, created_at, resolved_at`

type Store struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewStore(db *database.PostgresClient, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.With(map[string]interface{}{"component": "escalation-store"}),
	}
}

// NewID returns an id of the form ESC-1A2B3C4D.
func NewID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ESC-" + strings.ToUpper(hex[:8])
}

// ListFilter pages through tickets, newest first. An empty Status matches all.
type ListFilter struct {
	Status models.EscalationStatus
	Skip   int
	Limit  int
}

func (s *Store) Create(ctx context.Context, rec *models.EscalationRecord) error {
	if rec.ID == "" {
		rec.ID = NewID()
	}
	if rec.Status == "" {
		rec.Status = models.EscalationPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO escalations (id, user_id, session_id, query, proposed_response, reason,
			interim_response, status, estimated_wait_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.UserID, rec.SessionID, rec.Query, rec.ProposedResponse, rec.Reason,
		rec.InterimResponse, string(rec.Status), rec.EstimatedWaitMinutes, rec.CreatedAt,
	)
	if err != nil {
		return errors.NewDatabaseQueryFailedError("create escalation", err)
	}

	s.logger.Info("escalation created", map[string]interface{}{
		"escalationId": rec.ID,
		"userId":       rec.UserID,
		"reason":       rec.Reason,
	})
	return nil
}

// Finalize records the interim response of a pending ticket and moves it to
// status. Only pending tickets are touched.
func (s *Store) Finalize(ctx context.Context, id, interim string, status models.EscalationStatus, waitMinutes int) error {
	res, err := s.db.Exec(ctx, `
		UPDATE escalations
		SET interim_response = $2, status = $3, estimated_wait_minutes = $4
		WHERE id = $1 AND status = 'pending'`,
		id, interim, string(status), waitMinutes,
	)
	if err != nil {
		return errors.NewDatabaseQueryFailedError("finalize escalation", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewEscalationNotFoundError(id)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.EscalationRecord, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM escalations WHERE id = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewEscalationNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("get escalation", err)
	}
	return rec, nil
}

// Resolve closes a pending ticket with the operator's resolution.
func (s *Store) Resolve(ctx context.Context, id, resolution string) (*models.EscalationRecord, error) {
	var resolved *models.EscalationRecord
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		rec, err := scanRecord(tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM escalations WHERE id = $1 FOR UPDATE`, id))
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NewEscalationNotFoundError(id)
		}
		if err != nil {
			return err
		}
		if !rec.CanResolve() {
			return errors.NewEscalationAlreadyResolvedError(id)
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE escalations SET status = $2, resolution = $3, resolved_at = $4 WHERE id = $1`,
			id, string(models.EscalationResolved), resolution, now,
		); err != nil {
			return err
		}

		rec.Status = models.EscalationResolved
		rec.Resolution = resolution
		rec.ResolvedAt = &now
		resolved = rec
		return nil
	})
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeEscalationNotFound) || errors.HasCode(err, errors.ErrCodeEscalationAlreadyResolved) {
			return nil, err
		}
		return nil, errors.NewDatabaseQueryFailedError("resolve escalation", err)
	}

	s.logger.Info("escalation resolved", map[string]interface{}{
		"escalationId": id,
		"userId":       resolved.UserID,
	})
	return resolved, nil
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]models.EscalationRecord, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.Skip < 0 {
		f.Skip = 0
	}

	query := `SELECT ` + selectColumns + ` FROM escalations`
	args := []interface{}{}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	args = append(args, f.Limit, f.Skip)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list escalations", err)
	}
	defer rows.Close()

	out := []models.EscalationRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.NewDatabaseQueryFailedError("list escalations scan", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list escalations rows", err)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, status models.EscalationStatus) (int, error) {
	var (
		n   int
		err error
	)
	if status == "" {
		err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM escalations`).Scan(&n)
	} else {
		err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM escalations WHERE status = $1`, string(status)).Scan(&n)
	}
	if err != nil {
		return 0, errors.NewDatabaseQueryFailedError("count escalations", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*models.EscalationRecord, error) {
	var (
		rec        models.EscalationRecord
		status     string
		resolvedAt sql.NullTime
	)
	if err := row.Scan(
		&rec.ID, &rec.UserID, &rec.SessionID, &rec.Query, &rec.ProposedResponse, &rec.Reason,
		&rec.InterimResponse, &status, &rec.EstimatedWaitMinutes, &rec.Resolution, &rec.CreatedAt, &resolvedAt,
	); err != nil {
		return nil, err
	}
	rec.Status = models.EscalationStatus(status)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		rec.ResolvedAt = &t
	}
	return &rec, nil
}
