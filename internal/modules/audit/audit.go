package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"

	"github.com/eskrenkovic/tql"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink records security-relevant events around code handling. Implementations
// are fire-and-forget: failures get logged, never propagated to the command
// that triggered them.
type Sink interface {
	RecordCodeRetrieved(ctx context.Context, userID, sessionID uuid.UUID, dodo string)
	RecordCodeLeaked(ctx context.Context, sessionID uuid.UUID, dodo string)
}

type retrievalRecord struct {
	ID         uuid.UUID `db:"id"`
	UserID     uuid.UUID `db:"user_id"`
	SessionID  uuid.UUID `db:"session_id"`
	Dodo       string    `db:"dodo"`
	OccurredAt time.Time `db:"occurred_at"`
}

type leakRecord struct {
	ID         uuid.UUID `db:"id"`
	SessionID  uuid.UUID `db:"session_id"`
	Dodo       string    `db:"dodo"`
	OccurredAt time.Time `db:"occurred_at"`
}

type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) RecordCodeRetrieved(ctx context.Context, userID, sessionID uuid.UUID, dodo string) {
	const stmt = `
		INSERT INTO
			exchange.code_retrieval (id, user_id, session_id, dodo, occurred_at)
		VALUES
			(:id, :user_id, :session_id, :dodo, :occurred_at);`

	record := retrievalRecord{
		ID:         uuid.New(),
		UserID:     userID,
		SessionID:  sessionID,
		Dodo:       dodo,
		OccurredAt: time.Now().UTC(),
	}

	if _, err := tql.Exec(ctx, s.db, stmt, record); err != nil {
		core.LogError(ctx, "failed to record code retrieval", zap.Error(err))
	}
}

func (s *PostgresSink) RecordCodeLeaked(ctx context.Context, sessionID uuid.UUID, dodo string) {
	const stmt = `
		INSERT INTO
			exchange.code_leak (id, session_id, dodo, occurred_at)
		VALUES
			(:id, :session_id, :dodo, :occurred_at);`

	record := leakRecord{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Dodo:       dodo,
		OccurredAt: time.Now().UTC(),
	}

	if _, err := tql.Exec(ctx, s.db, stmt, record); err != nil {
		core.LogError(ctx, "failed to record code leak", zap.Error(err))
	}
}

// LogSink writes audit events to the process log only. Used in tests and
// local runs without a database.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) RecordCodeRetrieved(_ context.Context, userID, sessionID uuid.UUID, dodo string) {
	s.logger.Info(
		"code retrieved",
		zap.String("user_id", userID.String()),
		zap.String("session_id", sessionID.String()),
		zap.String("dodo", dodo),
	)
}

func (s *LogSink) RecordCodeLeaked(_ context.Context, sessionID uuid.UUID, dodo string) {
	s.logger.Warn(
		"code leaked",
		zap.String("session_id", sessionID.String()),
		zap.String("dodo", dodo),
	)
}
