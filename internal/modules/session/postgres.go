package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/eskrenkovic/tql"
	"github.com/google/uuid"
)

type PostgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

func (r *PostgresSessionRepository) InsertSession(ctx context.Context, session domain.Session) error {
	const stmt = `
		INSERT INTO exchange.session (
			id,
			readable_id,
			host_id,
			dodo,
			title,
			description,
			turnip_price,
			unlisted,
			public_requesters,
			verified_only,
			auto_accept_verified,
			status,
			created,
			updated
		)
		VALUES (
			:id,
			:readable_id,
			:host_id,
			:dodo,
			:title,
			:description,
			:turnip_price,
			:unlisted,
			:public_requesters,
			:verified_only,
			:auto_accept_verified,
			:status,
			:created,
			:updated
		);`

	_, err := tql.Exec(ctx, r.db, stmt, session)
	return err
}

func (r *PostgresSessionRepository) FindSession(ctx context.Context, id uuid.UUID) (domain.Session, bool, error) {
	const query = `SELECT * FROM exchange.session WHERE id = $1;`
	return r.queryOne(ctx, query, id)
}

func (r *PostgresSessionRepository) FindSessionByReadableID(
	ctx context.Context,
	readableID string,
) (domain.Session, bool, error) {
	const query = `SELECT * FROM exchange.session WHERE readable_id = $1;`
	return r.queryOne(ctx, query, readableID)
}

func (r *PostgresSessionRepository) FindSessionByDodo(ctx context.Context, dodo string) (domain.Session, bool, error) {
	const query = `
		SELECT
			*
		FROM
			exchange.session
		WHERE
			upper(dodo) = upper($1) AND status <> $2
		ORDER BY
			created DESC
		LIMIT 1;`

	return r.queryOne(ctx, query, dodo, int(domain.SessionClosed))
}

func (r *PostgresSessionRepository) FindOpenSessionOfHost(
	ctx context.Context,
	hostID uuid.UUID,
) (domain.Session, bool, error) {
	const query = `
		SELECT
			*
		FROM
			exchange.session
		WHERE
			host_id = $1 AND status <> $2
		ORDER BY
			created DESC
		LIMIT 1;`

	return r.queryOne(ctx, query, hostID, int(domain.SessionClosed))
}

func (r *PostgresSessionRepository) ListSessions(ctx context.Context, includeUnlisted bool) ([]domain.Session, error) {
	query := `SELECT * FROM exchange.session WHERE NOT unlisted ORDER BY created DESC;`
	if includeUnlisted {
		query = `SELECT * FROM exchange.session ORDER BY created DESC;`
	}

	return tql.Query[domain.Session](ctx, r.db, query)
}

func (r *PostgresSessionRepository) queryOne(
	ctx context.Context,
	query string,
	args ...any,
) (domain.Session, bool, error) {
	session, err := tql.QueryFirst[domain.Session](ctx, r.db, query, args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Session{}, false, nil
	case err != nil:
		return domain.Session{}, false, err
	}

	return session, true, nil
}

func (r *PostgresSessionRepository) UpdateSession(ctx context.Context, id uuid.UUID, patch SessionPatch) error {
	stmt, args := sessionPatchStatement(id, patch)
	_, err := tql.Exec(ctx, r.db, stmt, args...)
	return err
}

// UpdateSessionAndResetGotDodo runs the patch and the got_dodo invalidation
// as one transaction: a code change either lands with its resets or not at
// all.
func (r *PostgresSessionRepository) UpdateSessionAndResetGotDodo(
	ctx context.Context,
	id uuid.UUID,
	patch SessionPatch,
) ([]uuid.UUID, error) {
	stmt, args := sessionPatchStatement(id, patch)

	var reset []uuid.UUID
	err := core.Tx(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tql.Exec(ctx, tx, stmt, args...); err != nil {
			return err
		}

		rows, err := tql.Query[uuid.UUID](ctx, tx, resetGotDodoStmt, id)
		if err != nil {
			return err
		}

		reset = rows
		return nil
	})

	return reset, err
}

func sessionPatchStatement(id uuid.UUID, patch SessionPatch) (string, []any) {
	assignments := []string{"updated = $2"}
	args := []any{id, patch.Updated}

	appendAssignment := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Dodo != nil {
		appendAssignment("dodo", *patch.Dodo)
	}
	if patch.Title != nil {
		appendAssignment("title", *patch.Title)
	}
	if patch.Description != nil {
		appendAssignment("description", *patch.Description)
	}
	if patch.TurnipPrice != nil {
		appendAssignment("turnip_price", *patch.TurnipPrice)
	}
	if patch.Unlisted != nil {
		appendAssignment("unlisted", *patch.Unlisted)
	}
	if patch.PublicRequesters != nil {
		appendAssignment("public_requesters", *patch.PublicRequesters)
	}
	if patch.VerifiedOnly != nil {
		appendAssignment("verified_only", *patch.VerifiedOnly)
	}
	if patch.AutoAcceptVerified != nil {
		appendAssignment("auto_accept_verified", *patch.AutoAcceptVerified)
	}
	if patch.Status != nil {
		appendAssignment("status", int(*patch.Status))
	}

	stmt := fmt.Sprintf(
		`UPDATE exchange.session SET %s WHERE id = $1;`,
		strings.Join(assignments, ", "),
	)

	return stmt, args
}

func (r *PostgresSessionRepository) SetSessionStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.SessionStatus,
) error {
	const stmt = `UPDATE exchange.session SET status = $2, updated = now() WHERE id = $1;`
	_, err := tql.Exec(ctx, r.db, stmt, id, int(status))
	return err
}

func (r *PostgresSessionRepository) AppendRequester(ctx context.Context, requester domain.Requester) (bool, error) {
	const stmt = `
		INSERT INTO
			exchange.requester (session_id, user_id, status, requested_at, got_dodo)
		VALUES
			(:session_id, :user_id, :status, :requested_at, :got_dodo)
		ON CONFLICT (session_id, user_id) DO NOTHING;`

	result, err := tql.Exec(ctx, r.db, stmt, requester)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *PostgresSessionRepository) FindRequester(
	ctx context.Context,
	sessionID uuid.UUID,
	userID uuid.UUID,
) (domain.Requester, bool, error) {
	const query = `SELECT * FROM exchange.requester WHERE session_id = $1 AND user_id = $2;`

	requester, err := tql.QueryFirst[domain.Requester](ctx, r.db, query, sessionID, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Requester{}, false, nil
	case err != nil:
		return domain.Requester{}, false, err
	}

	return requester, true, nil
}

func (r *PostgresSessionRepository) ListRequesters(ctx context.Context, sessionID uuid.UUID) ([]domain.Requester, error) {
	const query = `
		SELECT
			*
		FROM
			exchange.requester
		WHERE
			session_id = $1
		ORDER BY
			requested_at ASC;`

	return tql.Query[domain.Requester](ctx, r.db, query, sessionID)
}

func (r *PostgresSessionRepository) TransitionRequester(
	ctx context.Context,
	sessionID uuid.UUID,
	userID uuid.UUID,
	from domain.RequesterStatus,
	to domain.RequesterStatus,
) (bool, error) {
	const stmt = `
		UPDATE
			exchange.requester
		SET
			status = $4
		WHERE
			session_id = $1 AND user_id = $2 AND status = $3;`

	result, err := tql.Exec(ctx, r.db, stmt, sessionID, userID, int(from), int(to))
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *PostgresSessionRepository) ReviveRequester(
	ctx context.Context,
	sessionID uuid.UUID,
	userID uuid.UUID,
	to domain.RequesterStatus,
	requestedAt time.Time,
) (bool, error) {
	const stmt = `
		UPDATE
			exchange.requester
		SET
			status = $3, requested_at = $4
		WHERE
			session_id = $1 AND user_id = $2 AND status = $5;`

	result, err := tql.Exec(ctx, r.db, stmt, sessionID, userID, int(to), requestedAt, int(domain.RequesterWithdrawn))
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *PostgresSessionRepository) SetRequesterGotDodo(
	ctx context.Context,
	sessionID uuid.UUID,
	userID uuid.UUID,
	gotDodo bool,
) (bool, error) {
	const stmt = `
		UPDATE
			exchange.requester
		SET
			got_dodo = $3
		WHERE
			session_id = $1 AND user_id = $2 AND got_dodo <> $3;`

	result, err := tql.Exec(ctx, r.db, stmt, sessionID, userID, gotDodo)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

const resetGotDodoStmt = `
	UPDATE
		exchange.requester
	SET
		got_dodo = false
	WHERE
		session_id = $1 AND got_dodo
	RETURNING
		user_id;`

func (r *PostgresSessionRepository) ResetGotDodo(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error) {
	return tql.Query[uuid.UUID](ctx, r.db, resetGotDodoStmt, sessionID)
}
