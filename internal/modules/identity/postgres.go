package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"

	"github.com/eskrenkovic/tql"
	"github.com/google/uuid"
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Insert(ctx context.Context, user domain.User) error {
	const stmt = `
		INSERT INTO exchange.user (
			id,
			readable_id,
			username,
			player_name,
			player_name_hidden,
			island_name,
			island_name_hidden,
			password_hash,
			registered,
			level,
			banned,
			verification_post,
			verifier_id
		)
		VALUES (
			:id,
			:readable_id,
			:username,
			:player_name,
			:player_name_hidden,
			:island_name,
			:island_name_hidden,
			:password_hash,
			:registered,
			:level,
			:banned,
			:verification_post,
			:verifier_id
		);`

	_, err := tql.Exec(ctx, r.db, stmt, user)
	return err
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id uuid.UUID) (domain.User, bool, error) {
	const query = `SELECT * FROM exchange.user WHERE id = $1;`
	return r.queryOne(ctx, query, id)
}

func (r *PostgresUserRepository) FindByReadableID(ctx context.Context, readableID string) (domain.User, bool, error) {
	const query = `SELECT * FROM exchange.user WHERE readable_id = $1;`
	return r.queryOne(ctx, query, readableID)
}

func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	const query = `SELECT * FROM exchange.user WHERE lower(username) = lower($1);`
	return r.queryOne(ctx, query, username)
}

func (r *PostgresUserRepository) SearchUsers(ctx context.Context, search string, limit int) ([]domain.User, error) {
	const query = `
		SELECT
			*
		FROM
			exchange.user
		WHERE
			username ILIKE '%' || $1 || '%' OR readable_id ILIKE '%' || $1 || '%'
		ORDER BY
			registered DESC
		LIMIT $2;`

	return tql.Query[domain.User](ctx, r.db, query, search, limit)
}

func (r *PostgresUserRepository) queryOne(ctx context.Context, query string, arg any) (domain.User, bool, error) {
	user, err := tql.QueryFirst[domain.User](ctx, r.db, query, arg)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.User{}, false, nil
	case err != nil:
		return domain.User{}, false, err
	}

	return user, true, nil
}

func (r *PostgresUserRepository) SetPlayerName(ctx context.Context, id uuid.UUID, name string) error {
	return r.setColumn(ctx, "player_name", id, name)
}

func (r *PostgresUserRepository) SetIslandName(ctx context.Context, id uuid.UUID, name string) error {
	return r.setColumn(ctx, "island_name", id, name)
}

func (r *PostgresUserRepository) SetPlayerNameHidden(ctx context.Context, id uuid.UUID, hidden bool) error {
	return r.setColumn(ctx, "player_name_hidden", id, hidden)
}

func (r *PostgresUserRepository) SetIslandNameHidden(ctx context.Context, id uuid.UUID, hidden bool) error {
	return r.setColumn(ctx, "island_name_hidden", id, hidden)
}

func (r *PostgresUserRepository) SetLevel(ctx context.Context, id uuid.UUID, level domain.Level) error {
	return r.setColumn(ctx, "level", id, int(level))
}

func (r *PostgresUserRepository) SetBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	return r.setColumn(ctx, "banned", id, banned)
}

func (r *PostgresUserRepository) SetPasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.setColumn(ctx, "password_hash", id, passwordHash)
}

func (r *PostgresUserRepository) SetVerification(
	ctx context.Context,
	id uuid.UUID,
	post string,
	verifierID uuid.UUID,
) error {
	const stmt = `UPDATE exchange.user SET verification_post = $2, verifier_id = $3 WHERE id = $1;`
	_, err := tql.Exec(ctx, r.db, stmt, id, post, verifierID)
	return err
}

// setColumn keeps the single-field updates in one place. The column name is
// always a compile-time constant, never user input.
func (r *PostgresUserRepository) setColumn(ctx context.Context, column string, id uuid.UUID, value any) error {
	stmt := `UPDATE exchange.user SET ` + column + ` = $2 WHERE id = $1;`
	_, err := tql.Exec(ctx, r.db, stmt, id, value)
	return err
}

func (r *PostgresUserRepository) SetStarred(ctx context.Context, userID, targetID uuid.UUID, starred bool) error {
	return r.setRelation(ctx, "user_star", userID, targetID, starred)
}

func (r *PostgresUserRepository) SetBlocked(ctx context.Context, userID, targetID uuid.UUID, blocked bool) error {
	return r.setRelation(ctx, "user_block", userID, targetID, blocked)
}

func (r *PostgresUserRepository) setRelation(
	ctx context.Context,
	table string,
	userID uuid.UUID,
	targetID uuid.UUID,
	set bool,
) error {
	if set {
		stmt := `
			INSERT INTO exchange.` + table + ` (user_id, target_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING;`
		_, err := tql.Exec(ctx, r.db, stmt, userID, targetID)
		return err
	}

	stmt := `DELETE FROM exchange.` + table + ` WHERE user_id = $1 AND target_id = $2;`
	_, err := tql.Exec(ctx, r.db, stmt, userID, targetID)
	return err
}

func (r *PostgresUserRepository) HasStarred(ctx context.Context, userID, targetID uuid.UUID) (bool, error) {
	return r.hasRelation(ctx, "user_star", userID, targetID)
}

func (r *PostgresUserRepository) HasBlocked(ctx context.Context, userID, targetID uuid.UUID) (bool, error) {
	return r.hasRelation(ctx, "user_block", userID, targetID)
}

func (r *PostgresUserRepository) hasRelation(
	ctx context.Context,
	table string,
	userID uuid.UUID,
	targetID uuid.UUID,
) (bool, error) {
	query := `SELECT count(*) FROM exchange.` + table + ` WHERE user_id = $1 AND target_id = $2;`
	count, err := tql.QueryFirst[int](ctx, r.db, query, userID, targetID)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
