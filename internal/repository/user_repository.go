package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/session-auth-api/internal/models"
	"github.com/noah-isme/session-auth-api/pkg/database"
)

const userColumns = `userid, usernm, pwd, email, userrole, refresh_token, refresh_token_expiry, lastlogin_at, created_at, updated_at`

// UserRepository provides access to the com_user table. It is the only code
// that writes the persisted refresh-token pair.
type UserRepository struct {
	pool *database.Pool
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(pool *database.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByID returns a user by identifier. sql.ErrNoRows is returned unwrapped.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM com_user WHERE userid = $1 LIMIT 1`
	return r.getUser(ctx, "find_user_by_id", query, id)
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM com_user WHERE email = $1 LIMIT 1`
	return r.getUser(ctx, "find_user_by_email", query, email)
}

// FindByRefreshToken returns the user whose stored refresh token equals token.
func (r *UserRepository) FindByRefreshToken(ctx context.Context, token string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM com_user WHERE refresh_token = $1 LIMIT 1`
	return r.getUser(ctx, "find_user_by_refresh_token", query, token)
}

// Create inserts a new user row. A duplicate userid or email surfaces as a
// *pq.Error that IsUniqueViolation recognises.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = &now

	const query = `INSERT INTO com_user (userid, usernm, pwd, email, userrole, lastlogin_at, created_at, updated_at) VALUES (:userid, :usernm, :pwd, :email, :userrole, :lastlogin_at, :created_at, :updated_at)`

	bound, args, err := r.pool.BindNamed(query, user)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	_, err = r.exec(ctx, "create_user", bound, args...)
	return err
}

// UpdateSocialProfile refreshes the display name and last-login of a user
// that signed in through an identity provider.
func (r *UserRepository) UpdateSocialProfile(ctx context.Context, id, usernm string, loginAt time.Time) error {
	const query = `UPDATE com_user SET usernm = $2, lastlogin_at = $3, updated_at = $3 WHERE userid = $1`
	_, err := r.exec(ctx, "update_social_profile", query, id, usernm, loginAt)
	return err
}

// UpdateRefreshToken stores a freshly issued refresh token, its expiry and the
// login time in a single statement, replacing whatever was stored before.
func (r *UserRepository) UpdateRefreshToken(ctx context.Context, id, token string, expiry, loginAt time.Time) error {
	const query = `UPDATE com_user SET refresh_token = $2, refresh_token_expiry = $3, lastlogin_at = $4, updated_at = $4 WHERE userid = $1`
	n, err := r.exec(ctx, "update_refresh_token", query, id, token, expiry, loginAt)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update refresh token: user %s: %w", id, ErrUserNotFound)
	}
	return nil
}

// RotateRefreshToken swaps oldToken for newToken only if oldToken is still
// the stored value and has not expired at now. It reports false when another
// request already rotated the token or it lapsed.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, id, oldToken, newToken string, newExpiry, now time.Time) (bool, error) {
	const query = `UPDATE com_user SET refresh_token = $3, refresh_token_expiry = $4, updated_at = $5
		WHERE userid = $1 AND refresh_token = $2 AND refresh_token_expiry > $5`
	n, err := r.exec(ctx, "rotate_refresh_token", query, id, oldToken, newToken, newExpiry, now)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClearRefreshToken nulls the stored token and expiry. Clearing an already
// empty session is not an error.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	const query = `UPDATE com_user SET refresh_token = NULL, refresh_token_expiry = NULL WHERE userid = $1`
	_, err := r.exec(ctx, "clear_refresh_token", query, id)
	return err
}

// InvalidateSession clears the session and touches updated_at in one
// transaction.
func (r *UserRepository) InvalidateSession(ctx context.Context, id string, at time.Time) error {
	defer r.pool.Observe("invalidate_session", time.Now())
	return r.pool.Transaction(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE com_user SET refresh_token = NULL, refresh_token_expiry = NULL WHERE userid = $1`, id); err != nil {
			return database.Classify("clear refresh token", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE com_user SET updated_at = $2 WHERE userid = $1`, id, at); err != nil {
			return database.Classify("touch user", err)
		}
		return nil
	})
}

// ClearExpiredRefreshTokens clears every stored refresh token whose expiry is
// not after now and returns how many sessions were ended.
func (r *UserRepository) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE com_user SET refresh_token = NULL, refresh_token_expiry = NULL WHERE refresh_token IS NOT NULL AND refresh_token_expiry <= $1`
	return r.exec(ctx, "clear_expired_refresh_tokens", query, now)
}

// ErrUserNotFound is returned by writes that matched no row.
var ErrUserNotFound = errors.New("user not found")

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (r *UserRepository) getUser(ctx context.Context, label, query string, arg interface{}) (*models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	defer conn.Close()

	ctx, cancel := r.pool.WithQueryTimeout(ctx)
	defer cancel()
	defer r.pool.Observe(label, time.Now())

	var user models.User
	if err := conn.GetContext(ctx, &user, query, arg); err != nil {
		return nil, database.Classify(label, err)
	}
	return &user, nil
}

func (r *UserRepository) exec(ctx context.Context, label, query string, args ...interface{}) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", label, err)
	}
	defer conn.Close()

	ctx, cancel := r.pool.WithQueryTimeout(ctx)
	defer cancel()
	defer r.pool.Observe(label, time.Now())

	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, database.Classify(label, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, database.Classify(label, err)
	}
	return n, nil
}
