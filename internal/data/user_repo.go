package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tiwed/auth-api/internal/data/cryptoutil"
	"github.com/tiwed/auth-api/internal/data/pgxutil"
	"github.com/tiwed/auth-api/internal/domain/model"
	apperrors "github.com/tiwed/auth-api/internal/errors"
)

// UserRepo provides database operations for user records. MFA shared
// secrets are encrypted at rest through Enc; every read path hands
// plaintext back to callers.
type UserRepo struct {
	DB  *sql.DB
	Enc cryptoutil.Encryptor
	now TimeProvider
}

// NewUserRepo creates a new UserRepo on the system clock.
func NewUserRepo(db *sql.DB, enc cryptoutil.Encryptor) *UserRepo {
	return &UserRepo{DB: db, Enc: enc, now: time.Now}
}

// NewUserRepoWithTimeProvider creates a UserRepo with a custom clock (useful for tests).
func NewUserRepoWithTimeProvider(db *sql.DB, enc cryptoutil.Encryptor, tp TimeProvider) *UserRepo {
	return &UserRepo{DB: db, Enc: enc, now: tp}
}

const userColumns = `id, email, password_hash, full_name, role, is_email_verified, is_active,
	provider, provider_id, mfa_enabled, mfa_secret, avatar_url, created_at, updated_at`

// Create inserts a new user. A duplicate email maps to a Conflict error.
func (r *UserRepo) Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	if req == nil {
		return nil, errors.New("create user request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	now := r.now().UTC()
	var out model.User
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO users (
				id, email, password_hash, full_name, role, is_email_verified, is_active,
				provider, provider_id, avatar_url, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, TRUE, $7, $8, $9, $10, $10
			) RETURNING `+userColumns,
			uuid.NewString(),
			strings.ToLower(strings.TrimSpace(req.Email)),
			req.PasswordHash,
			strings.TrimSpace(req.FullName),
			req.Role,
			req.IsEmailVerified,
			req.Provider,
			req.ProviderID,
			req.AvatarURL,
			now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	if err := r.decryptSecrets(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByEmail retrieves a user by email, case-insensitively.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getByQuery(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`,
		strings.TrimSpace(email))
}

// FindByID retrieves a user by ID.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.getByQuery(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByProvider retrieves a user by federated-provider identity.
func (r *UserRepo) FindByProvider(ctx context.Context, provider, providerID string) (*model.User, error) {
	var out model.User
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+userColumns+` FROM users WHERE provider = $1 AND provider_id = $2`,
			provider, providerID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	if err := r.decryptSecrets(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update applies a partial update and returns the updated row.
func (r *UserRepo) Update(ctx context.Context, id string, req *model.UpdateUserRequest) (*model.User, error) {
	if req == nil || req.Empty() {
		return r.FindByID(ctx, id)
	}

	sets, args, err := r.buildUserUpdate(req)
	if err != nil {
		return nil, err
	}
	args = append(args, r.now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	var out model.User
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	if err := r.decryptSecrets(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// buildUserUpdate translates non-nil request fields into SET clauses.
// The MFA secret is encrypted before it enters the statement.
func (r *UserRepo) buildUserUpdate(req *model.UpdateUserRequest) ([]string, []any, error) {
	var sets []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if req.FullName != nil {
		add("full_name", strings.TrimSpace(*req.FullName))
	}
	if req.PasswordHash != nil {
		add("password_hash", *req.PasswordHash)
	}
	if req.IsEmailVerified != nil {
		add("is_email_verified", *req.IsEmailVerified)
	}
	if req.Provider != nil {
		add("provider", *req.Provider)
	}
	if req.ProviderID != nil {
		add("provider_id", *req.ProviderID)
	}
	if req.MFAEnabled != nil {
		add("mfa_enabled", *req.MFAEnabled)
	}
	if req.MFASecret != nil {
		secret := *req.MFASecret
		if secret != "" {
			ct, err := r.Enc.Encrypt([]byte(secret))
			if err != nil {
				return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encrypt mfa secret")
			}
			secret = ct
		}
		add("mfa_secret", secret)
	}
	if req.AvatarURL != nil {
		add("avatar_url", *req.AvatarURL)
	}
	return sets, args, nil
}

// decryptSecrets replaces the stored MFA secret ciphertext with plaintext.
func (r *UserRepo) decryptSecrets(u *model.User) error {
	if u.MFASecret == nil || *u.MFASecret == "" {
		return nil
	}
	pt, err := r.Enc.Decrypt(*u.MFASecret)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "decrypt mfa secret")
	}
	secret := string(pt)
	u.MFASecret = &secret
	return nil
}

func (r *UserRepo) getByQuery(ctx context.Context, query string, arg any) (*model.User, error) {
	var out model.User
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, arg)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	if err := r.decryptSecrets(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
