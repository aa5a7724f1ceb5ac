// Package devseed populates a development database with known accounts so
// the API is usable immediately after a fresh start. Never wired in
// production builds; main only calls it in dev mode.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/tiwed/auth-api/internal/data"
	"github.com/tiwed/auth-api/internal/data/cryptoutil"
	domainauth "github.com/tiwed/auth-api/internal/domain/auth"
	"github.com/tiwed/auth-api/internal/domain/model"
	apperrors "github.com/tiwed/auth-api/internal/errors"
)

type seedUser struct {
	Email    string
	Password string
	FullName string
	Role     domainauth.Role
}

var seedUsers = []seedUser{
	{Email: "admin@tiwed.local", Password: "admin-password-1", FullName: "Dev Admin", Role: domainauth.RoleAdmin},
	{Email: "user@tiwed.local", Password: "user-password-1", FullName: "Dev User", Role: domainauth.RoleUser},
}

// Run seeds the development accounts. Existing accounts are left alone, so
// repeated starts are safe.
func Run(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	repo := data.NewUserRepo(db, cryptoutil.NoopEncryptor{})
	failures := 0
	for _, u := range seedUsers {
		created, err := createUser(ctx, repo, u)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed user", "email", u.Email, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "seed user already exists"
			if created {
				msg = "created seed user"
			}
			logger.InfoContext(ctx, msg, "email", u.Email, "role", u.Role)
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func createUser(ctx context.Context, repo *data.UserRepo, u seedUser) (bool, error) {
	if _, err := repo.FindByEmail(ctx, u.Email); err == nil {
		return false, nil
	} else if !apperrors.IsNotFound(err) {
		return false, err
	}

	// MinCost keeps repeated dev starts fast; these are throwaway accounts.
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.MinCost)
	if err != nil {
		return false, err
	}
	hashStr := string(hash)
	_, err = repo.Create(ctx, &model.CreateUserRequest{
		Email:           u.Email,
		PasswordHash:    &hashStr,
		FullName:        u.FullName,
		Role:            u.Role,
		IsEmailVerified: true,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
