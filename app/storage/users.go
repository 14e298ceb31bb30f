package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/docshelf/core/logger"
)

// EnsureUser returns the user for nu.ExternalID, registering it on first sight.
// A concurrent registration that wins the insert is resolved by re-reading.
func EnsureUser(ctx context.Context, s Store, nu NewUser) (User, error) {
	u, err := s.FindUserByExternalID(ctx, nu.ExternalID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	u, err = s.CreateUser(ctx, nu)
	switch {
	case err == nil:
		logger.Info(ctx, "service.users", "user.registered",
			slog.Int64("user_id", nu.ExternalID),
			slog.Int64("id", u.ID),
		)
		return u, nil
	case errors.Is(err, ErrConflict):
		logger.Debug(ctx, "service.users", "user.register.race",
			slog.Int64("user_id", nu.ExternalID),
		)
		return s.FindUserByExternalID(ctx, nu.ExternalID)
	default:
		return User{}, err
	}
}
