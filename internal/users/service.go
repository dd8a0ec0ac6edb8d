// Package users manages user profile documents.
package users

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/pantrysync/internal/codec"
	"github.com/example/pantrysync/internal/models"
	"github.com/example/pantrysync/pkg/database"
)

// ErrUserNotFound is returned when a user profile does not exist.
var ErrUserNotFound = errors.New("user not found")

// Service reads and writes users/{uid}.
type Service struct {
	store  database.Store
	logger *zap.Logger
}

// NewService creates a new user Service.
func NewService(store database.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger.Named("users")}
}

func docPath(uid string) string {
	return database.Join(models.CollectionUsers, uid)
}

// Get retrieves a user by ID.
func (s *Service) Get(ctx context.Context, uid string) (*models.User, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: empty user ID", ErrUserNotFound)
	}
	doc, err := s.store.Get(ctx, docPath(uid))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: user with ID '%s'", ErrUserNotFound, uid)
		}
		return nil, fmt.Errorf("failed to get user by ID '%s': %w", uid, err)
	}
	u := codec.DecodeUser(*doc)
	return &u, nil
}

// GetOrCreate returns the stored profile of u, creating it on first sign in.
// Identity fields that changed at the identity provider are refreshed; the
// tutorial flag is always the stored one. The boolean reports whether the
// profile was created.
func (s *Service) GetOrCreate(ctx context.Context, u models.User) (*models.User, bool, error) {
	stored, err := s.Get(ctx, u.ID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) || u.ID == "" {
			return nil, false, err
		}
		u.HasSeenTutorial = false
		if err := s.store.Upsert(ctx, docPath(u.ID), codec.EncodeUser(u), database.UpsertOptions{}); err != nil {
			return nil, false, fmt.Errorf("failed to create user (id: %s) after not found: %w", u.ID, err)
		}
		s.logger.Info("User profile created", zap.String("uid", u.ID))
		return &u, true, nil
	}

	changes := map[string]interface{}{}
	if u.DisplayName != "" && u.DisplayName != stored.DisplayName {
		changes["displayName"] = u.DisplayName
		stored.DisplayName = u.DisplayName
	}
	if u.Email != "" && u.Email != stored.Email {
		changes["email"] = u.Email
		stored.Email = u.Email
	}
	if u.Avatar != "" && u.Avatar != stored.Avatar {
		changes["avatar"] = u.Avatar
		stored.Avatar = u.Avatar
	}
	if u.Provider != "" && u.Provider != stored.Provider {
		changes["provider"] = u.Provider
		stored.Provider = u.Provider
	}
	if len(changes) > 0 {
		if err := s.store.Upsert(ctx, docPath(u.ID), changes, database.UpsertOptions{Merge: true}); err != nil {
			return nil, false, fmt.Errorf("failed to refresh user '%s': %w", u.ID, err)
		}
	}
	return stored, false, nil
}

// MarkTutorialSeen sets the tutorial flag of uid.
func (s *Service) MarkTutorialSeen(ctx context.Context, uid string) (*models.User, error) {
	u, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u.HasSeenTutorial {
		return u, nil
	}
	if err := s.store.Upsert(ctx, docPath(uid), map[string]interface{}{"hasSeenTutorial": true}, database.UpsertOptions{Merge: true}); err != nil {
		return nil, fmt.Errorf("failed to update tutorial flag of user '%s': %w", uid, err)
	}
	u.HasSeenTutorial = true
	return u, nil
}
