package household

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/pantrysync/internal/codec"
	"github.com/example/pantrysync/internal/models"
	"github.com/example/pantrysync/pkg/database"
)

// Service manages household documents.
type Service struct {
	store  database.Store
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	cleaned map[string]bool
}

// NewService creates a household Service.
func NewService(store database.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		logger:  logger.Named("household"),
		now:     time.Now,
		cleaned: make(map[string]bool),
	}
}

func docPath(id string) string {
	return database.Join(models.CollectionHouseholds, id)
}

// Get loads a household by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.Household, error) {
	if id == "" {
		return nil, ErrNoHousehold
	}
	doc, err := s.store.Get(ctx, docPath(id))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: household with ID '%s'", ErrNoHousehold, id)
		}
		return nil, fmt.Errorf("failed to get household '%s': %w", id, err)
	}
	return codec.DecodeHousehold(*doc)
}

// FindForUser returns the household u is an active member of.
func (s *Service) FindForUser(ctx context.Context, u models.User) (*models.Household, error) {
	docs, err := s.store.Where(ctx, models.CollectionHouseholds, "memberIds", "array-contains", u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query households of user '%s': %w", u.ID, err)
	}
	for _, doc := range docs {
		h, err := codec.DecodeHousehold(doc)
		if err != nil {
			s.logger.Warn("Skipping malformed household", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		if IsMember(h, &u) {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: user '%s' has no household", ErrNoHousehold, u.ID)
}

// Create creates a household owned by owner, who becomes its first admin.
func (s *Service) Create(ctx context.Context, owner models.User, name string) (*models.Household, error) {
	if _, err := s.FindForUser(ctx, owner); err == nil {
		return nil, ErrAlreadyInHousehold
	} else if !errors.Is(err, ErrNoHousehold) {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = owner.DisplayName + "'s household"
	}
	h := &models.Household{
		ID:   uuid.NewString(),
		Name: name,
		Members: []models.Member{{
			ID:     owner.ID,
			Name:   owner.DisplayName,
			Email:  owner.Email,
			Role:   models.RoleAdmin,
			Status: models.StatusActive,
		}},
		MemberIDs: []string{owner.ID},
	}
	if err := s.save(ctx, h); err != nil {
		return nil, err
	}
	s.logger.Info("Household created", zap.String("household_id", h.ID), zap.String("owner", owner.ID))
	return h, nil
}

// Invite adds an invited member entry. actor must be a member.
func (s *Service) Invite(ctx context.Context, actor models.User, householdID, email, name string) (*models.Household, error) {
	h, err := s.Get(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if !IsMember(h, &actor) {
		return nil, fmt.Errorf("%w: user '%s' cannot invite to household '%s'", ErrNotMember, actor.ID, householdID)
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: empty email", ErrMemberNotFound)
	}
	for _, m := range h.Members {
		if sameEmail(m.Email, email) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyMember, email)
		}
	}
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	at := s.now().UTC()
	h.Members = append(h.Members, models.Member{
		Name:      name,
		Email:     email,
		Role:      models.RoleMember,
		Status:    models.StatusInvited,
		InvitedBy: actor.ID,
		InvitedAt: &at,
	})
	if err := s.save(ctx, h); err != nil {
		return nil, err
	}
	s.logger.Info("Member invited", zap.String("household_id", h.ID), zap.String("invited_by", actor.ID))
	return h, nil
}

// Accept activates the invitation addressed to u's email.
func (s *Service) Accept(ctx context.Context, u models.User, householdID string) (*models.Household, error) {
	if _, err := s.FindForUser(ctx, u); err == nil {
		return nil, ErrAlreadyInHousehold
	} else if !errors.Is(err, ErrNoHousehold) {
		return nil, err
	}
	h, err := s.Get(ctx, householdID)
	if err != nil {
		return nil, err
	}
	found := false
	for i, m := range h.Members {
		if sameEmail(m.Email, u.Email) {
			h.Members[i].ID = u.ID
			h.Members[i].Status = models.StatusActive
			if u.DisplayName != "" {
				h.Members[i].Name = u.DisplayName
			}
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: no invitation for user '%s'", ErrMemberNotFound, u.ID)
	}
	h.MemberIDs = appendUnique(h.MemberIDs, u.ID)
	if err := s.save(ctx, h); err != nil {
		return nil, err
	}
	s.logger.Info("Invitation accepted", zap.String("household_id", h.ID), zap.String("user_id", u.ID))
	return h, nil
}

// RemoveMember removes the member identified by memberKey (ID or email). When
// no member IDs remain the household and its collections are deleted and nil
// is returned.
func (s *Service) RemoveMember(ctx context.Context, actor models.User, householdID, memberKey string) (*models.Household, error) {
	h, err := s.Get(ctx, householdID)
	if err != nil {
		return nil, err
	}
	next, err := Remove(h, actor, memberKey)
	if err != nil {
		return nil, fmt.Errorf("cannot remove '%s' from household '%s': %w", memberKey, householdID, err)
	}
	if Empty(next) {
		if err := s.cleanup(ctx, householdID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err := s.save(ctx, next); err != nil {
		return nil, err
	}
	s.logger.Info("Member removed", zap.String("household_id", householdID), zap.String("actor", actor.ID))
	return next, nil
}

// Leave removes actor from the household.
func (s *Service) Leave(ctx context.Context, actor models.User, householdID string) (*models.Household, error) {
	key := actor.ID
	if h, err := s.Get(ctx, householdID); err == nil {
		for _, m := range h.Members {
			if m.ID == "" && sameEmail(m.Email, actor.Email) {
				key = actor.Email
			}
		}
	}
	return s.RemoveMember(ctx, actor, householdID, key)
}

// cleanup deletes an orphaned household's subcollections and document in one
// batch. It runs at most once per household.
func (s *Service) cleanup(ctx context.Context, householdID string) error {
	s.mu.Lock()
	if s.cleaned[householdID] {
		s.mu.Unlock()
		return nil
	}
	s.cleaned[householdID] = true
	s.mu.Unlock()

	scope := Scope{Household: true, ID: householdID}
	batch := s.store.Batch()
	for _, col := range models.ScopedCollections {
		docs, err := s.store.List(ctx, scope.CollectionPath(col))
		if err != nil {
			s.forget(householdID)
			return fmt.Errorf("failed to list %s of household '%s': %w", col, householdID, err)
		}
		for _, d := range docs {
			batch.Delete(d.Path)
		}
	}
	batch.Delete(docPath(householdID))
	if err := batch.Commit(ctx); err != nil {
		s.forget(householdID)
		return fmt.Errorf("failed to delete orphaned household '%s': %w", householdID, err)
	}
	s.logger.Info("Orphaned household deleted", zap.String("household_id", householdID), zap.Int("documents", batch.Len()))
	return nil
}

func (s *Service) forget(householdID string) {
	s.mu.Lock()
	delete(s.cleaned, householdID)
	s.mu.Unlock()
}

func (s *Service) save(ctx context.Context, h *models.Household) error {
	if err := s.store.Upsert(ctx, docPath(h.ID), codec.EncodeHousehold(*h), database.UpsertOptions{}); err != nil {
		return fmt.Errorf("failed to save household '%s': %w", h.ID, err)
	}
	return nil
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
