// Package ratings stores the global recipe reviews.
package ratings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/pantrysync/internal/codec"
	"github.com/example/pantrysync/internal/mealplan"
	"github.com/example/pantrysync/internal/models"
	"github.com/example/pantrysync/pkg/database"
)

var (
	// ErrInvalidRating is returned for scores outside MinRating..MaxRating.
	ErrInvalidRating = errors.New("invalid rating")
	// ErrEmptyTitle is returned when the rated recipe has no title.
	ErrEmptyTitle = errors.New("recipe title is required")
)

const (
	MinRating = 1
	MaxRating = 5
)

const anonymous = "Anonymous"

// Input is a new review.
type Input struct {
	RecipeTitle string         `json:"recipeTitle"`
	Rating      int            `json:"rating"`
	Comment     string         `json:"comment"`
	Recipe      *models.Recipe `json:"recipe,omitempty"`
}

// Service reads and writes ratings/{ratingId}.
type Service struct {
	store  database.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a ratings Service.
func NewService(store database.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger.Named("ratings"), now: time.Now}
}

// Add stores a review written by author.
func (s *Service) Add(ctx context.Context, author models.User, in Input) (*models.RecipeRating, error) {
	title := strings.TrimSpace(in.RecipeTitle)
	if title == "" && in.Recipe != nil {
		title = strings.TrimSpace(in.Recipe.Title)
	}
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if in.Rating < MinRating || in.Rating > MaxRating {
		return nil, fmt.Errorf("%w: %d is not between %d and %d", ErrInvalidRating, in.Rating, MinRating, MaxRating)
	}
	name := strings.TrimSpace(author.DisplayName)
	if name == "" {
		name = anonymous
	}
	r := models.RecipeRating{
		ID:           uuid.NewString(),
		RecipeTitle:  title,
		Rating:       in.Rating,
		Comment:      strings.TrimSpace(in.Comment),
		AuthorName:   name,
		AuthorAvatar: author.Avatar,
		Date:         s.now().UTC().Truncate(time.Millisecond),
	}
	if in.Recipe != nil {
		snap := mealplan.Sanitize(*in.Recipe)
		r.Recipe = &snap
	}
	path := database.Join(models.CollectionRatings, r.ID)
	if err := s.store.Upsert(ctx, path, codec.EncodeRating(r), database.UpsertOptions{}); err != nil {
		return nil, fmt.Errorf("failed to save rating of '%s': %w", title, err)
	}
	s.logger.Info("Rating added", zap.String("rating_id", r.ID), zap.String("uid", author.ID))
	return &r, nil
}

// List returns every rating, newest first.
func (s *Service) List(ctx context.Context) ([]models.RecipeRating, error) {
	docs, err := s.store.List(ctx, models.CollectionRatings)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	out := make([]models.RecipeRating, 0, len(docs))
	for _, d := range docs {
		out = append(out, codec.DecodeRating(d))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
