// Package household decides which storage scope applies to a user and
// manages household membership.
package household

import (
	"errors"
	"strings"

	"github.com/example/pantrysync/internal/models"
	"github.com/example/pantrysync/pkg/database"
)

var (
	ErrNotMember          = errors.New("user is not a member of this household")
	ErrNotAdmin           = errors.New("only an admin may remove other members")
	ErrMemberNotFound     = errors.New("member not found")
	ErrAlreadyMember      = errors.New("user is already a member or invited")
	ErrNoHousehold        = errors.New("household not found")
	ErrAlreadyInHousehold = errors.New("user already belongs to a household")
)

func sameEmail(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// matches reports whether m refers to u, by ID or by email.
func matches(m models.Member, u *models.User) bool {
	return (m.ID != "" && m.ID == u.ID) || sameEmail(m.Email, u.Email)
}

// IsMember reports whether u belongs to h: either u's ID is in h.MemberIDs or
// an entry of h.Members matches u by ID or email. A nil household or user is
// never a member.
func IsMember(h *models.Household, u *models.User) bool {
	if h == nil || u == nil {
		return false
	}
	if u.ID != "" {
		for _, id := range h.MemberIDs {
			if id == u.ID {
				return true
			}
		}
	}
	for _, m := range h.Members {
		if matches(m, u) {
			return true
		}
	}
	return false
}

// Scope is the storage namespace for a user's collections.
type Scope struct {
	Household bool
	// ID is the household ID for household scopes, the user ID otherwise.
	ID string
}

// Resolve picks the scope for u: the household when u is a member of a
// persisted household, u's private namespace otherwise. A nil user resolves
// to the zero Scope.
func Resolve(h *models.Household, u *models.User) Scope {
	if u == nil || u.ID == "" {
		return Scope{}
	}
	if h != nil && h.ID != "" && IsMember(h, u) {
		return Scope{Household: true, ID: h.ID}
	}
	return Scope{ID: u.ID}
}

// IsZero reports whether the scope addresses nothing.
func (s Scope) IsZero() bool { return s.ID == "" }

// Root is the document path that owns the scope's subcollections.
func (s Scope) Root() string {
	if s.Household {
		return database.Join(models.CollectionHouseholds, s.ID)
	}
	return database.Join(models.CollectionUsers, s.ID)
}

// CollectionPath is the path of a subcollection within the scope.
func (s Scope) CollectionPath(collection string) string {
	return database.Join(s.Root(), collection)
}

func (s Scope) String() string {
	if s.IsZero() {
		return "none"
	}
	return s.Root()
}

// Remove returns a copy of h without the member identified by key, which is
// matched against member IDs and emails. Anyone may remove themselves. Only a
// member whose entry (matched by email) has the Admin role may remove others.
func Remove(h *models.Household, actor models.User, key string) (*models.Household, error) {
	if h == nil {
		return nil, ErrNoHousehold
	}
	if !IsMember(h, &actor) {
		return nil, ErrNotMember
	}
	target := -1
	for i, m := range h.Members {
		if (m.ID != "" && m.ID == key) || sameEmail(m.Email, key) {
			target = i
			break
		}
	}
	if target < 0 {
		return nil, ErrMemberNotFound
	}
	if !matches(h.Members[target], &actor) && !isAdmin(h, actor) {
		return nil, ErrNotAdmin
	}

	removed := h.Members[target]
	out := *h
	out.Members = make([]models.Member, 0, len(h.Members)-1)
	out.Members = append(out.Members, h.Members[:target]...)
	out.Members = append(out.Members, h.Members[target+1:]...)
	out.MemberIDs = make([]string, 0, len(h.MemberIDs))
	for _, id := range h.MemberIDs {
		if id != removed.ID || removed.ID == "" {
			out.MemberIDs = append(out.MemberIDs, id)
		}
	}
	return &out, nil
}

// isAdmin reports whether the actor's entry, matched by email, may remove
// other members. Owners have every admin right.
func isAdmin(h *models.Household, actor models.User) bool {
	for _, m := range h.Members {
		if sameEmail(m.Email, actor.Email) {
			return m.Role == models.RoleAdmin || m.Role == models.RoleOwner
		}
	}
	return false
}

// Empty reports whether no member IDs remain, which orphans the household's
// subcollections.
func Empty(h *models.Household) bool {
	if len(h.MemberIDs) > 0 {
		return false
	}
	for _, m := range h.Members {
		if m.ID != "" {
			return false
		}
	}
	return true
}
