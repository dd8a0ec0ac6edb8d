package codec

import (
	"strings"

	"github.com/example/pantrysync/internal/models"
	"github.com/example/pantrysync/pkg/database"
)

// EncodeHousehold encodes a household document. memberIds is written from
// h.MemberIDs as is; callers keep it in sync with Members.
func EncodeHousehold(h models.Household) map[string]interface{} {
	members := make([]interface{}, 0, len(h.Members))
	for _, m := range h.Members {
		entry := map[string]interface{}{
			"id":     m.ID,
			"name":   m.Name,
			"email":  m.Email,
			"role":   string(m.Role),
			"status": string(m.Status),
		}
		if m.InvitedBy != "" {
			entry["invitedBy"] = m.InvitedBy
		}
		if m.InvitedAt != nil {
			entry["invitedAt"] = *m.InvitedAt
		}
		members = append(members, entry)
	}
	ids := h.MemberIDs
	if ids == nil {
		ids = []string{}
	}
	return map[string]interface{}{
		"name":      h.Name,
		"members":   members,
		"memberIds": toInterfaces(ids),
	}
}

// DecodeHousehold decodes a household document. Member entries that are not
// objects are skipped; a missing memberIds field decodes to nil so callers can
// tell it apart from an empty one.
func DecodeHousehold(doc database.Document) (*models.Household, error) {
	if doc.ID == "" {
		return nil, malformed(doc, "missing id")
	}
	h := &models.Household{ID: doc.ID, Name: str(doc.Data["name"])}
	raw, _ := doc.Data["members"].([]interface{})
	for _, e := range raw {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		member := models.Member{
			ID:        str(m["id"]),
			Name:      str(m["name"]),
			Email:     strings.TrimSpace(str(m["email"])),
			Role:      models.Role(str(m["role"])),
			Status:    models.MemberStatus(str(m["status"])),
			InvitedBy: str(m["invitedBy"]),
		}
		if member.Role == "" {
			member.Role = models.RoleMember
		}
		if member.Status == "" {
			member.Status = models.StatusActive
		}
		if ts := timestamp(m["invitedAt"]); !ts.IsZero() {
			member.InvitedAt = &ts
		}
		h.Members = append(h.Members, member)
	}
	if ids, ok := doc.Data["memberIds"]; ok {
		h.MemberIDs = stringList(ids)
	}
	return h, nil
}

// EncodeUser encodes a user profile document.
func EncodeUser(u models.User) map[string]interface{} {
	return map[string]interface{}{
		"displayName":     u.DisplayName,
		"email":           u.Email,
		"avatar":          u.Avatar,
		"provider":        u.Provider,
		"hasSeenTutorial": u.HasSeenTutorial,
	}
}

// DecodeUser decodes a user profile document.
func DecodeUser(doc database.Document) models.User {
	return models.User{
		ID:              doc.ID,
		DisplayName:     str(doc.Data["displayName"]),
		Email:           str(doc.Data["email"]),
		Avatar:          str(doc.Data["avatar"]),
		Provider:        str(doc.Data["provider"]),
		HasSeenTutorial: boolean(doc.Data["hasSeenTutorial"]),
	}
}

// EncodeRating encodes a recipe rating document.
func EncodeRating(r models.RecipeRating) map[string]interface{} {
	data := map[string]interface{}{
		"recipeTitle": r.RecipeTitle,
		"rating":      r.Rating,
		"comment":     r.Comment,
		"authorName":  r.AuthorName,
		"date":        r.Date,
	}
	if r.AuthorAvatar != "" {
		data["authorAvatar"] = r.AuthorAvatar
	}
	if r.Recipe != nil {
		data["recipe"] = EncodeSnapshot(*r.Recipe)
	}
	return data
}

// DecodeRating decodes a recipe rating document.
func DecodeRating(doc database.Document) models.RecipeRating {
	r := models.RecipeRating{
		ID:           doc.ID,
		RecipeTitle:  str(doc.Data["recipeTitle"]),
		Rating:       integer(doc.Data["rating"]),
		Comment:      str(doc.Data["comment"]),
		AuthorName:   str(doc.Data["authorName"]),
		AuthorAvatar: str(doc.Data["authorAvatar"]),
		Date:         timestamp(doc.Data["date"]),
	}
	if raw, ok := doc.Data["recipe"]; ok && raw != nil {
		s := DecodeSnapshot(raw)
		r.Recipe = &s
	}
	return r
}
