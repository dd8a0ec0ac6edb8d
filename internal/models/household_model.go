package models

import "time"

// Role of a household member.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
	RoleOwner  Role = "Owner"
)

// MemberStatus tells whether a member has joined.
type MemberStatus string

const (
	StatusActive  MemberStatus = "Active"
	StatusInvited MemberStatus = "Invited"
)

// Member is one entry of a household's member list. Invited members have no
// ID until they accept.
type Member struct {
	ID        string       `json:"id" firestore:"id"`
	Name      string       `json:"name" firestore:"name"`
	Email     string       `json:"email" firestore:"email"`
	Role      Role         `json:"role" firestore:"role"`
	Status    MemberStatus `json:"status" firestore:"status"`
	InvitedBy string       `json:"invitedBy,omitempty" firestore:"invitedBy,omitempty"`
	InvitedAt *time.Time   `json:"invitedAt,omitempty" firestore:"invitedAt,omitempty"`
}

// Household groups users that share pantry data. MemberIDs is denormalized
// from Members so households can be queried by membership.
type Household struct {
	ID        string   `json:"id,omitempty" firestore:"-"` // empty until first persisted
	Name      string   `json:"name" firestore:"name"`
	Members   []Member `json:"members" firestore:"members"`
	MemberIDs []string `json:"memberIds,omitempty" firestore:"memberIds,omitempty"`
}
