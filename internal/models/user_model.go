package models

// User represents an authenticated account.
type User struct {
	ID              string `json:"id" firestore:"-"` // Firebase Auth UID, also the document ID
	DisplayName     string `json:"displayName" firestore:"displayName"`
	Email           string `json:"email" firestore:"email"`
	Avatar          string `json:"avatar,omitempty" firestore:"avatar,omitempty"`
	Provider        string `json:"provider,omitempty" firestore:"provider,omitempty"` // e.g. "google.com", "password"
	HasSeenTutorial bool   `json:"hasSeenTutorial" firestore:"hasSeenTutorial"`
}
