package domain

import "fmt"

// ParticipantID identifies one connected call endpoint.
type ParticipantID struct {
	Username string `json:"username"`
	ClientID string `json:"client_id"`
}

func (p ParticipantID) IsZero() bool {
	return p.Username == "" && p.ClientID == ""
}

// Equal reports whether both username and client id match exactly.
func (p ParticipantID) Equal(other ParticipantID) bool {
	return p.Username == other.Username && p.ClientID == other.ClientID
}

func (p ParticipantID) String() string {
	return fmt.Sprintf("%s@%s", p.Username, p.ClientID)
}

// Ptr returns a copy of p that callers may keep.
func (p ParticipantID) Ptr() *ParticipantID {
	return &p
}
