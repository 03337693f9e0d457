package models

// Participant is the identity attached to a connection.
type Participant struct {
	ID            int    `json:"id"`
	Username      string `json:"username"`
	AvatarURL     string `json:"profile_image"`
	Authenticated bool   `json:"-"`
}

// Anonymous is the participant of a connection without credentials.
func Anonymous() Participant {
	return Participant{}
}

// UserProfile is the collaborator's view of a user.
type UserProfile struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"profile_image"`
}

// Participant converts the profile into an authenticated participant.
func (p UserProfile) Participant() Participant {
	return Participant{ID: p.ID, Username: p.Username, AvatarURL: p.AvatarURL, Authenticated: true}
}
