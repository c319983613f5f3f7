package entity

// Character is the display identity a session talks to (table `characters`).
type Character struct {
	ID        string  `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	AvatarURL *string `db:"avatar_url" json:"avatar_url"`
	Persona   string  `db:"persona" json:"persona,omitempty"`
}
