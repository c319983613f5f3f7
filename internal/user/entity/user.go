package entity

import "time"

// User is an account row in the `user_profiles` table. Password holds the
// bcrypt hash and is never serialised.
type User struct {
	ID                string     `db:"id" json:"id"`
	Email             string     `db:"email" json:"email"`
	Username          string     `db:"username" json:"username"`
	PhoneNumber       *string    `db:"phone_number" json:"phone_number"`
	FirstName         string     `db:"first_name" json:"first_name"`
	LastName          string     `db:"last_name" json:"last_name"`
	Gender            *string    `db:"gender" json:"gender"`
	Age               *int       `db:"age" json:"age"`
	Password          *string    `db:"password" json:"-"`
	AvatarURL         *string    `db:"avatar_url" json:"avatar_url"`
	IsVerified        bool       `db:"is_verified" json:"is_verified"`
	IsEmailVerified   bool       `db:"is_email_verified" json:"is_email_verified"`
	IsPhoneVerified   bool       `db:"is_phone_verified" json:"is_phone_verified"`
	VerifiedAt        *time.Time `db:"verified_at" json:"verified_at"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	LastLogin         *time.Time `db:"last_login" json:"last_login"`
	PasswordChangedAt *time.Time `db:"password_changed_at" json:"password_changed_at"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Phone returns the phone number or "".
func (u *User) Phone() string {
	if u.PhoneNumber == nil {
		return ""
	}
	return *u.PhoneNumber
}

// DisplayName is used in greetings; it falls back to "there".
func (u *User) DisplayName() string {
	if u.FirstName == "" {
		return "there"
	}
	return u.FirstName
}
