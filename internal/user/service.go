package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-chat-go/internal/user/repo"
)

// PasswordHasher defines minimal hashing interface.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// MinPasswordLength applies to password resets.
const MinPasswordLength = 8

// allowedUpdates are the profile fields a user may change on themselves.
var allowedUpdates = []string{"first_name", "last_name", "email", "phone_number", "gender", "age", "username"}

var (
	ErrMissingFields     = errors.New("missing required fields")
	ErrUserExists        = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrBadCredentials    = errors.New("invalid credentials")
	ErrDisabled          = errors.New("user disabled")
	ErrPasswordRequired  = errors.New("password required")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrWeakPassword      = errors.New("password too short")
	ErrInvalidField      = errors.New("invalid field value")
)

// UserService orchestrates account lifecycle flows.
type UserService struct {
	repo   *userrepo.UserRepo
	hasher PasswordHasher
	now    func() time.Time
}

func NewUserService(r *userrepo.UserRepo, hasher PasswordHasher) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &UserService{repo: r, hasher: hasher, now: time.Now}
}

// SignupInput is the signup payload.
type SignupInput struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Username    string  `json:"username"`
	PhoneNumber *string `json:"phone_number"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Gender      *string `json:"gender"`
	Age         *int    `json:"age"`
}

// find wraps FindByIdentifier and turns sql.ErrNoRows into (nil, nil).
func (s *UserService) find(ctx context.Context, identifier string) (*entity.User, error) {
	u, err := s.repo.FindByIdentifier(ctx, identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// FindByIdentifier returns the account matching email, username or phone, or nil.
func (s *UserService) FindByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	return s.find(ctx, identifier)
}

// FindByPhoneSuffix matches on the trailing digits of the stored number, or returns nil.
func (s *UserService) FindByPhoneSuffix(ctx context.Context, long, short string) (*entity.User, error) {
	u, err := s.repo.FindByPhoneSuffix(ctx, long, short)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// Signup creates an unverified account. Email, username and phone must all be unused.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*entity.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if in.Email == "" || in.Password == "" || in.Username == "" || in.FirstName == "" || in.LastName == "" {
		return nil, ErrMissingFields
	}
	idents := []string{in.Email, in.Username}
	if in.PhoneNumber != nil && *in.PhoneNumber != "" {
		idents = append(idents, *in.PhoneNumber)
	} else {
		in.PhoneNumber = nil
	}
	for _, ident := range idents {
		existing, err := s.find(ctx, ident)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrUserExists
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		Email:       in.Email,
		Username:    in.Username,
		PhoneNumber: in.PhoneNumber,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Gender:      in.Gender,
		Age:         in.Age,
		Password:    &hash,
		IsVerified:  false,
	}
	id, err := s.repo.Create(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.repo.GetByID(ctx, id)
}

// Login checks the password of the account behind identifier and records the login.
func (s *UserService) Login(ctx context.Context, identifier, password string) (*entity.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrMissingFields
	}
	u, err := s.find(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Password == nil || *u.Password == "" {
		return nil, ErrBadCredentials
	}
	if !u.IsActive {
		return nil, ErrDisabled
	}
	if !s.hasher.Verify(*u.Password, password) {
		return nil, ErrBadCredentials
	}
	return s.repo.UpdateProfile(ctx, u.ID, map[string]any{"last_login": s.now().UTC()})
}

// Get returns the account by id.
func (s *UserService) Get(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// GetByID satisfies auth.UserLoader; missing rows surface as sql.ErrNoRows.
func (s *UserService) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateMe applies the allowed subset of body. A password in body is re-hashed.
func (s *UserService) UpdateMe(ctx context.Context, id string, body map[string]any) (*entity.User, error) {
	fields := map[string]any{}
	for _, k := range allowedUpdates {
		v, ok := body[k]
		if !ok {
			continue
		}
		nv, err := normalizeField(k, v)
		if err != nil {
			return nil, err
		}
		fields[k] = nv
	}
	if pw, ok := body["password"].(string); ok && pw != "" {
		hash, err := s.hasher.Hash(pw)
		if err != nil {
			return nil, err
		}
		fields["password"] = hash
		fields["password_changed_at"] = s.now().UTC()
	}
	if len(fields) == 0 {
		return s.Get(ctx, id)
	}
	u, err := s.repo.UpdateProfile(ctx, id, fields)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func normalizeField(k string, v any) (any, error) {
	if v == nil {
		switch k {
		case "phone_number", "gender", "age":
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s cannot be empty", ErrInvalidField, k)
	}
	if k == "age" {
		f, ok := v.(float64)
		if !ok || f < 0 || f != float64(int(f)) {
			return nil, fmt.Errorf("%w: age", ErrInvalidField)
		}
		return int(f), nil
	}
	str, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, k)
	}
	str = strings.TrimSpace(str)
	if k == "email" {
		str = strings.ToLower(str)
	}
	return str, nil
}

// Deactivate closes the account after confirming the password. Data is kept.
func (s *UserService) Deactivate(ctx context.Context, id, password string) (*entity.User, error) {
	if password == "" {
		return nil, ErrPasswordRequired
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Password == nil {
		return nil, ErrUserNotFound
	}
	if !s.hasher.Verify(*u.Password, password) {
		return nil, ErrIncorrectPassword
	}
	return s.repo.UpdateProfile(ctx, id, map[string]any{"is_active": false})
}

// SetPassword replaces the password and stamps password_changed_at, which
// invalidates tokens issued before now.
func (s *UserService) SetPassword(ctx context.Context, id, newPassword string) (*entity.User, error) {
	if len(newPassword) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	return s.repo.UpdateProfile(ctx, id, map[string]any{"password": hash, "password_changed_at": s.now().UTC()})
}

// MarkPhoneVerified sets the phone channel flag.
func (s *UserService) MarkPhoneVerified(ctx context.Context, id string) (*entity.User, error) {
	return s.repo.UpdateProfile(ctx, id, map[string]any{"is_phone_verified": true})
}

// MarkVerified sets the overall verification flag.
func (s *UserService) MarkVerified(ctx context.Context, id string) (*entity.User, error) {
	return s.repo.UpdateProfile(ctx, id, map[string]any{"is_verified": true, "verified_at": s.now().UTC()})
}

// SetAvatarURL stores or clears (nil) the avatar URL.
func (s *UserService) SetAvatarURL(ctx context.Context, id string, url *string) (*entity.User, error) {
	return s.repo.UpdateProfile(ctx, id, map[string]any{"avatar_url": url})
}
