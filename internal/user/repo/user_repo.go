package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

const userColumns = `id, email, username, phone_number, first_name, last_name, gender, age, password,
	avatar_url, is_verified, is_email_verified, is_phone_verified, verified_at, is_active,
	last_login, password_changed_at, created_at, updated_at`

// updatable lists the columns UpdateProfile may write.
var updatable = map[string]bool{
	"email": true, "username": true, "phone_number": true, "first_name": true, "last_name": true,
	"gender": true, "age": true, "password": true, "password_changed_at": true, "avatar_url": true,
	"is_verified": true, "is_email_verified": true, "is_phone_verified": true, "verified_at": true,
	"is_active": true, "last_login": true,
}

var ErrNoFields = errors.New("no updatable fields")

// UserRepo provides data access for the user_profiles table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new profile, assigning a UUID when u.ID is empty. Returns new ID.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) (string, error) {
	if u.ID == "" {
		u.ID = utilities.NewUUID()
	}
	q := `INSERT INTO user_profiles (id, email, username, phone_number, first_name, last_name, gender, age, password, is_verified)
		  VALUES (:id, :email, :username, :phone_number, :first_name, :last_name, :gender, :age, :password, :is_verified) RETURNING id`
	stmt, err := r.db.NamedQueryContext(ctx, q, u)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	if stmt.Next() {
		if err := stmt.Scan(&u.ID); err != nil {
			return "", err
		}
		return u.ID, nil
	}
	if err := stmt.Err(); err != nil {
		return "", err
	}
	return "", errors.New("no id returned")
}

// GetByID fetches a full profile or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM user_profiles WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByIdentifier matches email (case-insensitive due to citext), username or phone number.
func (r *UserRepo) FindByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM user_profiles
		WHERE email=$1 OR username=$1 OR phone_number=$1 LIMIT 1`
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, identifier); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByPhoneSuffix returns the first profile whose phone number ends with
// either suffix. Used when stored numbers carry a different country prefix.
func (r *UserRepo) FindByPhoneSuffix(ctx context.Context, long, short string) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM user_profiles
		WHERE phone_number LIKE '%' || $1 OR phone_number LIKE '%' || $2 LIMIT 1`
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, long, short); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile writes the given columns and returns the updated row.
// Unknown columns are rejected.
func (r *UserRepo) UpdateProfile(ctx context.Context, id string, fields map[string]any) (*entity.User, error) {
	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	cols := make([]string, 0, len(fields))
	for k := range fields {
		if !updatable[k] {
			return nil, fmt.Errorf("column %q is not updatable", k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s=$%d", c, i+1))
		args = append(args, fields[c])
	}
	sets = append(sets, "updated_at=NOW()")
	args = append(args, id)

	q := fmt.Sprintf(`UPDATE user_profiles SET %s WHERE id=$%d RETURNING %s`, strings.Join(sets, ", "), len(args), userColumns)
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, args...); err != nil {
		return nil, err
	}
	return &u, nil
}
