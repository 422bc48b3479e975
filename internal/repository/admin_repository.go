package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/donor-registry/internal/backend"
	"github.com/iliyamo/donor-registry/internal/model"
	"github.com/iliyamo/donor-registry/internal/utils"
)

// VerifyAdminRPC is the procedure that checks admin credentials.  It
// returns the matching admin as a one-element set, or an empty set.
const VerifyAdminRPC = "verify_admin"

// AdminRepo checks admin credentials.  Admins are not auth accounts; the
// backend keeps them in its own table and exposes only the check.
type AdminRepo struct {
	db *backend.Client
}

func NewAdminRepo(db *backend.Client) *AdminRepo {
	return &AdminRepo{db: db}
}

type verifyAdminArgs struct {
	Email    string `json:"p_email"`
	Password string `json:"p_password"`
}

// Verify returns the admin for email and password or ErrInvalidCredentials.
func (r *AdminRepo) Verify(ctx context.Context, email, password string) (*model.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	var out []model.Admin
	if err := r.db.RPC(ctx, VerifyAdminRPC, verifyAdminArgs{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 || out[0].ID == "" {
		return nil, ErrInvalidCredentials
	}
	a := out[0]
	if a.Role == "" {
		a.Role = "admin"
	}
	return &a, nil
}

// AdminProcedure implements verify_admin for the MySQL driver against the
// admins table with bcrypt hashes.
func AdminProcedure() backend.Procedure {
	return func(ctx context.Context, db *sql.DB, raw json.RawMessage) (any, error) {
		var args verifyAdminArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("verify_admin: %w", err)
		}
		const q = "SELECT id, email, name, role, password_hash FROM admins WHERE email = ?"
		var (
			a    model.Admin
			hash string
		)
		err := db.QueryRowContext(ctx, q, strings.ToLower(strings.TrimSpace(args.Email))).
			Scan(&a.ID, &a.Email, &a.Name, &a.Role, &hash)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if !utils.VerifyPassword(hash, args.Password) {
			return []model.Admin{}, nil
		}
		return []model.Admin{a}, nil
	}
}

// CreateAdmin inserts an admin with an already hashed password.  It talks
// to MySQL directly because admin rows are never written through the API.
func CreateAdmin(ctx context.Context, db *sql.DB, email, name, passwordHash string) (*model.Admin, error) {
	a := model.Admin{
		ID:    uuid.NewString(),
		Email: strings.ToLower(strings.TrimSpace(email)),
		Name:  strings.TrimSpace(name),
		Role:  "admin",
	}
	if a.Email == "" || a.Name == "" {
		return nil, errors.New("email and name are required")
	}
	const q = "INSERT INTO admins (id, email, name, role, password_hash) VALUES (?, ?, ?, ?, ?)"
	if _, err := db.ExecContext(ctx, q, a.ID, a.Email, a.Name, a.Role, passwordHash); err != nil {
		return nil, err
	}
	return &a, nil
}
