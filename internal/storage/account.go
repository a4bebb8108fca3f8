package storage

import (
	"context"
	"database/sql"
	"time"
)

// Account is a platform user. Password and token issuance live in the
// identity service; this table only resolves ownership and role.
type Account struct {
	ID        int64
	Username  string
	Email     string
	Role      string
	CreatedAt time.Time
}

// CreateAccount inserts an account with an optional API token.
func (d *DB) CreateAccount(ctx context.Context, username, email, role, token string) (int64, error) {
	var apiToken any
	if token != "" {
		apiToken = token
	}
	res, err := d.db.ExecContext(ctx,
		"INSERT INTO accounts (username, email, role, api_token) VALUES (?, ?, ?, ?)",
		username, email, role, apiToken)
	if err != nil {
		return 0, mapConstraintErr(err)
	}
	return res.LastInsertId()
}

// GetAccount fetches an account by id.
func (d *DB) GetAccount(ctx context.Context, id int64) (*Account, error) {
	return d.scanAccount(d.db.QueryRowContext(ctx,
		"SELECT id, username, email, role, created_at FROM accounts WHERE id = ?", id))
}

// GetAccountByToken resolves an API token to its account.
func (d *DB) GetAccountByToken(ctx context.Context, token string) (*Account, error) {
	return d.scanAccount(d.db.QueryRowContext(ctx,
		"SELECT id, username, email, role, created_at FROM accounts WHERE api_token = ?", token))
}

func (d *DB) scanAccount(row *sql.Row) (*Account, error) {
	a := &Account{}
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.Role, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
