package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/djarekg/tampa-taffy/pkg/api"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = stderrors.New("store: not found")

// ErrDuplicateEmail is returned by CreateUser when the email is taken.
var ErrDuplicateEmail = stderrors.New("store: email already registered")

var errRequiredFields = stderrors.New("store: email and password are required")

// DefaultSearchLimit caps SearchUsers when no limit is given.
const DefaultSearchLimit = 20

// Credential is the sign-in record for a user.
type Credential struct {
	UserID       string
	PasswordHash string
	Role         api.Role
}

// Matches reports whether password matches the stored hash.
func (c *Credential) Matches(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
}

// NewUser is the input to CreateUser.
type NewUser struct {
	FirstName string
	LastName  string
	Email     string
	Job       string
	Password  string
	Role      api.Role
}

// Store wraps the database handle.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the SQLite database at dsn and applies the
// schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := openDB("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	s := NewWithDB(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing handle without touching the schema.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name  TEXT NOT NULL,
			email      TEXT NOT NULL UNIQUE,
			job        TEXT NOT NULL DEFAULT '',
			is_active  INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			user_id  TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			password TEXT NOT NULL,
			role     TEXT NOT NULL DEFAULT 'USER'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_name ON users(last_name, first_name)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

const userColumns = `id, first_name, last_name, email, job, is_active, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*api.User, error) {
	var (
		u                api.User
		active           int64
		created, updated string
	)
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Job, &active, &created, &updated); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.IsActive = active != 0
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &u, nil
}

// ListUsers returns every user ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]api.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY last_name, first_name`)
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	defer rows.Close()

	users := []api.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list users: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// GetUser returns the user with id, or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id string) (*api.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// UserByEmail returns the user with email, or ErrNotFound. Emails compare
// case-insensitively.
func (s *Store) UserByEmail(ctx context.Context, email string) (*api.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower(?)`, strings.TrimSpace(email))
	return scanUser(row)
}

// CredentialByEmail returns the sign-in record for email, or ErrNotFound.
func (s *Store) CredentialByEmail(ctx context.Context, email string) (*Credential, error) {
	var c Credential
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT c.user_id, c.password, c.role
		   FROM credentials c JOIN users u ON u.id = c.user_id
		  WHERE lower(u.email) = lower(?)`, strings.TrimSpace(email)).
		Scan(&c.UserID, &c.PasswordHash, &role)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: credential: %w", err)
	}
	c.Role = api.Role(role)
	return &c, nil
}

// SearchUsers matches query against names, email and job title. Matching is
// a case-insensitive substring search.
func (s *Store) SearchUsers(ctx context.Context, query string, limit int) ([]api.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, first_name, last_name, email FROM users
		  WHERE lower(first_name || ' ' || last_name) LIKE ? ESCAPE '\'
		     OR lower(email) LIKE ? ESCAPE '\'
		     OR lower(job) LIKE ? ESCAPE '\'
		  ORDER BY last_name, first_name
		  LIMIT ?`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	results := []api.SearchResult{}
	for rows.Next() {
		var u api.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email); err != nil {
			return nil, fmt.Errorf("store: search: %w", err)
		}
		results = append(results, api.SearchResult{
			ID:       u.ID,
			Kind:     "user",
			Title:    u.FullName(),
			Subtitle: u.Email,
		})
	}
	return results, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// CreateUser inserts a user and its credential in one transaction.
func (s *Store) CreateUser(ctx context.Context, in NewUser) (*api.User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, errRequiredFields
	}
	role := in.Role
	if role == "" {
		role = api.RoleUser
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("store: hash password: %w", err)
	}

	now := s.now().UTC()
	u := &api.User{
		ID:        uuid.NewString(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     email,
		Job:       in.Job,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	stamp := now.Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		u.ID, u.FirstName, u.LastName, u.Email, u.Job, stamp, stamp)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("store: insert user: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO credentials (user_id, password, role) VALUES (?, ?, ?)`,
		u.ID, string(hash), string(role))
	if err != nil {
		return nil, fmt.Errorf("store: insert credential: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return u, nil
}

// SetActive updates a user's active flag and returns the updated row.
func (s *Store) SetActive(ctx context.Context, id string, active bool) (*api.User, error) {
	flag := 0
	if active {
		flag = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		flag, s.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return nil, fmt.Errorf("store: set active: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return s.GetUser(ctx, id)
}

// CountUsers returns the number of users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count users: %w", err)
	}
	return n, nil
}
