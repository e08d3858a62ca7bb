// Package db persists registered user accounts. Room and file state is
// deliberately NOT stored here; it is volatile and lives for the process
// lifetime only.
package db

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

func New(dbPath string) (*Database, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Printf("Database initialized at %s", dbPath)
	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	`

	_, err := db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// CreateUser inserts a new account and returns it with the assigned id
func (d *Database) CreateUser(username, email, passwordHash string) (*User, error) {
	result, err := d.db.Exec(
		"INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)",
		username, email, passwordHash,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return d.GetUserByID(id)
}

func (d *Database) GetUserByID(id int64) (*User, error) {
	return d.scanUser(d.db.QueryRow(
		"SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?", id,
	))
}

func (d *Database) GetUserByEmail(email string) (*User, error) {
	return d.scanUser(d.db.QueryRow(
		"SELECT id, username, email, password_hash, created_at FROM users WHERE email = ?", email,
	))
}

// GetUserByUsernameOrEmail resolves a login identifier: users may sign in
// with either field. Returns nil without error when no account matches.
func (d *Database) GetUserByUsernameOrEmail(identifier string) (*User, error) {
	return d.scanUser(d.db.QueryRow(
		"SELECT id, username, email, password_hash, created_at FROM users WHERE username = ? OR email = ?",
		identifier, identifier,
	))
}

func (d *Database) CountUsers() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

func (d *Database) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
