package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"cvtailor/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database configured for the given driver type.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS tailor_sessions (
				id TEXT PRIMARY KEY,
				original_filename TEXT NOT NULL,
				upload_path TEXT NOT NULL,
				output_path TEXT NOT NULL,
				job_description TEXT NOT NULL,
				original_text TEXT NOT NULL,
				modified_text TEXT NOT NULL,
				match_score TEXT NOT NULL,
				changes_summary TEXT NOT NULL,
				model_used TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'ready',
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tailor_sessions_expiry ON tailor_sessions(expires_at)`,
			`CREATE TABLE IF NOT EXISTS download_tokens (
				token TEXT PRIMARY KEY,
				session_id TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				FOREIGN KEY(session_id) REFERENCES tailor_sessions(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_download_tokens_session ON download_tokens(session_id)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS tailor_sessions (
				id VARCHAR(64) NOT NULL,
				original_filename VARCHAR(255) NOT NULL,
				upload_path TEXT NOT NULL,
				output_path TEXT NOT NULL,
				job_description MEDIUMTEXT NOT NULL,
				original_text MEDIUMTEXT NOT NULL,
				modified_text MEDIUMTEXT NOT NULL,
				match_score VARCHAR(16) NOT NULL,
				changes_summary MEDIUMTEXT NOT NULL,
				model_used VARCHAR(128) NOT NULL,
				status VARCHAR(32) NOT NULL DEFAULT 'ready',
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_tailor_sessions_expiry (expires_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS download_tokens (
				token VARCHAR(128) NOT NULL,
				session_id VARCHAR(64) NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				PRIMARY KEY (token),
				INDEX idx_download_tokens_session (session_id),
				CONSTRAINT fk_download_tokens_session FOREIGN KEY (session_id) REFERENCES tailor_sessions(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
