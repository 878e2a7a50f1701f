package main

import (
	"database/sql"
	"log"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	auditDB      *sql.DB
	auditDBOnce  sync.Once
	auditEnabled bool = true // Can be set to false to disable all logging
)

// DisableAudit turns off all audit logging
func DisableAudit() {
	auditEnabled = false
	log.Println("[AUDIT] Audit logging DISABLED")
}

// CompletionAuditEntry is one completed exchange: the prompt that went up,
// which candidate answered (or the terminal error), and token counts.
type CompletionAuditEntry struct {
	ID           int64
	RequestID    string
	Timestamp    time.Time
	Model        string
	Attempts     int
	Prompt       string
	Output       string
	InputTokens  int
	OutputTokens int
	Error        string
}

// InitAuditDB initializes the SQLite database for completion audit logging
func InitAuditDB() error {
	// Check if audit is enabled via environment variable (default: enabled)
	if os.Getenv("ENABLE_LLM_AUDIT") == "false" {
		DisableAudit()
		return nil
	}

	var err error
	auditDBOnce.Do(func() {
		auditDB, err = sql.Open("sqlite3", "completion_audit.db")
		if err != nil {
			log.Printf("Failed to open audit database: %v", err)
			return
		}

		schema := `
		CREATE TABLE IF NOT EXISTS completion_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			model TEXT,
			attempts INTEGER,
			prompt TEXT NOT NULL,
			output TEXT NOT NULL,
			input_tokens INTEGER,
			output_tokens INTEGER,
			error TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_request_id ON completion_audit(request_id);
		CREATE INDEX IF NOT EXISTS idx_timestamp ON completion_audit(timestamp);
		CREATE INDEX IF NOT EXISTS idx_model ON completion_audit(model);
		`

		_, err = auditDB.Exec(schema)
		if err != nil {
			log.Printf("Failed to create audit schema: %v", err)
			return
		}

		log.Println("[AUDIT] Completion audit database initialized")
	})

	return err
}

// LogCompletion records one finished exchange to the audit database.
// model is empty and err non-nil when the whole pass failed.
func LogCompletion(requestID, model string, attempts int, prompt, output string, err error) {
	// Skip if audit is disabled
	if !auditEnabled {
		return
	}

	if auditDB == nil {
		// Silently skip if DB not initialized
		return
	}

	errorStr := ""
	if err != nil {
		errorStr = err.Error()
	}

	query := `
		INSERT INTO completion_audit (
			request_id, model, attempts, prompt, output, input_tokens, output_tokens, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, dbErr := auditDB.Exec(query,
		requestID, model, attempts, prompt, output,
		countTokens(prompt), countTokens(output), errorStr)

	if dbErr != nil {
		log.Printf("[AUDIT] Failed to log completion: %v", dbErr)
		return
	}

	id, _ := result.LastInsertId()
	log.Printf("[AUDIT] Logged completion ID=%d, ReqID=%s, Model=%s, Attempts=%d",
		id, requestID, model, attempts)
}

// RecentCompletions retrieves the latest audit rows, newest first.
func RecentCompletions(limit int) ([]CompletionAuditEntry, error) {
	if auditDB == nil {
		return nil, sql.ErrConnDone
	}

	query := `
		SELECT id, request_id, timestamp, model, attempts,
		       prompt, output, input_tokens, output_tokens, error
		FROM completion_audit
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := auditDB.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CompletionAuditEntry
	for rows.Next() {
		var entry CompletionAuditEntry
		err := rows.Scan(
			&entry.ID, &entry.RequestID, &entry.Timestamp,
			&entry.Model, &entry.Attempts,
			&entry.Prompt, &entry.Output,
			&entry.InputTokens, &entry.OutputTokens, &entry.Error,
		)
		if err != nil {
			log.Printf("[AUDIT] Error scanning row: %v", err)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
