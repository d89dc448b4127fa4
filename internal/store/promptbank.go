package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// PromptBank is the SQLite-backed store for the daily prompt pool and user
// feedback. It is deliberately separate from the three canonical JSON
// collections: prompts and feedback are supplemental data with no pipeline
// state attached.
type PromptBank struct {
	db *sql.DB
}

func NewPromptBank(dataSourceName string) (*PromptBank, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open prompt bank: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping prompt bank: %w", err)
	}

	bank := &PromptBank{db: db}
	if err = bank.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize prompt bank schema: %w", err)
	}
	return bank, nil
}

func (b *PromptBank) Close() error {
	return b.db.Close()
}

func (b *PromptBank) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS daily_prompts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        prompt_text TEXT NOT NULL UNIQUE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS feedback (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        feedback_text TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := b.db.Exec(schema)
	return err
}

func (b *PromptBank) AddPrompt(text string) (int64, error) {
	res, err := b.db.Exec("INSERT OR IGNORE INTO daily_prompts (prompt_text) VALUES (?)", text)
	if err != nil {
		return 0, fmt.Errorf("failed to insert prompt: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// RandomPrompt returns a random prompt from the bank, or nil if the bank is
// empty.
func (b *PromptBank) RandomPrompt() (*DailyPrompt, error) {
	var p DailyPrompt
	err := b.db.QueryRow("SELECT id, prompt_text, created_at FROM daily_prompts ORDER BY RANDOM() LIMIT 1").
		Scan(&p.ID, &p.Text, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query random prompt: %w", err)
	}
	return &p, nil
}

func (b *PromptBank) AllPrompts() ([]DailyPrompt, error) {
	rows, err := b.db.Query("SELECT id, prompt_text, created_at FROM daily_prompts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query prompts: %w", err)
	}
	defer rows.Close()

	var prompts []DailyPrompt
	for rows.Next() {
		var p DailyPrompt
		if err := rows.Scan(&p.ID, &p.Text, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

func (b *PromptBank) AddFeedback(userID, text string) (*Feedback, error) {
	now := time.Now()
	res, err := b.db.Exec("INSERT INTO feedback (user_id, feedback_text, created_at) VALUES (?, ?, ?)", userID, text, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert feedback: %w", err)
	}
	id, _ := res.LastInsertId()
	return &Feedback{ID: id, UserID: userID, Text: text, CreatedAt: now}, nil
}
