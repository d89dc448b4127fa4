package store

import "time"

type Modality string

const (
	ModalityText  Modality = "TEXT"
	ModalityVoice Modality = "VOICE"
	ModalityImage Modality = "IMAGE"
)

// Stage is the journal pipeline position an entry has reached. Transitions
// are monotonic; an entry left mid-pipeline by a crash stays readable at its
// last committed stage.
type Stage string

const (
	StageCreated     Stage = "CREATED"
	StageCategorized Stage = "CATEGORIZED"
	StageAnalyzed    Stage = "ANALYZED"
	StageVisualized  Stage = "VISUALIZED"
	StageDelivered   Stage = "DELIVERED"
)

var stageRank = map[Stage]int{
	StageCreated:     1,
	StageCategorized: 2,
	StageAnalyzed:    3,
	StageVisualized:  4,
	StageDelivered:   5,
}

// Before reports whether s comes earlier than other in the pipeline order.
func (s Stage) Before(other Stage) bool {
	return stageRank[s] < stageRank[other]
}

type UserProfile struct {
	UserID           string    `json:"user_id"`
	DisplayName      string    `json:"display_name,omitempty"`
	PasswordHash     string    `json:"password_hash,omitempty"`
	DailyPromptOptIn bool      `json:"daily_prompt_opt_in"`
	LastPromptSent   string    `json:"last_prompt_sent,omitempty"` // YYYY-MM-DD
	CreatedAt        time.Time `json:"created_at"`
}

type UsageRecord struct {
	UserID         string `json:"user_id"`
	SessionCount   int64  `json:"session_count"`
	DailyCount     int64  `json:"daily_count"`
	DailyResetDate string `json:"daily_reset_date"` // YYYY-MM-DD
	TotalCount     int64  `json:"total_count"`
}

type JournalEntry struct {
	EntryID           string    `json:"entry_id"`
	UserID            string    `json:"user_id"`
	CreatedAt         time.Time `json:"created_at"`
	InputModality     Modality  `json:"input_modality"`
	RawText           string    `json:"raw_text"`
	WordCount         int       `json:"word_count"`
	Sentiment         string    `json:"sentiment,omitempty"`
	Topics            []string  `json:"topics,omitempty"`
	Categories        []string  `json:"categories,omitempty"`
	AnalysisText      string    `json:"analysis_text,omitempty"`
	VisualizationPath string    `json:"visualization_path,omitempty"`
	Stage             Stage     `json:"stage"`
}

// DailyPrompt is a writing prompt from the SQLite prompt bank.
type DailyPrompt struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Feedback struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
