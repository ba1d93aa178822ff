package models

import "time"

type QuizDifficulty string

const (
	DifficultyEasy   QuizDifficulty = "easy"
	DifficultyMedium QuizDifficulty = "medium"
	DifficultyHard   QuizDifficulty = "hard"
	DifficultyMixed  QuizDifficulty = "mixed" // fallback pool when a tier runs dry
)

// QuizQuestion is part of the question bank. Options is a JSON array of
// strings; CorrectOption is the index into it.
type QuizQuestion struct {
	ID            string         `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Question      string         `gorm:"type:text;not null" json:"question"`
	Options       string         `gorm:"type:text;not null" json:"options"`
	CorrectOption int            `json:"correctOption"`
	RewardAmount  int64          `json:"rewardAmount" gorm:"default:5"`
	Difficulty    QuizDifficulty `gorm:"index;default:'easy'" json:"difficulty"`

	Timestamps
}

type QuizStatus string

const (
	QuizActive    QuizStatus = "active"
	QuizCompleted QuizStatus = "completed"
	QuizExpired   QuizStatus = "expired"
)

// QuizSession pins the question order at creation time. At most one active
// session per user; sessions older than 30 minutes are soft-expired.
type QuizSession struct {
	ID            string         `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID        string         `gorm:"index;not null" json:"userId"`
	QuestionCount int            `json:"questionCount"`
	Difficulty    QuizDifficulty `json:"difficulty"`
	QuestionIDs   string         `gorm:"type:text" json:"questionIds"` // JSON array, immutable
	AnsweredIDs   string         `gorm:"type:text" json:"answeredIds"` // JSON array, grows only
	Score         int            `json:"score" gorm:"default:0"`
	TotalEarned   int64          `json:"totalEarned" gorm:"default:0"`
	Status        QuizStatus     `gorm:"default:'active';index" json:"status"`
	StartedAt     time.Time      `json:"startedAt"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`

	Timestamps
}
