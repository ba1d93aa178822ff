package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"bix-reward-engine/models"

	"gorm.io/gorm"
)

const (
	quizSessionTTL   = 30 * time.Minute
	quizPoolLimit    = 200
	perfectBonusRate = 0.5
	perfectBonusXP   = 500
	xpPerCorrect     = 10
)

func validQuestionCount(n int) bool {
	switch n {
	case 5, 10, 20, 50:
		return true
	}
	return false
}

type QuizService struct {
	DB        *gorm.DB
	Ledger    *LedgerService
	Referrals *ReferralService
}

func NewQuizService(db *gorm.DB, ledger *LedgerService, referrals *ReferralService) *QuizService {
	return &QuizService{DB: db, Ledger: ledger, Referrals: referrals}
}

// QuestionView is a question as shown to the player: no correct option.
type QuestionView struct {
	ID           string          `json:"id"`
	Question     string          `json:"question"`
	Options      json.RawMessage `json:"options"`
	RewardAmount int64           `json:"rewardAmount"`
	Difficulty   string          `json:"difficulty"`
}

// QuizStartResult returns the session and its frozen question sequence.
type QuizStartResult struct {
	SessionID      string         `json:"sessionId"`
	Questions      []QuestionView `json:"questions"`
	TotalQuestions int            `json:"totalQuestions"`
}

// Start opens a quiz session: one active session per user, stale sessions
// silently expired, question order fixed at creation.
func (s *QuizService) Start(userID string, questionCount int, difficulty string) (*QuizStartResult, error) {
	if questionCount == 0 {
		questionCount = 10
	}
	if difficulty == "" {
		difficulty = string(models.DifficultyEasy)
	}
	if !validQuestionCount(questionCount) {
		return nil, errBadRequest("Invalid question count. Choose 5, 10, 20, or 50")
	}

	var active models.QuizSession
	err := s.DB.Where("user_id = ? AND status = ?", userID, models.QuizActive).First(&active).Error
	if err == nil {
		if time.Since(active.StartedAt) > quizSessionTTL {
			if err := s.DB.Model(&models.QuizSession{}).
				Where("id = ?", active.ID).
				Update("status", models.QuizExpired).Error; err != nil {
				return nil, err
			}
		} else {
			return nil, errBadRequest("You already have an active quiz session")
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var pool []models.QuizQuestion
	if err := s.DB.Where("difficulty = ?", difficulty).
		Limit(quizPoolLimit).
		Find(&pool).Error; err != nil {
		return nil, err
	}

	actualDifficulty := difficulty
	if len(pool) < questionCount {
		// Thin tier: fall back to a mixed pool across all difficulties
		if err := s.DB.Limit(quizPoolLimit).Find(&pool).Error; err != nil {
			return nil, err
		}
		actualDifficulty = string(models.DifficultyMixed)
		if len(pool) < questionCount {
			return nil, errBadRequest("Not enough questions available")
		}
	}

	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	selected := pool[:questionCount]

	questionIDs := make([]string, questionCount)
	views := make([]QuestionView, questionCount)
	for i, q := range selected {
		questionIDs[i] = q.ID
		views[i] = QuestionView{
			ID:           q.ID,
			Question:     q.Question,
			Options:      json.RawMessage(q.Options),
			RewardAmount: q.RewardAmount,
			Difficulty:   string(q.Difficulty),
		}
	}

	idsJSON, _ := json.Marshal(questionIDs)
	session := models.QuizSession{
		UserID:        userID,
		QuestionCount: questionCount,
		Difficulty:    models.QuizDifficulty(actualDifficulty),
		QuestionIDs:   string(idsJSON),
		AnsweredIDs:   "[]",
		Status:        models.QuizActive,
		StartedAt:     time.Now().UTC(),
	}
	if err := s.DB.Create(&session).Error; err != nil {
		return nil, err
	}

	return &QuizStartResult{
		SessionID:      session.ID,
		Questions:      views,
		TotalQuestions: questionCount,
	}, nil
}

// AnswerResult always discloses the correct option so the UI can reveal it.
type AnswerResult struct {
	IsCorrect      bool  `json:"isCorrect"`
	CorrectOption  int   `json:"correctOption"`
	Earned         int64 `json:"earned"`
	SessionScore   int   `json:"sessionScore"`
	SessionEarned  int64 `json:"sessionEarned"`
	AnsweredCount  int   `json:"answeredCount"`
	TotalQuestions int   `json:"totalQuestions"`
}

// Answer records one answer. A sub-second reported answer time is rejected as
// suspicious rather than silently accepted.
func (s *QuizService) Answer(userID, sessionID, questionID string, selectedOption int, timeTaken *float64) (*AnswerResult, error) {
	if sessionID == "" || questionID == "" {
		return nil, errBadRequest("Missing required fields")
	}
	if timeTaken != nil && *timeTaken < 1 {
		return nil, errBadRequest("Answer too fast - suspicious activity")
	}

	var session models.QuizSession
	if err := s.DB.Where("id = ? AND user_id = ? AND status = ?", sessionID, userID, models.QuizActive).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadRequest("Invalid or expired session")
		}
		return nil, err
	}

	var questionIDs, answeredIDs []string
	if err := json.Unmarshal([]byte(session.QuestionIDs), &questionIDs); err != nil {
		return nil, errInternal("Corrupt session state")
	}
	if session.AnsweredIDs != "" {
		if err := json.Unmarshal([]byte(session.AnsweredIDs), &answeredIDs); err != nil {
			return nil, errInternal("Corrupt session state")
		}
	}

	if !contains(questionIDs, questionID) {
		return nil, errBadRequest("Question not in this session")
	}
	if contains(answeredIDs, questionID) {
		return nil, errBadRequest("Question already answered")
	}

	var question models.QuizQuestion
	if err := s.DB.Where("id = ?", questionID).First(&question).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadRequest("Question not found")
		}
		return nil, err
	}

	isCorrect := selectedOption == question.CorrectOption
	answeredIDs = append(answeredIDs, questionID)
	newScore := session.Score
	var earned int64
	if isCorrect {
		newScore++
		earned = question.RewardAmount
	}
	newTotal := session.TotalEarned + earned

	answeredJSON, _ := json.Marshal(answeredIDs)
	if err := s.DB.Model(&models.QuizSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"answered_ids": string(answeredJSON),
			"score":        newScore,
			"total_earned": newTotal,
		}).Error; err != nil {
		return nil, err
	}

	return &AnswerResult{
		IsCorrect:      isCorrect,
		CorrectOption:  question.CorrectOption,
		Earned:         earned,
		SessionScore:   newScore,
		SessionEarned:  newTotal,
		AnsweredCount:  len(answeredIDs),
		TotalQuestions: len(questionIDs),
	}, nil
}

// quizBonus grants 50% on top of the accumulated earnings for a perfect run.
func quizBonus(score, total int, earned int64) int64 {
	if score != total {
		return 0
	}
	return int64(math.Round(float64(earned) * perfectBonusRate))
}

func quizXP(score int, perfect bool) int64 {
	xp := int64(score * xpPerCorrect)
	if perfect {
		xp += perfectBonusXP
	}
	return xp
}

// QuizFinishResult reports the settled session.
type QuizFinishResult struct {
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	TotalReward    int64  `json:"totalReward"`
	BonusReward    int64  `json:"bonusReward"`
	XP             int64  `json:"xp"`
	NewBalance     int64  `json:"newBalance"`
	NewLevel       int    `json:"newLevel"`
	LeveledUp      bool   `json:"leveledUp"`
	IsPerfect      bool   `json:"isPerfect"`
	Message        string `json:"message"`
}

// Finish settles an active session once every question has been answered.
func (s *QuizService) Finish(userID, sessionID string) (*QuizFinishResult, error) {
	if sessionID == "" {
		return nil, errBadRequest("Missing sessionId")
	}

	var session models.QuizSession
	if err := s.DB.Where("id = ? AND user_id = ? AND status = ?", sessionID, userID, models.QuizActive).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadRequest("Invalid or expired session")
		}
		return nil, err
	}

	var questionIDs, answeredIDs []string
	if err := json.Unmarshal([]byte(session.QuestionIDs), &questionIDs); err != nil {
		return nil, errInternal("Corrupt session state")
	}
	if session.AnsweredIDs != "" {
		if err := json.Unmarshal([]byte(session.AnsweredIDs), &answeredIDs); err != nil {
			return nil, errInternal("Corrupt session state")
		}
	}

	if len(answeredIDs) < len(questionIDs) {
		return nil, errBadRequest(fmt.Sprintf("Answer all questions first (%d/%d)", len(answeredIDs), len(questionIDs)))
	}

	perfect := session.Score == len(questionIDs)
	bonus := quizBonus(session.Score, len(questionIDs), session.TotalEarned)
	totalReward := session.TotalEarned + bonus
	xp := quizXP(session.Score, perfect)

	now := time.Now().UTC()
	if err := s.DB.Model(&models.QuizSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":       models.QuizCompleted,
			"completed_at": now,
			"total_earned": totalReward,
		}).Error; err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Quiz completed: %d/%d correct", session.Score, len(questionIDs))
	if perfect {
		desc += " (PERFECT!)"
	}
	credited, err := s.Ledger.ApplyReward(userID,
		Delta{Balance: totalReward, Earned: totalReward, XP: xp},
		Audit{
			Category:    "quiz",
			Description: desc,
			SourceID:    sessionID,
			SourceType:  "quiz_session",
		})
	if err != nil {
		return nil, err
	}

	s.Referrals.PropagateCommission(userID, totalReward, sessionID)

	return &QuizFinishResult{
		Score:          session.Score,
		TotalQuestions: len(questionIDs),
		TotalReward:    totalReward,
		BonusReward:    bonus,
		XP:             xp,
		NewBalance:     credited.Balance,
		NewLevel:       credited.Level,
		LeveledUp:      credited.LeveledUp,
		IsPerfect:      perfect,
		Message:        fmt.Sprintf("Quiz complete! %d/%d correct. +%d BIX!", session.Score, len(questionIDs), totalReward),
	}, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
