package services

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"bix-reward-engine/models"

	"gorm.io/gorm"
)

const (
	minBet      = 10
	maxBet      = 1000
	xpPerTenWon = 10 // 1 XP per 10 BIX of net winnings
)

// resolveMultiplier rolls the game-type-specific win table. Unknown game
// types never win.
func resolveMultiplier(gameType string, roll float64) (multiplier int64, message string) {
	switch gameType {
	case "roulette":
		if roll > 0.9 {
			return 5, "JACKPOT! 5x!"
		}
		if roll > 0.6 {
			return 2, "Nice! 2x win!"
		}
	case "coinflip":
		if roll > 0.5 {
			return 2, "You won!"
		}
	}
	return 0, "Better luck next time!"
}

func gameNet(bet, multiplier int64) int64 {
	return bet*multiplier - bet
}

type GameService struct {
	DB     *gorm.DB
	Ledger *LedgerService

	// roll is swappable for deterministic tests
	roll func() float64
}

func NewGameService(db *gorm.DB, ledger *LedgerService) *GameService {
	return &GameService{DB: db, Ledger: ledger, roll: rand.Float64}
}

// GameResult reports the settled wager.
type GameResult struct {
	Multiplier int64  `json:"multiplier"`
	NetChange  int64  `json:"netChange"`
	NewBalance int64  `json:"newBalance"`
	Message    string `json:"message"`
}

// Play settles a chance wager. Wins credit through the ledger (counting
// toward totalEarned and XP); losses debit balance only, so totalEarned stays
// a strictly-gross lifetime metric.
func (s *GameService) Play(userID, gameType string, betAmount int64) (*GameResult, error) {
	if gameType == "" || betAmount == 0 {
		return nil, errBadRequest("Missing game parameters")
	}
	if betAmount < minBet || betAmount > maxBet {
		return nil, errBadRequest("Bet must be between 10-1000 BIX")
	}
	if gameType != "roulette" && gameType != "coinflip" {
		return nil, errBadRequest("Unknown game type")
	}

	var profile models.UserProfile
	if err := s.DB.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadRequest("Profile not found")
		}
		return nil, err
	}
	if profile.Balance < betAmount {
		return nil, errBadRequest("Insufficient balance")
	}

	multiplier, message := resolveMultiplier(gameType, s.roll())
	net := gameNet(betAmount, multiplier)

	var newBalance int64
	if net > 0 {
		credited, err := s.Ledger.ApplyReward(userID,
			Delta{Balance: net, Earned: net, XP: int64(math.Round(float64(net) / xpPerTenWon))},
			Audit{
				Category:    "game",
				Description: fmt.Sprintf("%s WIN (%dx)", gameType, multiplier),
				SourceID:    gameType,
				SourceType:  "game_wager",
			})
		if err != nil {
			return nil, err
		}
		newBalance = credited.Balance
	} else {
		balance, err := s.Ledger.DebitBalance(userID, betAmount)
		if err != nil {
			return nil, err
		}
		newBalance = balance

		// Losses still leave a money trail, just no reward log or metric
		tx := models.Transaction{
			UserID:      userID,
			Amount:      net,
			Type:        "game",
			Description: fmt.Sprintf("%s LOSS (%dx)", gameType, multiplier),
		}
		if err := s.DB.Create(&tx).Error; err != nil {
			return nil, err
		}
	}

	return &GameResult{
		Multiplier: multiplier,
		NetChange:  net,
		NewBalance: newBalance,
		Message:    message,
	}, nil
}
