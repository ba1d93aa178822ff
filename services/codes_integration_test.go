package services

import (
	"os"
	"testing"
	"time"

	"bix-reward-engine/models"
	"bix-reward-engine/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// openTestDB connects to the database named by TEST_DATABASE_URL, skipping
// the test when none is configured.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.UserProfile{},
		&models.Task{},
		&models.TaskCompletion{},
		&models.CodeWindow{},
		&models.Redemption{},
		&models.AbuseFlag{},
		&models.ReferralHistory{},
		&models.ReferralCommission{},
		&models.Transaction{},
		&models.RewardLog{},
		&models.PlatformMetric{},
	))
	return db
}

func newTestCodeService(db *gorm.DB) *CodeService {
	ledger := NewLedgerService(db)
	guard := NewGuardService(db)
	referrals := NewReferralService(db, guard, ledger)
	return NewCodeService(db, guard, ledger, referrals, NewRateLimiter())
}

func createTestProfile(t *testing.T, db *gorm.DB) string {
	t.Helper()
	userID := uuid.NewString()
	profile := models.UserProfile{
		UserID:       userID,
		Level:        1,
		Role:         models.RoleUser,
		ReferralCode: utils.GenerateSecureCode(8),
	}
	require.NoError(t, db.Create(&profile).Error)
	t.Cleanup(func() { db.Unscoped().Delete(&models.UserProfile{}, "user_id = ?", userID) })
	return userID
}

func createTestWindow(t *testing.T, db *gorm.DB, maxRedemptions *int) *models.CodeWindow {
	t.Helper()
	now := time.Now().UTC()
	window := models.CodeWindow{
		TaskID:         models.GeneralTaskID,
		Code:           utils.GenerateSecureCode(codeLength),
		ValidFrom:      now.Add(-time.Minute),
		ValidUntil:     now.Add(time.Hour),
		MaxRedemptions: maxRedemptions,
		IsActive:       true,
		CreatedByAdmin: "test-admin",
	}
	require.NoError(t, db.Create(&window).Error)
	t.Cleanup(func() {
		db.Unscoped().Delete(&models.Redemption{}, "window_id = ?", window.ID)
		db.Unscoped().Delete(&models.CodeWindow{}, "id = ?", window.ID)
	})
	return &window
}

func reloadWindow(t *testing.T, db *gorm.DB, id string) models.CodeWindow {
	t.Helper()
	var w models.CodeWindow
	require.NoError(t, db.First(&w, "id = ?", id).Error)
	return w
}

func TestRedeemWithoutProfileConsumesNoCapacity(t *testing.T) {
	db := openTestDB(t)
	codes := newTestCodeService(db)

	one := 1
	window := createTestWindow(t, db, &one)
	userID := uuid.NewString()
	ipHash := HashIP("198.51.100.77")

	_, err := codes.Redeem(userID, window.Code, ipHash, "", "test-agent")
	require.Error(t, err)
	assert.EqualError(t, err, "Profile not found")

	reloaded := reloadWindow(t, db, window.ID)
	assert.Equal(t, 0, reloaded.CurrentRedemptions, "failed redemption must not consume the slot")

	var redemptions int64
	require.NoError(t, db.Model(&models.Redemption{}).
		Where("window_id = ?", window.ID).
		Count(&redemptions).Error)
	assert.Equal(t, int64(0), redemptions, "failed redemption must not leave a redemption row")

	// Once the profile exists the same user can claim the still-free slot
	profile := models.UserProfile{
		UserID:       userID,
		Level:        1,
		Role:         models.RoleUser,
		ReferralCode: utils.GenerateSecureCode(8),
	}
	require.NoError(t, db.Create(&profile).Error)
	t.Cleanup(func() { db.Unscoped().Delete(&models.UserProfile{}, "user_id = ?", userID) })

	result, err := codes.Redeem(userID, window.Code, ipHash, "", "test-agent")
	require.NoError(t, err)
	assert.Greater(t, result.Reward, int64(0))
	assert.Equal(t, 1, reloadWindow(t, db, window.ID).CurrentRedemptions)
}

func TestCodeWindowLifecycle(t *testing.T) {
	db := openTestDB(t)
	codes := newTestCodeService(db)

	two := 2
	window := createTestWindow(t, db, &two)
	userA := createTestProfile(t, db)
	userB := createTestProfile(t, db)
	userC := createTestProfile(t, db)

	_, err := codes.Redeem(userA, window.Code, HashIP("10.1.0.1"), "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, reloadWindow(t, db, window.ID).CurrentRedemptions)

	_, err = codes.Redeem(userA, window.Code, HashIP("10.1.0.1"), "", "")
	require.Error(t, err)
	assert.EqualError(t, err, "You already redeemed this code")
	assert.Equal(t, 1, reloadWindow(t, db, window.ID).CurrentRedemptions, "duplicate must not increment")

	_, err = codes.Redeem(userB, window.Code, HashIP("10.1.0.2"), "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, reloadWindow(t, db, window.ID).CurrentRedemptions)

	_, err = codes.Redeem(userC, window.Code, HashIP("10.1.0.3"), "", "")
	require.Error(t, err)
	assert.EqualError(t, err, "Code has reached maximum redemptions")
	assert.Equal(t, 2, reloadWindow(t, db, window.ID).CurrentRedemptions)
}
