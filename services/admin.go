package services

import (
	"time"

	"bix-reward-engine/models"

	"gorm.io/gorm"
)

// AdminService serves the moderation and reporting surface: platform metrics,
// abuse flags and flag resolution.
type AdminService struct {
	DB *gorm.DB
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{DB: db}
}

// MetricsReport is the last 30 days of rollups plus headline counts.
type MetricsReport struct {
	Metrics         []models.PlatformMetric `json:"metrics"`
	TotalUsers      int64                   `json:"totalUsers"`
	FlaggedAccounts int64                   `json:"flaggedAccounts"`
}

func (s *AdminService) GetMetrics() (*MetricsReport, error) {
	var metrics []models.PlatformMetric
	if err := s.DB.Order("metric_date DESC").Limit(30).Find(&metrics).Error; err != nil {
		return nil, err
	}

	var totalUsers int64
	if err := s.DB.Model(&models.UserProfile{}).Count(&totalUsers).Error; err != nil {
		return nil, err
	}

	var flagged int64
	if err := s.DB.Model(&models.AbuseFlag{}).
		Where("resolved = ?", false).
		Count(&flagged).Error; err != nil {
		return nil, err
	}

	return &MetricsReport{Metrics: metrics, TotalUsers: totalUsers, FlaggedAccounts: flagged}, nil
}

func (s *AdminService) GetAbuseFlags() ([]models.AbuseFlag, error) {
	var flags []models.AbuseFlag
	err := s.DB.Order("created_at DESC").Limit(50).Find(&flags).Error
	return flags, err
}

// ResolveFlag marks a flag resolved, recording who resolved it and when.
// Resolution is the only sanctioned mutation of a flag.
func (s *AdminService) ResolveFlag(flagID, adminID string) error {
	if flagID == "" {
		return errBadRequest("Missing flagId")
	}
	now := time.Now().UTC()
	res := s.DB.Model(&models.AbuseFlag{}).
		Where("id = ?", flagID).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_by": adminID,
			"resolved_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errBadRequest("Flag not found")
	}
	return nil
}
