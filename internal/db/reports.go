package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/patrickwarner/floodwatch/internal/models"
)

// ReportRepository stores reports in Postgres through gorm.
type ReportRepository struct {
	db    *gorm.DB
	clock clockwork.Clock
}

// NewReportRepository returns a repository backed by db. A nil clock uses
// wall time.
func NewReportRepository(db *gorm.DB, clock clockwork.Clock) *ReportRepository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ReportRepository{db: db, clock: clock}
}

// Create assigns an id, creation time and default status, then inserts r.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	prepareNew(report, r.clock)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(report).Error; err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// FindByID returns the report with id or models.ErrNotFound.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find report %s: %w", id, err)
	}
	return &report, nil
}

// Update writes changes to the report with id and returns the stored row.
// Status is written only when set.
func (r *ReportRepository) Update(ctx context.Context, id string, changes models.ReportChanges) (*models.Report, error) {
	values := map[string]any{
		"location":    changes.Location,
		"coordinates": datatypes.NewJSONType(changes.Coordinates),
		"water_level": changes.WaterLevel,
		"description": changes.Description,
		"image_url":   changes.ImageURL,
	}
	if changes.Status != nil {
		values["status"] = *changes.Status
	}

	res := r.db.WithContext(ctx).Model(&models.Report{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return nil, fmt.Errorf("update report %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

// Delete removes the report with id.
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Report{})
	if res.Error != nil {
		return fmt.Errorf("delete report %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListAll returns every report, newest first, with the owner's name and email.
func (r *ReportRepository) ListAll(ctx context.Context) ([]models.Report, error) {
	reports := []models.Report{}
	err := r.db.WithContext(ctx).
		Preload("Owner", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "name", "email")
		}).
		Order("created_at DESC").
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

// CountUsers returns the number of registered users.
func (r *ReportRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func prepareNew(report *models.Report, clock clockwork.Clock) {
	report.ID = uuid.NewString()
	report.CreatedAt = clock.Now().UTC()
	if report.Status == "" {
		report.Status = models.StatusActive
	}
}
