package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/reconciliation"
	"github.com/remitflow/backend/internal/domain/shared"
	"github.com/remitflow/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormRemittanceRepository implements reconciliation.RemittanceRepository using GORM
type GormRemittanceRepository struct {
	db *gorm.DB
}

// NewGormRemittanceRepository creates a new GormRemittanceRepository
func NewGormRemittanceRepository(db *gorm.DB) *GormRemittanceRepository {
	return &GormRemittanceRepository{db: db}
}

// Save creates a new remittance with all detail lines. It joins any
// transaction carried by the context.
func (r *GormRemittanceRepository) Save(ctx context.Context, remittance *reconciliation.RemittanceInfo) error {
	model := models.RemittanceModelFromDomain(remittance)
	return dbFor(ctx, r.db).Create(model).Error
}

// Update persists changes to an existing remittance. Details are immutable
// apart from claim resolution, so they are updated line by line.
func (r *GormRemittanceRepository) Update(ctx context.Context, remittance *reconciliation.RemittanceInfo) error {
	model := models.RemittanceModelFromDomain(remittance)
	return dbFor(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.RemittanceModel{}).
			Where("id = ?", remittance.ID).
			Select("archive_key", "updated_at").
			Updates(model).Error; err != nil {
			return err
		}
		for i := range model.Details {
			if err := tx.
				Model(&models.RemittanceDetailModel{}).
				Where("id = ?", model.Details[i].ID).
				Update("claim_id", model.Details[i].ClaimID).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID finds a remittance by ID with its details
func (r *GormRemittanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.RemittanceInfo, error) {
	var model models.RemittanceModel
	if err := r.db.WithContext(ctx).
		Preload("Details", func(db *gorm.DB) *gorm.DB {
			return db.Order("remittance_details.line_number ASC")
		}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByFileHash finds the remittance previously imported from the same file
func (r *GormRemittanceRepository) FindByFileHash(ctx context.Context, hash string) (*reconciliation.RemittanceInfo, error) {
	var model models.RemittanceModel
	if err := r.db.WithContext(ctx).
		First(&model, "file_hash = ?", hash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPayerAndNumber finds the payer's remittance with the given number
func (r *GormRemittanceRepository) FindByPayerAndNumber(ctx context.Context, payerID uuid.UUID, remittanceNumber string) (*reconciliation.RemittanceInfo, error) {
	var model models.RemittanceModel
	if err := r.db.WithContext(ctx).
		First(&model, "payer_id = ? AND remittance_number = ?", payerID, remittanceNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds remittances matching the filter, paginated, without details
func (r *GormRemittanceRepository) FindAll(ctx context.Context, filter reconciliation.RemittanceFilter) (shared.Paginated[*reconciliation.RemittanceInfo], error) {
	query := r.db.WithContext(ctx).Model(&models.RemittanceModel{})

	if filter.PayerID != nil {
		query = query.Where("payer_id = ?", *filter.PayerID)
	}
	if filter.FileType != nil {
		query = query.Where("file_type = ?", filter.FileType.String())
	}
	if filter.DateFrom != nil {
		query = query.Where("remittance_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("remittance_date <= ?", *filter.DateTo)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where(
			"file_name ILIKE ? OR remittance_number ILIKE ? OR check_number ILIKE ? OR payer_name ILIKE ?",
			pattern, pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[*reconciliation.RemittanceInfo]{}, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var remittanceModels []models.RemittanceModel
	if err := query.
		Order("remittance_date DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&remittanceModels).Error; err != nil {
		return shared.Paginated[*reconciliation.RemittanceInfo]{}, err
	}

	remittances := make([]*reconciliation.RemittanceInfo, 0, len(remittanceModels))
	for i := range remittanceModels {
		remittances = append(remittances, remittanceModels[i].ToDomain())
	}
	return shared.NewPaginated(remittances, total, page, pageSize), nil
}

// Ensure GormRemittanceRepository implements the interface
var _ reconciliation.RemittanceRepository = (*GormRemittanceRepository)(nil)
