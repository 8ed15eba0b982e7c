package definition

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reporting-scheduler/pkg/db/pagination"
)

// Repository describes database operations available for report definitions.
// Definition updates are last-writer-wins: they are single-owner operations,
// not multi-worker races, so no version token is involved.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, tenant string, accessFilter []string, p pagination.Pagination) (int64, []Record, error)
	ListSchedulable(ctx context.Context) ([]Record, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm backed Repository implementation.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, rec *Record) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *gormRepository) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := r.db.WithContext(ctx).
		Preload("Access").
		Where("id = ?", id).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) Update(ctx context.Context, rec *Record) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Record{}).
			Where("id = ?", rec.ID).
			Updates(map[string]any{
				"is_enabled":   rec.IsEnabled,
				"trigger_type": rec.TriggerType,
				"body":         rec.Body,
				"updated_at":   rec.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Where("definition_id = ?", rec.ID).Delete(&AccessEntry{}).Error; err != nil {
			return err
		}
		if len(rec.Access) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec.Access).Error
	})
}

func (r *gormRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("definition_id = ?", id).Delete(&AccessEntry{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Record{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *gormRepository) List(ctx context.Context, tenant string, accessFilter []string, p pagination.Pagination) (int64, []Record, error) {
	query := r.db.WithContext(ctx).Model(&Record{}).
		Where("tenant = ?", tenant)

	if len(accessFilter) > 0 {
		query = query.Where("id IN (?)",
			r.db.Model(&AccessEntry{}).
				Select("definition_id").
				Where("principal IN ?", accessFilter))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var recs []Record
	err := pagination.Apply(query, p).
		Preload("Access").
		Order("created_at DESC").Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return 0, nil, err
	}
	return total, recs, nil
}

func (r *gormRepository) ListSchedulable(ctx context.Context) ([]Record, error) {
	var recs []Record
	err := r.db.WithContext(ctx).
		Preload("Access").
		Where("is_enabled = ? AND trigger_type IN ?", true, []TriggerType{CronScheduleType, IntervalType}).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}
