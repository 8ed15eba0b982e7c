package instance

import (
	"context"
	"time"

	"gorm.io/gorm"

	"reporting-scheduler/pkg/db/pagination"
)

// Repository describes database operations available for report instances.
// UpdateStatusIfSeqNo is the conditional write every status transition goes
// through: it only lands when the stored version still matches.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, tenant string, accessFilter []string, p pagination.Pagination) (int64, []Record, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]Record, error)
	UpdateStatusIfSeqNo(ctx context.Context, id string, seqNo int64, status Status, statusText string) (bool, error)
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

func (r *gormRepository) List(ctx context.Context, tenant string, accessFilter []string, p pagination.Pagination) (int64, []Record, error) {
	query := r.db.WithContext(ctx).Model(&Record{}).
		Where("tenant = ?", tenant)

	if len(accessFilter) > 0 {
		query = query.Where("id IN (?)",
			r.db.Model(&AccessEntry{}).
				Select("instance_id").
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

func (r *gormRepository) ListByStatus(ctx context.Context, status Status, limit int) ([]Record, error) {
	var recs []Record
	query := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// UpdateStatusIfSeqNo performs the optimistic write. The WHERE clause carries
// both id and the version read earlier; a zero row count means another writer
// got there first (or the row is gone), and the caller must re-read.
func (r *gormRepository) UpdateStatusIfSeqNo(ctx context.Context, id string, seqNo int64, status Status, statusText string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Record{}).
		Where("id = ? AND seq_no = ?", id, seqNo).
		Updates(map[string]any{
			"status":      status,
			"status_text": statusText,
			"updated_at":  time.Now().UTC(),
			"seq_no":      gorm.Expr("seq_no + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
