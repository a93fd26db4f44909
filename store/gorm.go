package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/flowedit/internal/database"
	"github.com/BaSui01/flowedit/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// workflowRecord is the relational row behind a workflow. The whole
// document is kept as JSON so agents and graph travel together.
type workflowRecord struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:255;not null;index"`
	Document  string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (workflowRecord) TableName() string { return "workflows" }

// saveRetries bounds retries of a save that hit a lock or deadlock.
const saveRetries = 3

// GormStore stores workflows in a relational database through gorm. The
// *gorm.DB is borrowed; Close does not close it.
type GormStore struct {
	db     *gorm.DB
	pool   *database.PoolManager
	logger *zap.Logger
	now    func() time.Time
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "store_gorm")),
		now:    time.Now,
	}
}

// NewGormStoreWithPool uses the pool's connection and runs saves through
// its retrying transactions.
func NewGormStoreWithPool(pool *database.PoolManager, logger *zap.Logger) *GormStore {
	s := NewGormStore(pool.DB(), logger)
	s.pool = pool
	return s
}

// AutoMigrate creates or updates the workflows table. Production schemas
// are managed by the migrate command; this is for development databases.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&workflowRecord{})
}

func (s *GormStore) ListWorkflows(ctx context.Context) ([]types.WorkflowSummary, error) {
	var recs []workflowRecord
	err := s.db.WithContext(ctx).
		Select("id", "name", "updated_at").
		Order("name, id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	out := make([]types.WorkflowSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, types.WorkflowSummary{ID: r.ID, Name: r.Name, UpdatedAt: r.UpdatedAt.UTC()})
	}
	return out, nil
}

func (s *GormStore) GetWorkflow(ctx context.Context, id string) (*types.Workflow, error) {
	var rec workflowRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow %s: %w", id, err)
	}
	return decode([]byte(rec.Document))
}

func (s *GormStore) SaveWorkflow(ctx context.Context, wf *types.Workflow) (*types.Workflow, error) {
	cp, err := prepare(wf, s.now())
	if err != nil {
		return nil, err
	}
	doc, err := encode(cp)
	if err != nil {
		return nil, err
	}
	rec := workflowRecord{ID: cp.ID, Name: cp.Name, Document: doc, UpdatedAt: cp.UpdatedAt}
	upsert := func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "document", "updated_at"}),
		}).Create(&rec).Error
	}
	if s.pool != nil {
		err = s.pool.WithTransactionRetry(ctx, saveRetries, upsert)
	} else {
		err = upsert(s.db.WithContext(ctx))
	}
	if err != nil {
		return nil, fmt.Errorf("save workflow %s: %w", cp.ID, err)
	}
	s.logger.Debug("workflow saved", zap.String("workflow_id", cp.ID))
	return cp, nil
}

func (s *GormStore) DeleteWorkflow(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&workflowRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete workflow %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrWorkflowNotFound
	}
	return nil
}

func (s *GormStore) Close() error { return nil }
