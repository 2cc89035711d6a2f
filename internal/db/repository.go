package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/golos/golosmind/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction runs fn with repositories bound to one transaction.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// BlockRepository provides block-related database operations
type BlockRepository struct {
	*Repository
}

// NewBlockRepository creates a new block repository
func NewBlockRepository(repo *Repository) *BlockRepository {
	return &BlockRepository{Repository: repo}
}

// GetByNum retrieves a block by number
func (r *BlockRepository) GetByNum(ctx context.Context, num int64) (*models.Block, error) {
	var block models.Block
	if err := r.db.WithContext(ctx).First(&block, num).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &block, nil
}

// GetHead retrieves the head block (highest block number)
func (r *BlockRepository) GetHead(ctx context.Context) (*models.Block, error) {
	var block models.Block
	if err := r.db.WithContext(ctx).Order("num DESC").First(&block).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &block, nil
}

// Save inserts a block, replacing a row with the same number.
func (r *BlockRepository) Save(ctx context.Context, block *models.Block) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(block).Error
}

// StateRepository provides state-related database operations
type StateRepository struct {
	*Repository
}

// NewStateRepository creates a new state repository
func NewStateRepository(repo *Repository) *StateRepository {
	return &StateRepository{Repository: repo}
}

// Get retrieves the current state
func (r *StateRepository) Get(ctx context.Context) (*models.State, error) {
	var state models.State
	if err := r.db.WithContext(ctx).First(&state, 1).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// Advance records num as the last persisted block.
func (r *StateRepository) Advance(ctx context.Context, num int64, id string) error {
	state := models.State{
		ID:        1,
		BlockNum:  num,
		BlockID:   id,
		DBVersion: models.DBVersion,
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Save(&state).Error
}

// WorkerRepository persists the governance objects.
type WorkerRepository struct {
	*Repository
}

// NewWorkerRepository creates a new worker repository
func NewWorkerRepository(repo *Repository) *WorkerRepository {
	return &WorkerRepository{Repository: repo}
}

// Proposals loads every stored proposal in creation order.
func (r *WorkerRepository) Proposals(ctx context.Context) ([]models.WorkerProposal, error) {
	var out []models.WorkerProposal
	if err := r.db.WithContext(ctx).Order("created, author, permlink").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Techspecs loads every stored techspec in creation order.
func (r *WorkerRepository) Techspecs(ctx context.Context) ([]models.WorkerTechspec, error) {
	var out []models.WorkerTechspec
	if err := r.db.WithContext(ctx).Order("created, author, permlink").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *WorkerRepository) SaveProposal(ctx context.Context, p *models.WorkerProposal) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(p).Error
}

func (r *WorkerRepository) SaveTechspec(ctx context.Context, ts *models.WorkerTechspec) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(ts).Error
}

func (r *WorkerRepository) DeleteProposal(ctx context.Context, author, permlink string) error {
	return r.db.WithContext(ctx).
		Where("author = ? AND permlink = ?", author, permlink).
		Delete(&models.WorkerProposal{}).Error
}

func (r *WorkerRepository) DeleteTechspec(ctx context.Context, author, permlink string) error {
	return r.db.WithContext(ctx).
		Where("author = ? AND permlink = ?", author, permlink).
		Delete(&models.WorkerTechspec{}).Error
}
