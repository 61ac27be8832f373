package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/utils"
)

type WorkspaceRepository interface {
	GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.WorkspaceEntity, error)
	GetByName(ctx context.Context, name string, opts ...utils.DBOption) (*models.WorkspaceEntity, error)
	List(ctx context.Context, param *models.GetWorkspaceParam, opts ...utils.DBOption) ([]models.WorkspaceEntity, error)
}

type workspaceRepository struct {
	db *gorm.DB
}

func NewWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &workspaceRepository{db: db}
}

func (r *workspaceRepository) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.WorkspaceEntity, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	var workspace models.WorkspaceEntity
	result := db.Where("id = ?", id).First(&workspace)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &workspace, nil
}

func (r *workspaceRepository) GetByName(ctx context.Context, name string, opts ...utils.DBOption) (*models.WorkspaceEntity, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	var workspace models.WorkspaceEntity
	result := db.Where("name = ?", name).First(&workspace)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &workspace, nil
}

func (r *workspaceRepository) List(ctx context.Context, param *models.GetWorkspaceParam, opts ...utils.DBOption) ([]models.WorkspaceEntity, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if param != nil {
		if param.Offset != nil {
			db = db.Offset(*param.Offset)
		}
		if param.Limit != nil {
			db = db.Limit(*param.Limit)
		}
	}
	var workspaces []models.WorkspaceEntity
	result := db.Order("id ASC").Find(&workspaces)
	if result.Error != nil {
		return nil, result.Error
	}
	return workspaces, nil
}
