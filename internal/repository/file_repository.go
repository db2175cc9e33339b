package repository

import (
	"context"
	"errors"

	"ecm-api/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no record exists for the given id.
	ErrNotFound = errors.New("file record not found")
	// ErrVersionConflict is returned when a save would overwrite a record
	// that already carries an equal or higher version.
	ErrVersionConflict = errors.New("version conflict")
)

// FileRepository abstracts metadata persistence for file records.
type FileRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.File, error)
	FindAllByID(ctx context.Context, ids []uuid.UUID) ([]models.File, error)
	Save(ctx context.Context, file *models.File) error
	Delete(ctx context.Context, file *models.File) error
}

// GormFileRepository is the GORM-backed implementation of FileRepository.
type GormFileRepository struct {
	db *gorm.DB
}

// NewGormFileRepository creates a repository on top of an open GORM handle.
func NewGormFileRepository(db *gorm.DB) *GormFileRepository {
	return &GormFileRepository{db: db}
}

func (r *GormFileRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.File, error) {
	var file models.File
	err := r.db.WithContext(ctx).First(&file, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *GormFileRepository) FindAllByID(ctx context.Context, ids []uuid.UUID) ([]models.File, error) {
	var files []models.File
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// Save persists a file record. Version 1 records are inserted; later
// versions are applied as a conditional update so that metadata writes for
// one identity are serialized: the update only matches while the stored
// version is strictly lower than the incoming one, which means a late or
// duplicate writer gets ErrVersionConflict instead of clobbering a newer row.
func (r *GormFileRepository) Save(ctx context.Context, file *models.File) error {
	if file.Version <= 1 {
		err := r.db.WithContext(ctx).Create(file).Error
		if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
			// Two fresh saves raced on the same caller-chosen identity.
			return ErrVersionConflict
		}
		return err
	}

	res := r.db.WithContext(ctx).Model(&models.File{}).
		Where("id = ? AND version < ?", file.ID, file.Version).
		Updates(map[string]interface{}{
			"file_name":    file.FileName,
			"file_path":    file.FilePath,
			"content_type": file.ContentType,
			"file_size":    file.FileSize,
			"category":     file.Category,
			"version":      file.Version,
			"updated_at":   file.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *GormFileRepository) Delete(ctx context.Context, file *models.File) error {
	return r.db.WithContext(ctx).Delete(&models.File{}, "id = ?", file.ID).Error
}
