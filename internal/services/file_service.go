package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ecm-api/internal/compress"
	"ecm-api/internal/config"
	"ecm-api/internal/models"
	"ecm-api/internal/repository"
	"ecm-api/internal/storage"
	"ecm-api/internal/utils"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	// ErrDisallowedExtension is returned for an extension outside the allow-list.
	ErrDisallowedExtension = errors.New("file extension not allowed")
	// ErrDisallowedMimeType is returned for a declared MIME type outside the allow-list.
	ErrDisallowedMimeType = errors.New("MIME type not allowed")
	// ErrMetadataPersistFailed is returned when the bytes were written but the
	// record could not be persisted; the written file has been removed.
	ErrMetadataPersistFailed = errors.New("metadata persist failed")
)

const defaultContentType = "application/octet-stream"

// FileService orchestrates validation, version resolution, path sanitizing,
// streaming writes, metadata persistence and the compression hand-off.
type FileService struct {
	repo      repository.FileRepository
	sanitizer *storage.Sanitizer
	writer    *storage.Writer
	archiver  *storage.Archiver
	queue     *compress.Queue

	maxBytes     int64
	allowedExts  map[string]struct{}
	allowedMimes []string
	compression  bool
}

// NewFileService creates a file service from configuration. The queue may be
// nil when compression is disabled.
func NewFileService(cfg config.MainConfig, repo repository.FileRepository, queue *compress.Queue) (*FileService, error) {
	sanitizer, err := storage.NewSanitizer(cfg.Storage.UploadDir)
	if err != nil {
		return nil, err
	}

	maxBytes, err := utils.ParseSizeString(cfg.Storage.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("invalid max_file_size: %w", err)
	}
	bufSize, err := utils.ParseSizeString(cfg.Storage.WriteBufferSize)
	if err != nil {
		return nil, fmt.Errorf("invalid write_buffer_size: %w", err)
	}

	allowedExts := make(map[string]struct{}, len(cfg.Storage.AllowedExtensions))
	for _, ext := range cfg.Storage.AllowedExtensions {
		allowedExts[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	return &FileService{
		repo:         repo,
		sanitizer:    sanitizer,
		writer:       storage.NewWriter(int(bufSize)),
		archiver:     storage.NewArchiver(int(bufSize)),
		queue:        queue,
		maxBytes:     maxBytes,
		allowedExts:  allowedExts,
		allowedMimes: cfg.Storage.AllowedMimeTypes,
		compression:  cfg.Compression.Enabled && queue != nil,
	}, nil
}

// Save validates and stores an uploaded stream and persists its record.
//
// A nil fileID starts a fresh identity at version 1. An existing fileID bumps
// the version; an unknown caller-chosen fileID starts at version 1 under that
// id. Each version is written to its own path, so concurrent saves never
// collide on bytes; the repository serializes the metadata write per identity
// and reports repository.ErrVersionConflict for the loser.
//
// The record is persisted only after the bytes are durable. If persistence
// fails, the just-written file is removed before the error is returned. On
// success the record is offered to the compression queue without blocking.
func (s *FileService) Save(ctx context.Context, fileID *uuid.UUID, category, fileName, contentType string, content io.Reader) (*models.File, error) {
	if err := s.sanitizer.ValidateFileName(fileName); err != nil {
		return nil, err
	}
	if err := s.validateExtension(fileName); err != nil {
		return nil, err
	}
	if err := s.validateContentType(contentType); err != nil {
		return nil, err
	}

	record, err := s.resolveRecord(ctx, fileID)
	if err != nil {
		return nil, err
	}
	record.FileName = fileName
	record.Category = category

	categoryDir, err := s.sanitizer.CategoryDir(category)
	if err != nil {
		return nil, err
	}

	storedName := fmt.Sprintf("%s_v%d_%s", uuid.New(), record.Version, fileName)
	targetPath := filepath.Join(categoryDir, storedName)

	size, err := s.writer.Write(ctx, content, targetPath, s.maxBytes)
	if err != nil {
		return nil, err
	}
	record.FilePath = targetPath
	record.FileSize = size
	record.ContentType = s.resolveContentType(contentType, targetPath)

	if err := s.repo.Save(ctx, record); err != nil {
		// Compensate: the record never existed, so the bytes must not either.
		if rmErr := os.Remove(targetPath); rmErr != nil {
			log.Printf("Warning: failed to remove file after persist failure: path=%s: %v", targetPath, rmErr)
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMetadataPersistFailed, err)
	}

	if s.compression {
		if !s.queue.Offer(*record) {
			log.Printf("Warning: compression queue full, skipping: id=%s, path=%s", record.ID, record.FilePath)
		}
	}

	return record, nil
}

// resolveRecord computes the identity and next version for a save.
func (s *FileService) resolveRecord(ctx context.Context, fileID *uuid.UUID) (*models.File, error) {
	now := time.Now().UTC()
	record := &models.File{Version: 1, DateUpload: now, UpdatedAt: now}

	if fileID == nil {
		record.ID = uuid.New()
		return record, nil
	}

	existing, err := s.repo.FindByID(ctx, *fileID)
	switch {
	case err == nil:
		record.ID = existing.ID
		record.Version = existing.Version + 1
		record.DateUpload = existing.DateUpload
	case errors.Is(err, repository.ErrNotFound):
		// Fresh upload under a caller-chosen identity.
		record.ID = *fileID
	default:
		return nil, err
	}
	return record, nil
}

func (s *FileService) validateExtension(fileName string) error {
	ext := utils.GetFileExtension(fileName)
	if _, ok := s.allowedExts[ext]; !ok {
		return fmt.Errorf("%w: .%s", ErrDisallowedExtension, ext)
	}
	return nil
}

func (s *FileService) validateContentType(contentType string) error {
	if contentType == "" {
		return nil
	}
	if !utils.IsValidMimeType(contentType, s.allowedMimes) {
		return fmt.Errorf("%w: %s", ErrDisallowedMimeType, contentType)
	}
	return nil
}

// resolveContentType fills in a missing declared content type by sniffing
// the stored bytes, falling back to a generic octet-stream value.
func (s *FileService) resolveContentType(declared, path string) string {
	if declared != "" {
		return declared
	}
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return defaultContentType
	}
	return detected.String()
}

// GetInfo returns the record for an id.
func (s *FileService) GetInfo(ctx context.Context, id uuid.UUID) (*models.File, error) {
	return s.repo.FindByID(ctx, id)
}

// GetInfos returns the records for all ids, in input order. A missing id is
// reported as repository.ErrNotFound rather than silently omitted.
func (s *FileService) GetInfos(ctx context.Context, ids []uuid.UUID) ([]models.File, error) {
	found, err := s.repo.FindAllByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.File, len(found))
	for _, f := range found {
		byID[f.ID] = f
	}

	files := make([]models.File, 0, len(ids))
	for _, id := range ids {
		f, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
		}
		files = append(files, f)
	}
	return files, nil
}

// GetContent reads the full content of the latest version of a file.
func (s *FileService) GetContent(ctx context.Context, id uuid.UUID) ([]byte, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(record.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: content missing for %s", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}
	return data, nil
}

// StreamArchive produces a lazily generated ZIP of the given ids. Ids that
// cannot be resolved are skipped with a warning; the archive simply omits
// them. The returned stream must be closed by the caller.
func (s *FileService) StreamArchive(ctx context.Context, ids []uuid.UUID) io.ReadCloser {
	entries := make([]storage.ArchiveEntry, 0, len(ids))
	for _, id := range ids {
		record, err := s.repo.FindByID(ctx, id)
		if err != nil {
			log.Printf("Warning: skipping archive entry: id=%s: %v", id, err)
			continue
		}
		entries = append(entries, storage.ArchiveEntry{
			Name:     record.FileName,
			Path:     record.FilePath,
			Modified: record.UpdatedAt,
		})
	}
	return s.archiver.Stream(ctx, entries)
}

// Delete removes a file's bytes and its record. The desired end state is
// "gone", so an already-absent filesystem object counts as success. Any
// failure is logged and reported as false, never propagated: batch callers
// get a per-item verdict instead of a crash.
func (s *FileService) Delete(ctx context.Context, id uuid.UUID) bool {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		log.Printf("Delete failed: id=%s: %v", id, err)
		return false
	}

	if err := os.Remove(record.FilePath); err != nil && !os.IsNotExist(err) {
		log.Printf("Delete failed: id=%s, path=%s: %v", id, record.FilePath, err)
		return false
	}

	if err := s.repo.Delete(ctx, record); err != nil {
		log.Printf("Delete failed: id=%s: record removal: %v", id, err)
		return false
	}

	return true
}
