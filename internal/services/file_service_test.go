package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"ecm-api/internal/compress"
	"ecm-api/internal/config"
	"ecm-api/internal/models"
	"ecm-api/internal/repository"
	"ecm-api/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is an in-memory FileRepository with the same per-identity
// serialization contract as the GORM implementation.
type fakeRepo struct {
	mu      sync.Mutex
	files   map[uuid.UUID]models.File
	saveErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{files: make(map[uuid.UUID]models.File)}
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, ok := r.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &file, nil
}

func (r *fakeRepo) FindAllByID(_ context.Context, ids []uuid.UUID) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.File
	for _, id := range ids {
		if file, ok := r.files[id]; ok {
			out = append(out, file)
		}
	}
	return out, nil
}

func (r *fakeRepo) Save(_ context.Context, file *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}

	existing, ok := r.files[file.ID]
	if file.Version <= 1 {
		if ok {
			return repository.ErrVersionConflict
		}
	} else if !ok || existing.Version >= file.Version {
		return repository.ErrVersionConflict
	}

	r.files[file.ID] = *file
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, file *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, file.ID)
	return nil
}

func testConfig(t *testing.T) config.MainConfig {
	t.Helper()
	return config.MainConfig{
		Storage: config.StorageConfig{
			UploadDir:         filepath.Join(t.TempDir(), "uploads"),
			MaxFileSize:       "1MB",
			WriteBufferSize:   "4KB",
			AllowedExtensions: []string{"txt", "pdf", "mp4"},
			AllowedMimeTypes:  []string{"text/plain", "application/pdf", "video/*"},
		},
		Compression: config.CompressionConfig{Enabled: true, QueueSize: 4, Workers: 1},
	}
}

func newTestService(t *testing.T, repo repository.FileRepository, queue *compress.Queue) (*FileService, config.MainConfig) {
	t.Helper()
	cfg := testConfig(t)
	svc, err := NewFileService(cfg, repo, queue)
	require.NoError(t, err)
	return svc, cfg
}

func storedFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func readArchive(t *testing.T, stream io.ReadCloser) map[string][]byte {
	t.Helper()
	defer stream.Close()

	raw, err := io.ReadAll(stream)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		entries[f.Name] = content
	}
	return entries
}

func TestSaveFreshFile(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo, nil)

	content := []byte("hello world")
	record, err := svc.Save(context.Background(), nil, "invoices", "report.pdf", "application/pdf", bytes.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, 1, record.Version)
	assert.Equal(t, "report.pdf", record.FileName)
	assert.Equal(t, "invoices", record.Category)
	assert.Equal(t, "application/pdf", record.ContentType)
	assert.Equal(t, int64(len(content)), record.FileSize)
	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.False(t, record.DateUpload.IsZero())

	assert.True(t, strings.Contains(record.FilePath, string(filepath.Separator)+"invoices"+string(filepath.Separator)))
	assert.True(t, strings.HasSuffix(record.FilePath, "_v1_report.pdf"))

	written, err := os.ReadFile(record.FilePath)
	require.NoError(t, err)
	assert.Equal(t, content, written)
}

func TestSaveSequentialVersions(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo, nil)
	ctx := context.Background()

	first, err := svc.Save(ctx, nil, "docs", "notes.txt", "text/plain", strings.NewReader("v1"))
	require.NoError(t, err)
	require.Equal(t, 1, first.Version)

	paths := []string{first.FilePath}
	for want := 2; want <= 4; want++ {
		record, err := svc.Save(ctx, &first.ID, "docs", "notes.txt", "text/plain",
			strings.NewReader(strings.Repeat("v", want)))
		require.NoError(t, err)
		assert.Equal(t, want, record.Version)
		assert.Equal(t, first.ID, record.ID)
		assert.NotContains(t, paths, record.FilePath, "each version must get a distinct path")
		paths = append(paths, record.FilePath)
	}

	// Superseded version bytes are retained on disk
	for _, path := range paths {
		_, err := os.Stat(path)
		assert.NoError(t, err, "previous version bytes must remain at %s", path)
	}

	// The record points at the latest version
	content, err := svc.GetContent(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("vvvv"), content)
}

func TestSaveWithCallerChosenIdentity(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo, nil)

	chosen := uuid.New()
	record, err := svc.Save(context.Background(), &chosen, "docs", "notes.txt", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, chosen, record.ID)
	assert.Equal(t, 1, record.Version)
}

func TestSaveValidation(t *testing.T) {
	repo := newFakeRepo()
	svc, cfg := newTestService(t, repo, nil)
	ctx := context.Background()

	cases := []struct {
		name        string
		category    string
		fileName    string
		contentType string
		wantErr     error
	}{
		{"bad file name", "docs", "../../etc/passwd", "text/plain", storage.ErrInvalidFileName},
		{"reserved chars", "docs", "bad<doc>.txt", "text/plain", storage.ErrInvalidFileName},
		{"bad category", "../escape", "notes.txt", "text/plain", storage.ErrInvalidCategory},
		{"disallowed extension", "docs", "setup.exe", "text/plain", ErrDisallowedExtension},
		{"disallowed mime", "docs", "notes.txt", "application/x-msdownload", ErrDisallowedMimeType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Save(ctx, nil, tc.category, tc.fileName, tc.contentType, strings.NewReader("x"))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	// Validation failures leave no partial side effects
	assert.Empty(t, storedFiles(t, cfg.Storage.UploadDir))
	assert.Empty(t, repo.files)
}

func TestSaveRejectsOversizedStream(t *testing.T) {
	repo := newFakeRepo()
	svc, cfg := newTestService(t, repo, nil)

	oversized := bytes.Repeat([]byte("x"), 2<<20)
	_, err := svc.Save(context.Background(), nil, "docs", "big.txt", "text/plain", bytes.NewReader(oversized))
	assert.ErrorIs(t, err, storage.ErrFileTooLarge)

	assert.Empty(t, storedFiles(t, cfg.Storage.UploadDir))
	assert.Empty(t, repo.files)
}

func TestSaveCompensatesOnPersistFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.saveErr = errors.New("connection refused")
	svc, cfg := newTestService(t, repo, nil)

	_, err := svc.Save(context.Background(), nil, "docs", "notes.txt", "text/plain", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrMetadataPersistFailed)

	// The just-written file was removed
	assert.Empty(t, storedFiles(t, cfg.Storage.UploadDir))
}

func TestSaveSurfacesVersionConflict(t *testing.T) {
	repo := newFakeRepo()
	repo.saveErr = repository.ErrVersionConflict
	svc, cfg := newTestService(t, repo, nil)

	_, err := svc.Save(context.Background(), nil, "docs", "notes.txt", "text/plain", strings.NewReader("x"))
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
	assert.NotErrorIs(t, err, ErrMetadataPersistFailed)
	assert.Empty(t, storedFiles(t, cfg.Storage.UploadDir))
}

// rendezvousRepo forces two concurrent saves to resolve the same base
// version before either may persist.
type rendezvousRepo struct {
	repository.FileRepository
	gate chan struct{}
}

func (r *rendezvousRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.File, error) {
	record, err := r.FileRepository.FindByID(ctx, id)
	select {
	case r.gate <- struct{}{}:
	case <-r.gate:
	}
	return record, err
}

func TestConcurrentSavesNeverShareAVersion(t *testing.T) {
	inner := newFakeRepo()
	svc, cfg := newTestService(t, &rendezvousRepo{FileRepository: inner, gate: make(chan struct{})}, nil)
	ctx := context.Background()

	seed := models.File{ID: uuid.New(), FileName: "notes.txt", FilePath: "seed", ContentType: "text/plain", Category: "docs", Version: 1}
	inner.files[seed.ID] = seed

	type result struct {
		record *models.File
		err    error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			record, err := svc.Save(ctx, &seed.ID, "docs", "notes.txt", "text/plain", strings.NewReader("racer"))
			results <- result{record, err}
		}()
	}

	a, b := <-results, <-results

	// Both writers computed version 2; exactly one may win it
	winner, loser := a, b
	if winner.err != nil {
		winner, loser = b, a
	}
	require.NoError(t, winner.err)
	assert.Equal(t, 2, winner.record.Version)
	assert.ErrorIs(t, loser.err, repository.ErrVersionConflict)

	// The loser's bytes were cleaned up; only the winner's file remains
	assert.Len(t, storedFiles(t, cfg.Storage.UploadDir), 1)
}

func TestSaveGetContentRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo, nil)
	ctx := context.Background()

	content := bytes.Repeat([]byte("roundtrip"), 10000)
	record, err := svc.Save(ctx, nil, "docs", "blob.txt", "text/plain", bytes.NewReader(content))
	require.NoError(t, err)

	got, err := svc.GetContent(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestGetContentUnknownID(t *testing.T) {
	svc, _ := newTestService(t, newFakeRepo(), nil)

	_, err := svc.GetContent(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetInfosPreservesOrderAndPropagatesMissing(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo, nil)
	ctx := context.Background()

	first, err := svc.Save(ctx, nil, "docs", "a.txt", "text/plain", strings.NewReader("a"))
	require.NoError(t, err)
	second, err := svc.Save(ctx, nil, "docs", "b.txt", "text/plain", strings.NewReader("b"))
	require.NoError(t, err)

	records, err := svc.GetInfos(ctx, []uuid.UUID{second.ID, first.ID})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, second.ID, records[0].ID)
	assert.Equal(t, first.ID, records[1].ID)

	_, err = svc.GetInfos(ctx, []uuid.UUID{first.ID, uuid.New()})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteRemovesFileAndRecord(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo, nil)
	ctx := context.Background()

	record, err := svc.Save(ctx, nil, "docs", "gone.txt", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)

	assert.True(t, svc.Delete(ctx, record.ID))

	_, statErr := os.Stat(record.FilePath)
	assert.True(t, os.IsNotExist(statErr))

	_, err = svc.GetInfo(ctx, record.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteUnknownIDReturnsFalse(t *testing.T) {
	svc, _ := newTestService(t, newFakeRepo(), nil)
	assert.False(t, svc.Delete(context.Background(), uuid.New()))
}

func TestDeleteToleratesMissingBytes(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo, nil)
	ctx := context.Background()

	record, err := svc.Save(ctx, nil, "docs", "gone.txt", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)

	// The filesystem object already vanished; the desired end state is "gone"
	require.NoError(t, os.Remove(record.FilePath))
	assert.True(t, svc.Delete(ctx, record.ID))
}

func TestStreamArchiveOmitsMissingIDs(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo, nil)
	ctx := context.Background()

	content := []byte("bundle me")
	record, err := svc.Save(ctx, nil, "docs", "kept.txt", "text/plain", bytes.NewReader(content))
	require.NoError(t, err)

	stream := svc.StreamArchive(ctx, []uuid.UUID{record.ID, uuid.New()})
	entries := readArchive(t, stream)

	require.Len(t, entries, 1)
	assert.Equal(t, content, entries["kept.txt"])
}

func TestSaveOffersRecordToCompressionQueue(t *testing.T) {
	repo := newFakeRepo()
	queue := compress.NewQueue(1)
	svc, _ := newTestService(t, repo, queue)
	ctx := context.Background()

	_, err := svc.Save(ctx, nil, "docs", "clip.mp4", "video/mp4", strings.NewReader("frames"))
	require.NoError(t, err)
	assert.Equal(t, 1, queue.Len())

	// A full queue never blocks or fails the save
	record, err := svc.Save(ctx, nil, "docs", "clip2.mp4", "video/mp4", strings.NewReader("frames"))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 1, queue.Len())
}
