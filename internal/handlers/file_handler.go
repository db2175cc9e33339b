package handlers

import (
	"errors"
	"log"
	"strings"

	"ecm-api/internal/models"
	"ecm-api/internal/repository"
	"ecm-api/internal/requests"
	"ecm-api/internal/services"
	"ecm-api/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kerimovok/go-pkg-utils/httpx"
	"github.com/kerimovok/go-pkg-utils/validator"
)

// FileHandler handles file-related HTTP requests
type FileHandler struct {
	fileService *services.FileService
}

// NewFileHandler creates a new file handler
func NewFileHandler(fileService *services.FileService) *FileHandler {
	return &FileHandler{
		fileService: fileService,
	}
}

// UploadFile handles single file upload requests
func (h *FileHandler) UploadFile(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response := httpx.BadRequest("No file provided", err)
		return httpx.SendResponse(c, response)
	}

	input := requests.UploadFileRequest{
		FileID:   c.FormValue("fileId"),
		Category: c.FormValue("category"),
	}
	if err := validator.ValidateStruct(&input); err != nil {
		response := httpx.BadRequest("Validation failed", err)
		return httpx.SendResponse(c, response)
	}

	var fileID *uuid.UUID
	if input.FileID != "" {
		parsed, err := uuid.Parse(input.FileID)
		if err != nil {
			response := httpx.BadRequest("Invalid file ID", err)
			return httpx.SendResponse(c, response)
		}
		fileID = &parsed
	}

	src, err := fileHeader.Open()
	if err != nil {
		response := httpx.InternalServerError("Failed to open uploaded file", err)
		return httpx.SendResponse(c, response)
	}
	defer src.Close()

	record, err := h.fileService.Save(c.UserContext(), fileID, input.Category,
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), src)
	if err != nil {
		return h.respondError(c, "Failed to upload file", err)
	}

	response := httpx.Created("File uploaded successfully", record)
	return httpx.SendResponse(c, response)
}

// UploadFiles handles multi-file upload requests; each file is saved under a
// fresh identity
func (h *FileHandler) UploadFiles(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		response := httpx.BadRequest("Invalid multipart form", err)
		return httpx.SendResponse(c, response)
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		response := httpx.BadRequest("No files provided", nil)
		return httpx.SendResponse(c, response)
	}

	input := requests.UploadFileRequest{Category: c.FormValue("category")}
	if err := validator.ValidateStruct(&input); err != nil {
		response := httpx.BadRequest("Validation failed", err)
		return httpx.SendResponse(c, response)
	}

	records := make([]*models.File, 0, len(fileHeaders))
	for _, fileHeader := range fileHeaders {
		src, err := fileHeader.Open()
		if err != nil {
			response := httpx.InternalServerError("Failed to open uploaded file", err)
			return httpx.SendResponse(c, response)
		}

		record, err := h.fileService.Save(c.UserContext(), nil, input.Category,
			fileHeader.Filename, fileHeader.Header.Get("Content-Type"), src)
		src.Close()
		if err != nil {
			return h.respondError(c, "Failed to upload file "+fileHeader.Filename, err)
		}
		records = append(records, record)
	}

	response := httpx.Created("Files uploaded successfully", records)
	return httpx.SendResponse(c, response)
}

// GetFile retrieves file information
func (h *FileHandler) GetFile(c *fiber.Ctx) error {
	fileID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		response := httpx.BadRequest("Invalid file ID", err)
		return httpx.SendResponse(c, response)
	}

	record, err := h.fileService.GetInfo(c.UserContext(), fileID)
	if err != nil {
		return h.respondError(c, "Failed to fetch file", err)
	}

	response := httpx.OK("File retrieved successfully", record)
	return httpx.SendResponse(c, response)
}

// GetFiles retrieves information for a batch of ids
func (h *FileHandler) GetFiles(c *fiber.Ctx) error {
	input := requests.BatchFilesRequest{IDs: c.Query("ids")}
	if err := validator.ValidateStruct(&input); err != nil {
		response := httpx.BadRequest("Validation failed", err)
		return httpx.SendResponse(c, response)
	}

	ids, err := parseIDList(input.IDs)
	if err != nil {
		response := httpx.BadRequest("Invalid file IDs", err)
		return httpx.SendResponse(c, response)
	}

	records, err := h.fileService.GetInfos(c.UserContext(), ids)
	if err != nil {
		return h.respondError(c, "Failed to fetch files", err)
	}

	response := httpx.OK("Files retrieved successfully", records)
	return httpx.SendResponse(c, response)
}

// DownloadFile handles file download requests
func (h *FileHandler) DownloadFile(c *fiber.Ctx) error {
	fileID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		response := httpx.BadRequest("Invalid file ID", err)
		return httpx.SendResponse(c, response)
	}

	record, err := h.fileService.GetInfo(c.UserContext(), fileID)
	if err != nil {
		return h.respondError(c, "Failed to fetch file", err)
	}

	c.Set(fiber.HeaderContentType, record.ContentType)
	return c.Download(record.FilePath, record.FileName)
}

// DownloadArchive streams a ZIP bundle of the requested ids; missing ids are
// omitted from the archive
func (h *FileHandler) DownloadArchive(c *fiber.Ctx) error {
	input := requests.BatchFilesRequest{IDs: c.Query("ids")}
	if err := validator.ValidateStruct(&input); err != nil {
		response := httpx.BadRequest("Validation failed", err)
		return httpx.SendResponse(c, response)
	}

	ids, err := parseIDList(input.IDs)
	if err != nil {
		response := httpx.BadRequest("Invalid file IDs", err)
		return httpx.SendResponse(c, response)
	}

	archive := h.fileService.StreamArchive(c.UserContext(), ids)

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="files.zip"`)
	return c.SendStream(archive)
}

// DeleteFile deletes a file; the service reports a soft-fail boolean
func (h *FileHandler) DeleteFile(c *fiber.Ctx) error {
	fileID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		response := httpx.BadRequest("Invalid file ID", err)
		return httpx.SendResponse(c, response)
	}

	if !h.fileService.Delete(c.UserContext(), fileID) {
		response := httpx.NotFound("File not found or not deleted")
		return httpx.SendResponse(c, response)
	}

	response := httpx.OK("File deleted successfully", nil)
	return httpx.SendResponse(c, response)
}

// respondError translates typed service errors into HTTP responses. This is
// the single place where domain failures are logged and mapped.
func (h *FileHandler) respondError(c *fiber.Ctx, message string, err error) error {
	log.Printf("%s: %v", message, err)

	switch {
	case errors.Is(err, storage.ErrInvalidFileName),
		errors.Is(err, storage.ErrInvalidCategory),
		errors.Is(err, storage.ErrPathTraversal),
		errors.Is(err, services.ErrDisallowedExtension),
		errors.Is(err, services.ErrDisallowedMimeType):
		response := httpx.BadRequest(message, err)
		return httpx.SendResponse(c, response)
	case errors.Is(err, repository.ErrNotFound):
		response := httpx.NotFound(message)
		return httpx.SendResponse(c, response)
	case errors.Is(err, storage.ErrFileTooLarge):
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"success": false,
			"message": message,
			"error":   err.Error(),
		})
	case errors.Is(err, repository.ErrVersionConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": message,
			"error":   err.Error(),
		})
	default:
		response := httpx.InternalServerError(message, err)
		return httpx.SendResponse(c, response)
	}
}

// parseIDList parses a comma-separated uuid list from a query parameter
func parseIDList(raw string) ([]uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("ids parameter is required")
	}

	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
