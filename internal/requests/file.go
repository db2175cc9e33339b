package requests

// UploadFileRequest carries the non-file fields of an upload form
type UploadFileRequest struct {
	// FileID is the optional identity to version; empty starts a fresh file
	FileID   string `form:"fileId" json:"fileId,omitempty"`
	Category string `form:"category" json:"category" validate:"required"`
}

// BatchFilesRequest carries a comma-separated id list for batch operations
type BatchFilesRequest struct {
	IDs string `query:"ids" json:"ids" validate:"required"`
}
