package utils

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Common utilities used across the ecm-api

// GetFileExtension extracts and normalizes the file extension
func GetFileExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return strings.TrimPrefix(ext, ".")
}

// MatchesMimeType checks if a MIME type matches a pattern
func MatchesMimeType(actual, pattern string) bool {
	// Exact match
	if actual == pattern {
		return true
	}

	// Wildcard match (e.g., "video/*" matches "video/mp4")
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		return strings.HasPrefix(actual, prefix+"/")
	}

	return false
}

// IsValidMimeType checks if a MIME type matches any of the expected patterns
func IsValidMimeType(actual string, expectedPatterns []string) bool {
	for _, pattern := range expectedPatterns {
		if MatchesMimeType(actual, pattern) {
			return true
		}
	}
	return false
}

// ParseSizeString converts human-readable size strings to bytes
func ParseSizeString(sizeStr string) (int64, error) {
	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))

	// Handle bytes
	if strings.HasSuffix(sizeStr, "B") && !strings.HasSuffix(sizeStr, "KB") && !strings.HasSuffix(sizeStr, "MB") && !strings.HasSuffix(sizeStr, "GB") {
		sizeStr = strings.TrimSuffix(sizeStr, "B")
		if size, err := strconv.ParseInt(sizeStr, 10, 64); err == nil {
			return size, nil
		}
	}

	// Handle KB
	if strings.HasSuffix(sizeStr, "KB") {
		sizeStr = strings.TrimSuffix(sizeStr, "KB")
		if size, err := strconv.ParseFloat(sizeStr, 64); err == nil {
			return int64(size * 1024), nil
		}
	}

	// Handle MB
	if strings.HasSuffix(sizeStr, "MB") {
		sizeStr = strings.TrimSuffix(sizeStr, "MB")
		if size, err := strconv.ParseFloat(sizeStr, 64); err == nil {
			return int64(size * 1024 * 1024), nil
		}
	}

	// Handle GB
	if strings.HasSuffix(sizeStr, "GB") {
		sizeStr = strings.TrimSuffix(sizeStr, "GB")
		if size, err := strconv.ParseFloat(sizeStr, 64); err == nil {
			return int64(size * 1024 * 1024 * 1024), nil
		}
	}

	// Try to parse as raw bytes
	if size, err := strconv.ParseInt(sizeStr, 10, 64); err == nil {
		return size, nil
	}

	return 0, fmt.Errorf("invalid size format: %s", sizeStr)
}

// FormatFileSize formats bytes into human-readable format
func FormatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
