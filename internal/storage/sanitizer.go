package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	categoryPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	fileNamePattern = regexp.MustCompile(`^[^/\\]+\.[A-Za-z0-9]+$`)
)

// reservedNameChars are rejected in file names regardless of the pattern.
const reservedNameChars = `<>:"/\|?*`

// Sanitizer validates category and file names and resolves category
// directories confined to the storage root. The canonical form of the root
// is the trust boundary for all traversal checks.
type Sanitizer struct {
	root string
}

// NewSanitizer creates the storage root if absent and canonicalizes it.
func NewSanitizer(root string) (*Sanitizer, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", abs, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize storage root %s: %w", abs, err)
	}
	return &Sanitizer{root: canonical}, nil
}

// Root returns the canonical storage root.
func (s *Sanitizer) Root() string {
	return s.root
}

// CategoryDir resolves the directory for a category, creating it if absent.
// The canonical result must stay a descendant of the canonical storage root;
// any escape is reported as ErrPathTraversal, never silently corrected.
func (s *Sanitizer) CategoryDir(category string) (string, error) {
	if strings.TrimSpace(category) == "" || strings.Contains(category, "..") ||
		!categoryPattern.MatchString(category) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	dir := filepath.Join(s.root, category)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create category directory %s: %w", dir, err)
	}

	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize category directory %s: %w", dir, err)
	}
	if canonical != s.root && !strings.HasPrefix(canonical, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s resolves outside storage root", ErrPathTraversal, category)
	}

	return canonical, nil
}

// ValidateFileName checks a client-supplied file name: exactly one extension
// segment, no path separators, no reserved characters, no dot-dot.
func (s *Sanitizer) ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	if strings.ContainsAny(name, reservedNameChars) {
		return fmt.Errorf("%w: %q contains reserved characters", ErrInvalidFileName, name)
	}
	if !fileNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	return nil
}
