package utils

import (
	"crypto/md5"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileInfo describes a file on disk in the shape stored alongside documents
type FileInfo struct {
	Name      string `json:"name"` // Filename without extension
	Filename  string `json:"filename"`
	Extension string `json:"extension"`
	Size      int64  `json:"size"`
	SizeHuman string `json:"size_human"`
	Type      string `json:"type"` // Coarse category (document, text, web, other)
	MimeType  string `json:"mime_type"`
	Modified  int64  `json:"modified"` // Unix seconds
	Path      string `json:"path"`
}

// DocumentID derives a stable document id from a file's absolute path and
// modification time, so re-indexing an unchanged file reuses the same id
// and a modified file gets a new one.
func DocumentID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Sprintf("%x", md5.Sum([]byte(abs)))
	}

	seed := fmt.Sprintf("%s:%d", abs, info.ModTime().Unix())
	return fmt.Sprintf("%x", md5.Sum([]byte(seed)))
}

// Stat returns file metadata for an existing file
func Stat(path string) (*FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	base := filepath.Base(path)

	return &FileInfo{
		Name:      strings.TrimSuffix(base, filepath.Ext(base)),
		Filename:  base,
		Extension: ext,
		Size:      info.Size(),
		SizeHuman: FormatFileSize(info.Size()),
		Type:      FileCategory(ext),
		MimeType:  mime.TypeByExtension(ext),
		Modified:  info.ModTime().Unix(),
		Path:      path,
	}, nil
}

// FileExists reports whether path exists and is a regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// FormatFileSize renders a byte count as a human readable string
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// FileCategory maps an extension to a coarse file category
func FileCategory(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf", ".doc", ".docx", ".ppt", ".pptx", ".xls", ".xlsx", ".hwp", ".rtf", ".odt":
		return "document"
	case ".txt", ".md", ".csv", ".log":
		return "text"
	case ".html", ".htm", ".xml":
		return "web"
	default:
		return "other"
	}
}

// FindFiles walks root and returns files matching any include pattern and
// no exclude pattern. Matching is case-insensitive against the base name.
// The result is sorted for deterministic batch ordering.
func FindFiles(root string, includePatterns, excludePatterns []string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("source path not accessible: %w", err)
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if matchesAny(d.Name(), excludePatterns) && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if matchesAny(name, excludePatterns) {
			return nil
		}
		if matchesAny(name, includePatterns) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk source path: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

func matchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range patterns {
		if ok, err := filepath.Match(strings.ToLower(pattern), lower); err == nil && ok {
			return true
		}
	}
	return false
}
