package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".txt":  true,
	".doc":  true,
	".docx": true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// AllowedFile reports whether the file extension is accepted for upload.
func AllowedFile(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// SanitizeFilename strips path components and replaces anything outside
// a conservative character set.
func SanitizeFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	return name
}
