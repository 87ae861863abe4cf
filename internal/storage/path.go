package storage

import (
	"path"
	"strings"
)

const uploadsPrefix = "uploads"

// VersionKey builds the deterministic storage key for a version's bytes:
// uploads/{companyID}/{establishmentID}/{documentID}/{versionID}/{filename}.
// The version id component makes the key collision-free across all tenants
// and over the lifetime of the system, even after deletions.
func VersionKey(companyID, establishmentID, documentID, versionID, filename string) string {
	return path.Join(uploadsPrefix, companyID, establishmentID, documentID, versionID, SanitizeFilename(filename))
}

// SanitizeFilename strips any directory components from a client-supplied
// filename so it cannot escape its version directory. An empty or purely
// structural name falls back to "file".
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "file"
	}
	return name
}
