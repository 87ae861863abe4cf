package model

import (
	"encoding/json"
	"time"
)

// DocumentStatus is the lifecycle state of a document. A document starts as
// DRAFT and becomes PUBLISHED when its first version is created; it never
// reverts to DRAFT.
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "DRAFT"
	DocumentStatusPublished DocumentStatus = "PUBLISHED"
)

// Valid reports whether s is a known document status.
func (s DocumentStatus) Valid() bool {
	return s == DocumentStatusDraft || s == DocumentStatusPublished
}

// VersionStatus is the state of a single document version. Versions are
// created PUBLISHED; ARCHIVED is only reachable through the optional
// archive-on-activate policy.
type VersionStatus string

const (
	VersionStatusPublished VersionStatus = "PUBLISHED"
	VersionStatusArchived  VersionStatus = "ARCHIVED"
)

// Document is the logical container for a compliance artifact within one
// establishment. CompanyID is denormalized from the establishment at creation
// time and never changes afterwards.
// This is a pure domain model with no database-specific dependencies or tags.
type Document struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	TypeID           string           `json:"type_id"`
	EstablishmentID  string           `json:"establishment_id"`
	CompanyID        string           `json:"company_id"`
	Status           DocumentStatus   `json:"status"`
	CurrentVersionID *string          `json:"current_version_id"`
	CurrentVersion   *DocumentVersion `json:"current_version,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// DocumentVersion is one immutable upload of bytes for a document. Version
// numbers are contiguous starting at 1 per document; the storage path is
// globally unique and never reused.
type DocumentVersion struct {
	ID               string        `json:"id"`
	DocumentID       string        `json:"document_id"`
	VersionNumber    int           `json:"version_number"`
	Filename         string        `json:"filename"`
	MimeType         string        `json:"mime_type"`
	Size             int64         `json:"size"`
	SHA256           string        `json:"sha256"`
	StoragePath      string        `json:"storage_path"`
	UploadedByUserID *string       `json:"uploaded_by_user_id"`
	Status           VersionStatus `json:"version_status"`
	ActivatedAt      time.Time     `json:"activated_at"`
	CreatedAt        time.Time     `json:"created_at"`
	UploadedBy       *UserRef      `json:"uploaded_by,omitempty"`
}

// URLPath returns the URL-ish reference for the version's bytes: the storage
// path with a leading slash.
func (v *DocumentVersion) URLPath() string {
	if v.StoragePath == "" {
		return ""
	}
	return "/" + v.StoragePath
}

// MarshalJSON adds the derived url field to the serialized version.
func (v DocumentVersion) MarshalJSON() ([]byte, error) {
	type alias DocumentVersion
	return json.Marshal(struct {
		alias
		URL string `json:"url"`
	}{alias(v), v.URLPath()})
}

// Establishment is the tenant scope a document belongs to. Only the fields
// needed to resolve the company are carried here; the rest of the entity is
// owned by an external system.
type Establishment struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
}

// UserRef is the uploader identity projection exposed on version listings.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
