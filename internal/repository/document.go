package repository

import (
	"context"
	"time"

	"docvault/internal/model"
)

// Package repository contains data access contracts for documents, versions
// and the tenant lookups they depend on. Implementations live in subpackages
// (e.g. postgres) and hold SQL only — no business logic.

// ListQuery holds limit/offset pagination and an optional name filter.
type ListQuery struct {
	Limit  int
	Offset int
	Search string
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}

// DocumentUpdate carries a partial document update; nil fields are left
// untouched.
type DocumentUpdate struct {
	Name   *string
	TypeID *string
	Status *model.DocumentStatus
}

// NewVersion carries everything needed to insert a version row except the
// version number, which the repository allocates inside the insert
// transaction.
type NewVersion struct {
	ID               string
	DocumentID       string
	Filename         string
	MimeType         string
	Size             int64
	SHA256           string
	StoragePath      string
	UploadedByUserID *string
	ActivatedAt      time.Time
	CreatedAt        time.Time
}

// DocumentRepository defines persistence for documents. Lookups that attach
// the current version do so via a single query; sql.ErrNoRows signals
// absence.
type DocumentRepository interface {
	// Create inserts a new document row and returns the stored record.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document with its current version attached.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// FindByIDInEstablishment returns the document only if it belongs to the
	// given establishment.
	FindByIDInEstablishment(ctx context.Context, establishmentID, id string) (*model.Document, error)

	// List returns a page of documents for one establishment, newest first,
	// each with its current version attached.
	List(ctx context.Context, establishmentID string, q ListQuery) (*PageResult[model.Document], error)

	// Update applies a partial update and returns the new state.
	Update(ctx context.Context, id string, upd DocumentUpdate) (*model.Document, error)

	// DeleteWithVersions removes the document and all of its version rows in
	// one transaction and returns the storage paths that were orphaned.
	DeleteWithVersions(ctx context.Context, id string) ([]string, error)
}

// VersionRepository defines persistence for document versions, including the
// serialized allocation of version numbers.
type VersionRepository interface {
	// CreateWithNextNumber allocates max(version_number)+1 for the document
	// and inserts the row in the same transaction, updating the parent
	// document's current version pointer and status. The unique constraint
	// on (document_id, version_number) makes concurrent allocation safe; the
	// implementation retries on conflict.
	CreateWithNextNumber(ctx context.Context, v NewVersion) (*model.DocumentVersion, error)

	// FindByID returns the version only if it belongs to the given document.
	FindByID(ctx context.Context, documentID, versionID string) (*model.DocumentVersion, error)

	// ListByDocument returns versions ordered by number descending with the
	// uploader identity projected.
	ListByDocument(ctx context.Context, documentID string) ([]model.DocumentVersion, error)

	// Activate re-points the document at the given version and re-stamps its
	// activation time, atomically. When archivePrevious is set, the
	// previously current version is marked ARCHIVED in the same transaction.
	Activate(ctx context.Context, documentID, versionID string, activatedAt time.Time, archivePrevious bool) (*model.DocumentVersion, error)

	// DeleteAndRestore removes a version row and restores the parent
	// document's previous current-version pointer and status. Used to
	// compensate a committed version whose blob promotion failed.
	DeleteAndRestore(ctx context.Context, documentID, versionID string, prevCurrentVersionID *string, prevStatus model.DocumentStatus) error
}

// EstablishmentRepository resolves the tenant scope for document creation.
type EstablishmentRepository interface {
	FindByID(ctx context.Context, id string) (*model.Establishment, error)
}
