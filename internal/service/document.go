package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

var (
	ErrIDRequired            = errors.New("id is required")
	ErrDocumentNotFound      = errors.New("document not found")
	ErrEstablishmentNotFound = errors.New("establishment not found")
	ErrVersionNotFound       = errors.New("version not found")
	ErrFileRequired          = errors.New("file is required")
)

// StorageError marks a content store failure so callers can distinguish it
// from lookup and validation errors.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// FileUpload is the raw upload handed to version creation. Content must be
// non-empty; MimeType defaults to application/octet-stream.
type FileUpload struct {
	Content  []byte
	Filename string
	MimeType string
	Size     int64
}

// CreateDocumentInput holds the fields for a new document.
type CreateDocumentInput struct {
	Name   string `json:"name"`
	TypeID string `json:"type_id"`
}

// Validate implements the input rules for document creation.
func (in CreateDocumentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.TypeID, validation.Required),
	)
}

// UpdateDocumentInput is a partial document update; nil fields are ignored.
type UpdateDocumentInput struct {
	Name   *string               `json:"name"`
	TypeID *string               `json:"type_id"`
	Status *model.DocumentStatus `json:"status"`
}

// Validate rejects empty names and unknown statuses.
func (in UpdateDocumentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&in.TypeID, validation.NilOrNotEmpty),
		validation.Field(&in.Status, validation.By(func(v interface{}) error {
			s, _ := v.(*model.DocumentStatus)
			if s == nil {
				return nil
			}
			if !s.Valid() {
				return errors.New("must be DRAFT or PUBLISHED")
			}
			return nil
		})),
	)
}

// ListQuery is the pagination/filter input for document listings.
type ListQuery struct {
	Limit  int
	Offset int
	Search string
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// Cleaner receives orphaned storage paths for best-effort removal after a
// document deletion has committed.
type Cleaner interface {
	Enqueue(paths []string)
}

// DocumentService defines the document version storage use cases.
type DocumentService interface {
	// List returns documents of one establishment with their current
	// versions, using limit/offset and a total count.
	List(ctx context.Context, establishmentID string, q ListQuery) (*DocumentListResult, error)

	// Get returns a single document with its current version.
	Get(ctx context.Context, id string) (*model.Document, error)

	// Create makes a DRAFT document scoped to the establishment, with the
	// company id denormalized from it.
	Create(ctx context.Context, establishmentID string, in CreateDocumentInput) (*model.Document, error)

	// Update applies a partial update to a document.
	Update(ctx context.Context, id string, in UpdateDocumentInput) (*model.Document, error)

	// Delete removes the document and all its versions atomically in the
	// database, then hands the orphaned files to the cleaner.
	Delete(ctx context.Context, id string) error

	// ListVersions returns a document's versions by number descending with
	// uploader identity projected.
	ListVersions(ctx context.Context, documentID string) ([]model.DocumentVersion, error)

	// CreateVersion stores the upload as the document's next immutable
	// version and makes it current.
	CreateVersion(ctx context.Context, establishmentID, documentID string, file FileUpload, uploadedBy *string) (*model.DocumentVersion, error)

	// ActivateVersion switches the document's current version pointer to an
	// existing version. Idempotent. userID identifies the actor for the
	// audit log only.
	ActivateVersion(ctx context.Context, documentID, versionID string, userID *string) (*model.DocumentVersion, error)
}

// Options tune document service policy.
type Options struct {
	// ArchivePreviousOnActivate marks the previously current version
	// ARCHIVED when another version is activated.
	ArchivePreviousOnActivate bool
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store    storage.Storage
	docs     repository.DocumentRepository
	versions repository.VersionRepository
	ests     repository.EstablishmentRepository
	cleaner  Cleaner
	log      hclog.Logger
	opts     Options
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(
	store storage.Storage,
	docs repository.DocumentRepository,
	versions repository.VersionRepository,
	ests repository.EstablishmentRepository,
	cleaner Cleaner,
	log hclog.Logger,
	opts Options,
) DocumentService {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &documentService{
		store:    store,
		docs:     docs,
		versions: versions,
		ests:     ests,
		cleaner:  cleaner,
		log:      log.Named("documents"),
		opts:     opts,
	}
}

// List returns paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, establishmentID string, q ListQuery) (*DocumentListResult, error) {
	if establishmentID == "" {
		return nil, ErrIDRequired
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	res, err := s.docs.List(ctx, establishmentID, repository.ListQuery{
		Limit:  q.Limit,
		Offset: q.Offset,
		Search: q.Search,
	})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a document by ID with its current version attached.
func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// Create resolves the company from the establishment and stores a DRAFT
// document with no versions.
func (s *documentService) Create(ctx context.Context, establishmentID string, in CreateDocumentInput) (*model.Document, error) {
	if establishmentID == "" {
		return nil, ErrIDRequired
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	est, err := s.ests.FindByID(ctx, establishmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEstablishmentNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	doc := &model.Document{
		ID:              uuid.New().String(),
		Name:            in.Name,
		TypeID:          in.TypeID,
		EstablishmentID: est.ID,
		CompanyID:       est.CompanyID,
		Status:          model.DocumentStatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return s.docs.Create(ctx, doc)
}

// Update applies a partial update.
func (s *documentService) Update(ctx context.Context, id string, in UpdateDocumentInput) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.docs.Update(ctx, id, repository.DocumentUpdate{
		Name:   in.Name,
		TypeID: in.TypeID,
		Status: in.Status,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// Delete removes the document and all its versions in one database
// transaction; the physical files are cleaned up afterwards and never fail
// the operation.
func (s *documentService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	paths, err := s.docs.DeleteWithVersions(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDocumentNotFound
		}
		return err
	}
	if len(paths) > 0 && s.cleaner != nil {
		s.cleaner.Enqueue(paths)
	}
	return nil
}

// ListVersions returns a document's versions, newest number first.
func (s *documentService) ListVersions(ctx context.Context, documentID string) ([]model.DocumentVersion, error) {
	if documentID == "" {
		return nil, ErrIDRequired
	}
	if _, err := s.docs.FindByID(ctx, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return s.versions.ListByDocument(ctx, documentID)
}

// CreateVersion runs the two-phase write: the blob is staged first, the
// database transaction commits the version row referencing its final path,
// and only then is the blob promoted into place. A failed promote is
// compensated by removing the row and restoring the document pointer.
func (s *documentService) CreateVersion(ctx context.Context, establishmentID, documentID string, file FileUpload, uploadedBy *string) (*model.DocumentVersion, error) {
	if establishmentID == "" || documentID == "" {
		return nil, ErrIDRequired
	}
	if len(file.Content) == 0 {
		return nil, ErrFileRequired
	}

	doc, err := s.docs.FindByIDInEstablishment(ctx, establishmentID, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}

	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	sum := storage.SHA256Hex(file.Content)
	versionID := uuid.New().String()
	key := storage.VersionKey(doc.CompanyID, doc.EstablishmentID, doc.ID, versionID, file.Filename)

	if _, err := s.store.Stage(ctx, key, bytes.NewReader(file.Content), storage.PutObjectOptions{
		Size:        int64(len(file.Content)),
		ContentType: mimeType,
		Metadata:    map[string]string{"sha256": sum},
	}); err != nil {
		return nil, &StorageError{Op: "stage", Err: err}
	}

	now := time.Now().UTC()
	created, err := s.versions.CreateWithNextNumber(ctx, repository.NewVersion{
		ID:               versionID,
		DocumentID:       doc.ID,
		Filename:         storage.SanitizeFilename(file.Filename),
		MimeType:         mimeType,
		Size:             int64(len(file.Content)),
		SHA256:           sum,
		StoragePath:      key,
		UploadedByUserID: uploadedBy,
		ActivatedAt:      now,
		CreatedAt:        now,
	})
	if err != nil {
		if derr := s.store.Discard(ctx, key); derr != nil {
			s.log.Warn("failed to discard staged blob", "key", key, "error", derr)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("commit version: %w", err)
	}

	if err := s.store.Promote(ctx, key); err != nil {
		// The row is committed but the bytes are not in place: compensate by
		// removing the row and restoring the document's previous pointer.
		if cerr := s.versions.DeleteAndRestore(ctx, doc.ID, versionID, doc.CurrentVersionID, doc.Status); cerr != nil {
			s.log.Error("compensation failed after promote error; version row is orphaned",
				"document_id", doc.ID, "version_id", versionID, "promote_error", err, "error", cerr)
		}
		if derr := s.store.Discard(ctx, key); derr != nil {
			s.log.Warn("failed to discard staged blob", "key", key, "error", derr)
		}
		return nil, &StorageError{Op: "promote", Err: err}
	}

	s.log.Info("version created",
		"document_id", doc.ID, "version_id", created.ID, "version_number", created.VersionNumber, "size", created.Size)
	return created, nil
}

// ActivateVersion re-points the document at an existing version. Calling it
// twice with the same arguments produces the same end state.
func (s *documentService) ActivateVersion(ctx context.Context, documentID, versionID string, userID *string) (*model.DocumentVersion, error) {
	if documentID == "" || versionID == "" {
		return nil, ErrIDRequired
	}
	v, err := s.versions.Activate(ctx, documentID, versionID, time.Now().UTC(), s.opts.ArchivePreviousOnActivate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}
	actor := ""
	if userID != nil {
		actor = *userID
	}
	s.log.Info("version activated",
		"document_id", documentID, "version_id", versionID, "user_id", actor)
	return v, nil
}
