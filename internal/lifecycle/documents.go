package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"intake/internal/db"
	"intake/internal/model"

	"github.com/google/uuid"
)

const (
	// MaxFileSize is the largest accepted document, in bytes.
	MaxFileSize = 10 * 1024 * 1024
	// MaxPhotos is how many photos the application form offers.
	MaxPhotos = 5
)

// AllowedFileTypes are the accepted document extensions.
var AllowedFileTypes = []string{"pdf", "jpg", "jpeg", "png", "doc", "docx"}

// DocumentInput describes a file the applicant uploaded. Only metadata is
// recorded; the bytes live in external storage.
type DocumentInput struct {
	ApplicationID    string `json:"application_id" binding:"required"`
	Email            string `json:"email" binding:"required"`
	DocumentType     string `json:"document_type" binding:"required"`
	OriginalFilename string `json:"original_filename" binding:"required"`
	FileSize         int64  `json:"file_size"`
	MimeType         string `json:"mime_type"`
}

// AddDocument records document metadata on an open application owned by
// in.Email. Each document type can be attached once.
func (s *Service) AddDocument(ctx context.Context, in DocumentInput) (*model.PartnerDocument, error) {
	app, err := s.Lookup(ctx, in.ApplicationID, in.Email)
	if err != nil {
		return nil, err
	}
	if app.Status.Terminal() {
		return nil, &ValidationError{Field: "application_id", Message: fmt.Sprintf("documents cannot be added to a %s application", app.Status)}
	}

	var errs ValidationErrors
	if !slices.Contains(model.DocumentTypes, in.DocumentType) {
		errs = append(errs, &ValidationError{Field: "document_type", Message: "unknown document type"})
	}
	name := strings.TrimSpace(in.OriginalFilename)
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if !slices.Contains(AllowedFileTypes, ext) {
		errs = append(errs, &ValidationError{Field: "original_filename", Message: "allowed file types: " + strings.Join(AllowedFileTypes, ", ")})
	}
	if in.FileSize <= 0 || in.FileSize > MaxFileSize {
		errs = append(errs, &ValidationError{Field: "file_size", Message: fmt.Sprintf("file size must be between 1 and %d bytes", MaxFileSize)})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	doc := &model.PartnerDocument{
		ID:               uuid.NewString(),
		ApplicationID:    app.ID,
		DocumentType:     in.DocumentType,
		OriginalFilename: name,
		FileSize:         in.FileSize,
		MimeType:         strings.TrimSpace(in.MimeType),
	}
	doc.StoragePath = fmt.Sprintf("partner_documents/%s/%s.%s", app.ID, doc.ID, ext)
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, &ValidationError{Field: "document_type", Message: "a document of this type was already uploaded"}
		}
		return nil, err
	}
	s.logger.Info("Document recorded", "id", app.ID, "document_type", doc.DocumentType, "size", doc.FileSize)
	return doc, nil
}

// Documents lists the documents of application id.
func (s *Service) Documents(ctx context.Context, id string) ([]model.PartnerDocument, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, id)
}
