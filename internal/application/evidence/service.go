// Package evidence issues upload URLs for supporting documents and keeps their metadata
// next to the activity records they back.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultBucket = "evidence"

// Invalidator drops cached read models for a project.
type Invalidator interface {
	Invalidate(ctx context.Context, projectID uuid.UUID)
}

// ErrStorageNotConfigured is returned by RequestUpload when no storage backend is set.
var ErrStorageNotConfigured = errors.New("evidence storage is not configured")

type Service struct {
	DB         *gorm.DB
	Storage    StorageClient
	StorageURL string
	Bucket     string
	Cache      Invalidator
	Now        func() time.Time
}

// UploadTicket is returned to the client, which then PUTs the file to UploadURL.
type UploadTicket struct {
	Evidence  domain.Evidence `json:"evidence"`
	UploadURL string          `json:"uploadUrl"`
	PublicURL string          `json:"publicUrl"`
	Path      string          `json:"path"`
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func cleanFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = unsafeName.ReplaceAllString(name, "_")
	if name == "." || name == "/" || name == "_" {
		return ""
	}
	return name
}

func (s *Service) bucket() string {
	if s.Bucket != "" {
		return s.Bucket
	}
	return DefaultBucket
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// RequestUpload signs an upload URL for a file backing one activity record, then stores
// the evidence row and bumps the record's evidence count in one transaction.
func (s *Service) RequestUpload(ctx context.Context, projectID, recordID uuid.UUID, actor domain.Actor, fileName string) (*UploadTicket, error) {
	if !constants.AllowedRole(constants.UploadEvidence, actor.Role) {
		return nil, &domain.PermissionError{Permission: constants.UploadEvidence, Role: actor.Role}
	}
	name := cleanFileName(fileName)
	if name == "" {
		return nil, &domain.ValidationError{Field: "file_name", Rule: "is required"}
	}
	if err := s.checkEditable(ctx, projectID, recordID); err != nil {
		return nil, err
	}

	now := s.now()
	objectPath := fmt.Sprintf("projects/%s/%s/%d-%s", projectID, recordID, now.UnixMilli(), name)
	if s.Storage == nil {
		return nil, domain.Persistence("sign upload url", ErrStorageNotConfigured)
	}
	signedURL, err := s.Storage.CreateSignedUploadURL(ctx, s.bucket(), objectPath)
	if err != nil {
		return nil, err
	}
	publicURL := fmt.Sprintf("%s/storage/v1/object/public/%s/%s", strings.TrimRight(s.StorageURL, "/"), s.bucket(), objectPath)

	ev := domain.Evidence{
		ProjectID:        projectID,
		ActivityRecordID: recordID,
		FileName:         name,
		StoragePath:      objectPath,
		PublicURL:        publicURL,
		UploadedBy:       actor.ID,
		UploadedAt:       now,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// status may have moved on while the URL was signed
		if err := checkEditableTx(tx, projectID, recordID, true); err != nil {
			return err
		}
		if err := tx.Create(&ev).Error; err != nil {
			return err
		}
		return tx.Model(&domain.ActivityRecord{}).Where("id = ?", recordID).
			UpdateColumn("evidence_count", gorm.Expr("evidence_count + 1")).Error
	})
	if err != nil {
		return nil, domain.Persistence("save evidence", err)
	}
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, projectID)
	}
	return &UploadTicket{Evidence: ev, UploadURL: signedURL, PublicURL: publicURL, Path: objectPath}, nil
}

func (s *Service) checkEditable(ctx context.Context, projectID, recordID uuid.UUID) error {
	return domain.Persistence("load activity record", checkEditableTx(s.DB.WithContext(ctx), projectID, recordID, false))
}

// With lock set the project row is held FOR UPDATE until the transaction ends.
func checkEditableTx(tx *gorm.DB, projectID, recordID uuid.UUID, lock bool) error {
	var p domain.Project
	q := tx
	if lock {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Where("id = ?", projectID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.NotFoundError{Entity: "project", ID: projectID.String()}
	}
	if err != nil {
		return err
	}
	if !p.Status.Editable() {
		return &domain.InvalidStateError{Operation: "upload evidence", Status: p.Status, Allowed: domain.EditableStatuses}
	}
	var n int64
	if err := tx.Model(&domain.ActivityRecord{}).Where("id = ? AND project_id = ?", recordID, projectID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: "activity record", ID: recordID.String()}
	}
	return nil
}

// List returns a project's evidence, newest first.
func (s *Service) List(ctx context.Context, projectID uuid.UUID) ([]domain.Evidence, error) {
	out := []domain.Evidence{}
	if err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).Order("uploaded_at DESC").Find(&out).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "list evidence", Err: err}
	}
	return out, nil
}
