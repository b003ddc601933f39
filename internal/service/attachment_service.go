package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-service/internal/config"
	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/events"
	"github.com/repairdesk/repair-service/internal/repository"
	"github.com/repairdesk/repair-service/internal/storage"
	apperrors "github.com/repairdesk/repair-service/pkg/util/errorutil"
)

// Upload is a file received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// AttachmentService stores and serves ticket attachments.
type AttachmentService struct {
	tickets     repository.RepairTicketRepository
	attachments repository.AttachmentRepository
	files       FileStore
	dispatcher  events.Dispatcher
	maxSize     int64
	allowed     map[string]struct{}
	logger      *zap.Logger
}

// AttachmentDependencies bundles collaborators for the attachment service.
type AttachmentDependencies struct {
	TicketRepo     repository.RepairTicketRepository
	AttachmentRepo repository.AttachmentRepository
	Files          FileStore
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewAttachmentService constructs the service.
func NewAttachmentService(cfg config.StorageConfig, deps AttachmentDependencies) *AttachmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &AttachmentService{
		tickets:     deps.TicketRepo,
		attachments: deps.AttachmentRepo,
		files:       deps.Files,
		dispatcher:  deps.Dispatcher,
		maxSize:     cfg.MaxFileSizeBytes,
		allowed:     allowed,
		logger:      logger,
	}
}

// Validate checks size and extension before anything is written.
func (s *AttachmentService) Validate(u Upload) error {
	if u.Open == nil || u.Size <= 0 || strings.TrimSpace(u.FileName) == "" {
		return apperrors.NewValidationError("file is empty", map[string]any{"field": "file"})
	}
	if u.Size > s.maxSize {
		return apperrors.NewValidationError("file exceeds size limit", map[string]any{
			"file_name": u.FileName,
			"max_bytes": s.maxSize,
		})
	}
	ext := strings.ToLower(filepath.Ext(u.FileName))
	if _, ok := s.allowed[ext]; !ok {
		return apperrors.NewValidationError("file type not allowed", map[string]any{
			"file_name": u.FileName,
			"extension": ext,
		})
	}
	return nil
}

// Upload attaches a file to a ticket the actor may edit.
func (s *AttachmentService) Upload(ctx context.Context, actor *domain.User, ticketID string, u Upload) (*domain.Attachment, error) {
	ticket, err := getTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if !canEditTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	if err := s.Validate(u); err != nil {
		return nil, err
	}
	att, err := s.save(ctx, ticket, actor, u)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, att)
	return att, nil
}

// save writes the blob then its metadata; the blob is removed if metadata fails.
func (s *AttachmentService) save(ctx context.Context, ticket *domain.RepairTicket, actor *domain.User, u Upload) (*domain.Attachment, error) {
	src, err := u.Open()
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("open upload: %w", err))
	}
	defer src.Close()

	stored, n, err := s.files.Save(u.FileName, io.LimitReader(src, s.maxSize+1))
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("store upload: %w", err))
	}
	if n > s.maxSize {
		s.removeFile(stored)
		return nil, apperrors.NewValidationError("file exceeds size limit", map[string]any{"file_name": u.FileName, "max_bytes": s.maxSize})
	}

	contentType := u.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(u.FileName))); byExt != "" {
			contentType = byExt
		} else {
			contentType = "application/octet-stream"
		}
	}

	att := &domain.Attachment{
		TicketID:       ticket.ID,
		FileName:       storage.SanitizeFileName(u.FileName),
		StoredFileName: stored,
		ContentType:    contentType,
		SizeBytes:      n,
	}
	if actor != nil {
		att.UploadedBy = &actor.ID
	}
	if err := s.attachments.Create(ctx, att); err != nil {
		s.removeFile(stored)
		return nil, apperrors.MapError(err)
	}
	return att, nil
}

func (s *AttachmentService) announce(ctx context.Context, att *domain.Attachment) {
	publish(ctx, s.dispatcher, events.New(events.EventAttachmentAdded, att.TicketID, att.UploadedBy, events.AttachmentAddedPayload{
		AttachmentID: att.ID,
		FileName:     att.FileName,
		SizeBytes:    att.SizeBytes,
	}))
}

// List returns attachments of a ticket the actor may view.
func (s *AttachmentService) List(ctx context.Context, actor *domain.User, ticketID string) ([]domain.Attachment, error) {
	ticket, err := getTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if !canViewTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return s.listForTicket(ctx, ticket.ID)
}

func (s *AttachmentService) listForTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	items, err := s.attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if items == nil {
		items = []domain.Attachment{}
	}
	return items, nil
}

// Open returns the metadata and content of one attachment. The caller closes the reader.
func (s *AttachmentService) Open(ctx context.Context, actor *domain.User, ticketID, attachmentID string) (*domain.Attachment, io.ReadCloser, error) {
	att, err := s.visibleAttachment(ctx, actor, ticketID, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.files.Open(att.StoredFileName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperrors.NewNotFound("attachment file", map[string]any{"attachment_id": att.ID})
		}
		return nil, nil, apperrors.NewInternalError(err)
	}
	return att, rc, nil
}

// Delete removes an attachment. Admins may delete any; others only their own uploads.
func (s *AttachmentService) Delete(ctx context.Context, actor *domain.User, ticketID, attachmentID string) error {
	att, err := s.visibleAttachment(ctx, actor, ticketID, attachmentID)
	if err != nil {
		return err
	}
	if !canDeleteAttachment(actor, att) {
		return apperrors.NewForbidden("only the uploader or an admin can delete this attachment")
	}
	if err := s.attachments.Delete(ctx, att.ID); err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewNotFound("attachment", map[string]any{"attachment_id": attachmentID})
		}
		return apperrors.MapError(err)
	}
	s.removeFile(att.StoredFileName)
	return nil
}

func (s *AttachmentService) visibleAttachment(ctx context.Context, actor *domain.User, ticketID, attachmentID string) (*domain.Attachment, error) {
	ticket, err := getTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if !canViewTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	att, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil || att.TicketID != ticket.ID {
		if err == nil || apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("attachment", map[string]any{"attachment_id": attachmentID})
		}
		return nil, apperrors.MapError(err)
	}
	return att, nil
}

func (s *AttachmentService) removeFiles(items []domain.Attachment) {
	for _, att := range items {
		s.removeFile(att.StoredFileName)
	}
}

func (s *AttachmentService) removeFile(stored string) {
	if err := s.files.Delete(stored); err != nil {
		s.logger.Warn("failed to remove stored file", zap.String("stored_file_name", stored), zap.Error(err))
	}
}
