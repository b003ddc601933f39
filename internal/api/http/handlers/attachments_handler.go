package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/repairdesk/repair-service/internal/api/dto"
	"github.com/repairdesk/repair-service/internal/service"
	apperrors "github.com/repairdesk/repair-service/pkg/util/errorutil"
)

// AttachmentsHandler manages files attached to repair tickets.
type AttachmentsHandler struct {
	attachments *service.AttachmentService
}

// NewAttachmentsHandler constructs handler.
func NewAttachmentsHandler(attachmentService *service.AttachmentService) *AttachmentsHandler {
	return &AttachmentsHandler{attachments: attachmentService}
}

// Upload handles POST /api/repair/:id/attachments with multipart field "file".
func (h *AttachmentsHandler) Upload(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", map[string]any{"field": "file"})
	}
	att, err := h.attachments.Upload(c.UserContext(), actor, c.Params("id"), uploadFromHeader(fh))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAttachmentResponse(att)})
}

// List handles GET /api/repair/:id/attachments.
func (h *AttachmentsHandler) List(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	items, err := h.attachments.List(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAttachmentResponses(items)})
}

// Download handles GET /api/repair/:id/attachments/:attachmentId.
func (h *AttachmentsHandler) Download(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	att, rc, err := h.attachments.Open(c.UserContext(), actor, c.Params("id"), c.Params("attachmentId"))
	if err != nil {
		return err
	}
	c.Attachment(att.FileName)
	if att.ContentType != "" {
		c.Set(fiber.HeaderContentType, att.ContentType)
	}
	// The response body stream closes rc once it has been written.
	return c.SendStream(rc, int(att.SizeBytes))
}

// Delete handles DELETE /api/repair/:id/attachments/:attachmentId.
func (h *AttachmentsHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.attachments.Delete(c.UserContext(), actor, c.Params("id"), c.Params("attachmentId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
