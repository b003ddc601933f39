package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/repairdesk/repair-service/internal/api/dto"
	"github.com/repairdesk/repair-service/internal/service"
)

// RepairHandler manages repair ticket endpoints.
type RepairHandler struct {
	repairs     *service.RepairService
	assignments *service.AssignmentService
}

// NewRepairHandler constructs handler.
func NewRepairHandler(repairs *service.RepairService, assignments *service.AssignmentService) *RepairHandler {
	return &RepairHandler{repairs: repairs, assignments: assignments}
}

// List handles GET /api/repair.
func (h *RepairHandler) List(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	page, err := h.repairs.List(c.UserContext(), actor, service.RepairQuery{
		Status:      c.Query("status"),
		Priority:    c.Query("priority"),
		EquipmentID: c.Query("equipment_id"),
		Search:      c.Query("search"),
		Unassigned:  parseBoolQuery(c, "unassigned", false),
		PageRequest: pageRequest(c),
	})
	if err != nil {
		return err
	}
	setPaginationHeaders(c, page.PageInfo)
	return c.JSON(fiber.Map{"data": dto.NewRepairTicketResponses(page.Items), "pagination": page.PageInfo})
}

// Get handles GET /api/repair/:id.
func (h *RepairHandler) Get(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, history, err := h.repairs.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	resp := dto.NewRepairTicketResponse(ticket)
	resp.History = dto.NewHistoryResponses(history)
	return c.JSON(fiber.Map{"data": resp})
}

// History handles GET /api/repair/:id/history.
func (h *RepairHandler) History(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	history, err := h.repairs.History(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(history)})
}

// Create handles POST /api/repair as multipart/form-data or JSON.
func (h *RepairHandler) Create(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateRepairRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	var uploads []service.Upload
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return invalidPayload()
		}
		for _, fh := range form.File["attachments"] {
			uploads = append(uploads, uploadFromHeader(fh))
		}
	}
	ticket, err := h.repairs.Create(c.UserContext(), actor, service.CreateRepairInput{
		Title:        req.Title,
		Description:  req.Description,
		EquipmentID:  req.EquipmentID,
		DeviceType:   req.DeviceType,
		DeviceNumber: req.DeviceNumber,
		Problem:      req.Problem,
		Priority:     req.Priority,
		Location:     req.Location,
	}, uploads)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewRepairTicketResponse(ticket)})
}

// Update handles PUT /api/repair/:id.
func (h *RepairHandler) Update(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateRepairRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	ticket, err := h.repairs.Update(c.UserContext(), actor, c.Params("id"), service.UpdateRepairInput{
		ID:           req.ID,
		Title:        req.Title,
		Description:  req.Description,
		DeviceType:   req.DeviceType,
		DeviceNumber: req.DeviceNumber,
		Problem:      req.Problem,
		Solution:     req.Solution,
		Priority:     req.Priority,
		Location:     req.Location,
		EquipmentID:  req.EquipmentID,
		HandledBy:    req.HandledBy,
		Status:       req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRepairTicketResponse(ticket)})
}

// Assign handles PUT /api/repair/:id/assign/:technicianId.
func (h *RepairHandler) Assign(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.assignments.Assign(c.UserContext(), actor, c.Params("id"), c.Params("technicianId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRepairTicketResponse(ticket)})
}

// Claim handles POST /api/repair/:id/claim.
func (h *RepairHandler) Claim(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.assignments.SelfAssign(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRepairTicketResponse(ticket)})
}

// Delete handles DELETE /api/repair/:id.
func (h *RepairHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.repairs.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

func uploadFromHeader(fh *multipart.FileHeader) service.Upload {
	return service.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}
