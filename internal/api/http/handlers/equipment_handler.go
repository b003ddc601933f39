package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/repairdesk/repair-service/internal/api/dto"
	"github.com/repairdesk/repair-service/internal/service"
	apperrors "github.com/repairdesk/repair-service/pkg/util/errorutil"
)

// EquipmentHandler exposes the equipment inventory.
type EquipmentHandler struct {
	equipment *service.EquipmentService
}

// NewEquipmentHandler constructs handler.
func NewEquipmentHandler(equipmentService *service.EquipmentService) *EquipmentHandler {
	return &EquipmentHandler{equipment: equipmentService}
}

// List handles GET /api/equipment.
func (h *EquipmentHandler) List(c *fiber.Ctx) error {
	page, err := h.equipment.List(c.UserContext(), service.EquipmentQuery{
		Search:      c.Query("search"),
		DeviceType:  c.Query("device_type"),
		Status:      c.Query("status"),
		Department:  c.Query("department"),
		SortBy:      c.Query("sort_by"),
		SortOrder:   c.Query("sort_order"),
		PageRequest: pageRequest(c),
	})
	if err != nil {
		return err
	}
	setPaginationHeaders(c, page.PageInfo)
	return c.JSON(fiber.Map{"data": dto.NewEquipmentResponses(page.Items), "pagination": page.PageInfo})
}

// Get handles GET /api/equipment/:id.
func (h *EquipmentHandler) Get(c *fiber.Ctx) error {
	e, err := h.equipment.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEquipmentResponse(e)})
}

// Create handles POST /api/equipment.
func (h *EquipmentHandler) Create(c *fiber.Ctx) error {
	input, err := parseEquipmentRequest(c, "")
	if err != nil {
		return err
	}
	e, err := h.equipment.Create(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewEquipmentResponse(e)})
}

// Update handles PUT /api/equipment/:id.
func (h *EquipmentHandler) Update(c *fiber.Ctx) error {
	id := c.Params("id")
	input, err := parseEquipmentRequest(c, id)
	if err != nil {
		return err
	}
	e, err := h.equipment.Update(c.UserContext(), id, input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEquipmentResponse(e)})
}

// Delete handles DELETE /api/equipment/:id.
func (h *EquipmentHandler) Delete(c *fiber.Ctx) error {
	if err := h.equipment.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// DeviceTypes handles GET /api/equipment/device-types.
func (h *EquipmentHandler) DeviceTypes(c *fiber.Ctx) error {
	values, err := h.equipment.DeviceTypes(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": values})
}

// Departments handles GET /api/equipment/departments.
func (h *EquipmentHandler) Departments(c *fiber.Ctx) error {
	values, err := h.equipment.Departments(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": values})
}

// ListMaintenance handles GET /api/equipment/:id/maintenance.
func (h *EquipmentHandler) ListMaintenance(c *fiber.Ctx) error {
	records, err := h.equipment.ListMaintenance(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMaintenanceResponses(records)})
}

// RecordMaintenance handles POST /api/equipment/:id/maintenance.
func (h *EquipmentHandler) RecordMaintenance(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.MaintenanceRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	input := service.MaintenanceInput{
		MaintenanceType: req.MaintenanceType,
		Description:     req.Description,
		Cost:            req.Cost,
		Result:          req.Result,
	}
	date, err := parseDate("maintenance_date", &req.MaintenanceDate)
	if err != nil {
		return err
	}
	if date != nil {
		input.MaintenanceDate = *date
	}
	if input.NextMaintenanceDate, err = parseDate("next_maintenance_date", req.NextMaintenanceDate); err != nil {
		return err
	}
	record, err := h.equipment.RecordMaintenance(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewMaintenanceResponse(record)})
}

func parseEquipmentRequest(c *fiber.Ctx, pathID string) (service.EquipmentInput, error) {
	var req dto.EquipmentRequest
	if err := c.BodyParser(&req); err != nil {
		return service.EquipmentInput{}, invalidPayload()
	}
	if pathID != "" && req.ID != nil && strings.TrimSpace(*req.ID) != "" && *req.ID != pathID {
		return service.EquipmentInput{}, apperrors.NewValidationError("id mismatch", map[string]any{"path_id": pathID, "body_id": *req.ID})
	}
	input := service.EquipmentInput{
		Name:         req.Name,
		DeviceType:   req.DeviceType,
		SerialNumber: req.SerialNumber,
		Status:       req.Status,
		Department:   req.Department,
		Location:     req.Location,
		Notes:        req.Notes,
		ImageURL:     req.ImageURL,
	}
	var err error
	if input.PurchaseDate, err = parseDate("purchase_date", req.PurchaseDate); err != nil {
		return service.EquipmentInput{}, err
	}
	if input.LastMaintenanceDate, err = parseDate("last_maintenance_date", req.LastMaintenanceDate); err != nil {
		return service.EquipmentInput{}, err
	}
	return input, nil
}
