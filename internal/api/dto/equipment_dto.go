package dto

import (
	"time"

	"github.com/repairdesk/repair-service/internal/domain"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// EquipmentRequest payload for create and update. Dates accept 2006-01-02 or RFC3339.
type EquipmentRequest struct {
	ID                  *string `json:"id"`
	Name                string  `json:"name"`
	DeviceType          string  `json:"device_type"`
	SerialNumber        string  `json:"serial_number"`
	Status              string  `json:"status"`
	Department          string  `json:"department"`
	Location            string  `json:"location"`
	PurchaseDate        *string `json:"purchase_date"`
	LastMaintenanceDate *string `json:"last_maintenance_date"`
	Notes               *string `json:"notes"`
	ImageURL            *string `json:"image_url"`
}

// EquipmentResponse is the public view of a device.
type EquipmentResponse struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	DeviceType          string     `json:"device_type"`
	SerialNumber        string     `json:"serial_number"`
	Status              string     `json:"status"`
	Department          string     `json:"department"`
	Location            string     `json:"location"`
	PurchaseDate        *time.Time `json:"purchase_date"`
	LastMaintenanceDate *time.Time `json:"last_maintenance_date"`
	Notes               *string    `json:"notes"`
	ImageURL            *string    `json:"image_url"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// EquipmentSummary is embedded in ticket responses.
type EquipmentSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DeviceType   string `json:"device_type"`
	SerialNumber string `json:"serial_number"`
	Location     string `json:"location"`
}

// MaintenanceRequest records a service.
type MaintenanceRequest struct {
	MaintenanceDate     string  `json:"maintenance_date"`
	MaintenanceType     string  `json:"maintenance_type"`
	Description         string  `json:"description"`
	Cost                float64 `json:"cost"`
	Result              string  `json:"result"`
	NextMaintenanceDate *string `json:"next_maintenance_date"`
}

// MaintenanceResponse is a stored maintenance record.
type MaintenanceResponse struct {
	ID                  string     `json:"id"`
	EquipmentID         string     `json:"equipment_id"`
	MaintenanceDate     time.Time  `json:"maintenance_date"`
	MaintenanceType     string     `json:"maintenance_type"`
	Description         string     `json:"description"`
	Cost                float64    `json:"cost"`
	PerformedBy         string     `json:"performed_by"`
	Result              string     `json:"result"`
	NextMaintenanceDate *time.Time `json:"next_maintenance_date"`
	CreatedAt           time.Time  `json:"created_at"`
}

// NewEquipmentResponse maps a domain device.
func NewEquipmentResponse(e *domain.Equipment) EquipmentResponse {
	return EquipmentResponse{
		ID:                  e.ID,
		Name:                e.Name,
		DeviceType:          e.DeviceType,
		SerialNumber:        e.SerialNumber,
		Status:              e.Status,
		Department:          e.Department,
		Location:            e.Location,
		PurchaseDate:        e.PurchaseDate,
		LastMaintenanceDate: e.LastMaintenanceDate,
		Notes:               e.Notes,
		ImageURL:            e.ImageURL,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

// NewEquipmentResponses maps a slice.
func NewEquipmentResponses(items []domain.Equipment) []EquipmentResponse {
	out := make([]EquipmentResponse, 0, len(items))
	for i := range items {
		out = append(out, NewEquipmentResponse(&items[i]))
	}
	return out
}

// NewEquipmentSummary maps a device, or returns nil for nil.
func NewEquipmentSummary(e *domain.Equipment) *EquipmentSummary {
	if e == nil {
		return nil
	}
	return &EquipmentSummary{
		ID:           e.ID,
		Name:         e.Name,
		DeviceType:   e.DeviceType,
		SerialNumber: e.SerialNumber,
		Location:     e.Location,
	}
}

// NewMaintenanceResponses maps maintenance records.
func NewMaintenanceResponses(records []domain.MaintenanceRecord) []MaintenanceResponse {
	out := make([]MaintenanceResponse, 0, len(records))
	for i := range records {
		out = append(out, NewMaintenanceResponse(&records[i]))
	}
	return out
}

// NewMaintenanceResponse maps one maintenance record.
func NewMaintenanceResponse(r *domain.MaintenanceRecord) MaintenanceResponse {
	return MaintenanceResponse{
		ID:                  r.ID,
		EquipmentID:         r.EquipmentID,
		MaintenanceDate:     r.MaintenanceDate,
		MaintenanceType:     r.MaintenanceType,
		Description:         r.Description,
		Cost:                r.Cost,
		PerformedBy:         r.PerformedBy,
		Result:              r.Result,
		NextMaintenanceDate: r.NextMaintenanceDate,
		CreatedAt:           r.CreatedAt,
	}
}
