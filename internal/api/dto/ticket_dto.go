package dto

import (
	"fmt"
	"time"

	"github.com/repairdesk/repair-service/internal/domain"
)

// CreateRepairRequest is accepted as JSON or multipart form fields.
type CreateRepairRequest struct {
	Title        string `json:"title" form:"title"`
	Description  string `json:"description" form:"description"`
	EquipmentID  string `json:"equipment_id" form:"equipment_id"`
	DeviceType   string `json:"device_type" form:"device_type"`
	DeviceNumber string `json:"device_number" form:"device_number"`
	Problem      string `json:"problem" form:"problem"`
	Priority     string `json:"priority" form:"priority"`
	Location     string `json:"location" form:"location"`
}

// UpdateRepairRequest is a partial update; omitted fields are unchanged.
type UpdateRepairRequest struct {
	ID           *string              `json:"id"`
	Title        *string              `json:"title"`
	Description  *string              `json:"description"`
	DeviceType   *string              `json:"device_type"`
	DeviceNumber *string              `json:"device_number"`
	Problem      *string              `json:"problem"`
	Solution     *string              `json:"solution"`
	Priority     *string              `json:"priority"`
	Location     *string              `json:"location"`
	EquipmentID  *string              `json:"equipment_id"`
	HandledBy    *string              `json:"handled_by"`
	Status       *domain.TicketStatus `json:"status"`
}

// RepairTicketResponse is the ticket view used by list and detail endpoints.
type RepairTicketResponse struct {
	ID           string                  `json:"id"`
	Title        string                  `json:"title"`
	Description  string                  `json:"description"`
	DeviceType   *string                 `json:"device_type"`
	DeviceNumber *string                 `json:"device_number"`
	Problem      *string                 `json:"problem"`
	Solution     *string                 `json:"solution"`
	Status       domain.TicketStatus     `json:"status"`
	Priority     *string                 `json:"priority"`
	Location     *string                 `json:"location"`
	EquipmentID  *string                 `json:"equipment_id"`
	UserID       string                  `json:"user_id"`
	HandledBy    *string                 `json:"handled_by"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
	Reporter     *UserSummary            `json:"reporter,omitempty"`
	Handler      *UserSummary            `json:"handler,omitempty"`
	Equipment    *EquipmentSummary       `json:"equipment,omitempty"`
	Attachments  []AttachmentResponse    `json:"attachments,omitempty"`
	History      []TicketHistoryResponse `json:"history,omitempty"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticket_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedBy  *string   `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
	URL         string    `json:"url"`
}

// TicketHistoryResponse represents an audit entry.
type TicketHistoryResponse struct {
	ID         string                  `json:"id"`
	ChangeType domain.TicketChangeType `json:"change_type"`
	ChangedBy  *string                 `json:"changed_by"`
	OldValue   map[string]any          `json:"old_value"`
	NewValue   map[string]any          `json:"new_value"`
	CreatedAt  time.Time               `json:"created_at"`
}

// NewRepairTicketResponse maps a ticket along with any populated relations.
func NewRepairTicketResponse(t *domain.RepairTicket) RepairTicketResponse {
	resp := RepairTicketResponse{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		DeviceType:   t.DeviceType,
		DeviceNumber: t.DeviceNumber,
		Problem:      t.Problem,
		Solution:     t.Solution,
		Status:       t.Status,
		Priority:     t.Priority,
		Location:     t.Location,
		EquipmentID:  t.EquipmentID,
		UserID:       t.UserID,
		HandledBy:    t.HandledBy,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		Reporter:     NewUserSummary(t.Reporter),
		Handler:      NewUserSummary(t.Handler),
		Equipment:    NewEquipmentSummary(t.Equipment),
	}
	if len(t.Attachments) > 0 {
		resp.Attachments = NewAttachmentResponses(t.Attachments)
	}
	return resp
}

// NewRepairTicketResponses maps a slice.
func NewRepairTicketResponses(items []domain.RepairTicket) []RepairTicketResponse {
	out := make([]RepairTicketResponse, 0, len(items))
	for i := range items {
		out = append(out, NewRepairTicketResponse(&items[i]))
	}
	return out
}

// NewAttachmentResponse maps one attachment and points URL at the download route.
func NewAttachmentResponse(a *domain.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:          a.ID,
		TicketID:    a.TicketID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		UploadedBy:  a.UploadedBy,
		UploadedAt:  a.UploadedAt,
		URL:         fmt.Sprintf("/api/repair/%s/attachments/%s", a.TicketID, a.ID),
	}
}

// NewAttachmentResponses maps a slice.
func NewAttachmentResponses(items []domain.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(items))
	for i := range items {
		out = append(out, NewAttachmentResponse(&items[i]))
	}
	return out
}

// NewHistoryResponses maps audit entries.
func NewHistoryResponses(entries []domain.TicketHistory) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, TicketHistoryResponse{
			ID:         entry.ID,
			ChangeType: entry.ChangeType,
			ChangedBy:  entry.ChangedBy,
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return out
}
