package domain

import "time"

// TicketStatus enumerates lifecycle states for repair tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "待處理"
	TicketStatusInProgress TicketStatus = "處理中"
	TicketStatusCompleted  TicketStatus = "已完成"
	TicketStatusClosed     TicketStatus = "已關閉"
)

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusPending:    {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusPending, TicketStatusCompleted, TicketStatusClosed},
	TicketStatusCompleted:  {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusClosed:     {},
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransitionTo reports whether the lifecycle permits moving from s to next.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Assignable reports whether a technician may be (re)assigned in this status.
func (s TicketStatus) Assignable() bool {
	return s == TicketStatusPending || s == TicketStatusInProgress
}

// RepairTicket is the aggregate for a repair request.
type RepairTicket struct {
	ID           string
	Title        string
	Description  string
	DeviceType   *string
	DeviceNumber *string
	Problem      *string
	Solution     *string
	Status       TicketStatus
	Priority     *string
	Location     *string
	EquipmentID  *string
	UserID       string
	HandledBy    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Populated on detail reads only.
	Reporter    *User
	Handler     *User
	Equipment   *Equipment
	Attachments []Attachment
}

// Attachment stores metadata for a file uploaded against a ticket.
type Attachment struct {
	ID             string
	TicketID       string
	FileName       string
	StoredFileName string
	ContentType    string
	SizeBytes      int64
	UploadedBy     *string
	UploadedAt     time.Time
}
