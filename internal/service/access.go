package service

import "github.com/repairdesk/repair-service/internal/domain"

// Ticket access rules. Staff (technicians and admins) may see and edit every
// ticket; end users only their own.

func canViewTicket(actor *domain.User, ticket *domain.RepairTicket) bool {
	if actor == nil {
		return false
	}
	return actor.Role.IsStaff() || ticket.UserID == actor.ID
}

func canEditTicket(actor *domain.User, ticket *domain.RepairTicket) bool {
	return canViewTicket(actor, ticket)
}

// reporterMayChangeStatus limits end users to closing their own ticket.
func reporterMayChangeStatus(next domain.TicketStatus) bool {
	return next == domain.TicketStatusClosed
}

func canDeleteAttachment(actor *domain.User, att *domain.Attachment) bool {
	if actor == nil {
		return false
	}
	if actor.Role == domain.RoleAdmin {
		return true
	}
	return att.UploadedBy != nil && *att.UploadedBy == actor.ID
}
