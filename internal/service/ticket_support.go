package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/events"
	"github.com/repairdesk/repair-service/internal/repository"
	apperrors "github.com/repairdesk/repair-service/pkg/util/errorutil"
)

func getTicket(ctx context.Context, tickets repository.RepairTicketRepository, id string) (*domain.RepairTicket, error) {
	ticket, err := tickets.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("repair ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// requireTechnician loads a user that may handle tickets. A missing user is a
// 404 when notFound is set (path parameter) and a 400 otherwise (body field).
func requireTechnician(ctx context.Context, users repository.UserRepository, id string, notFound bool) (*domain.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			if notFound {
				return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": id})
			}
			return nil, apperrors.NewValidationError("technician not found", map[string]any{"technician_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	if !user.Role.IsStaff() {
		return nil, apperrors.NewValidationError("user is not a technician", map[string]any{
			"technician_id": id,
			"role":          user.Role,
		})
	}
	return user, nil
}

func recordHistory(ctx context.Context, history repository.TicketHistoryRepository, logger *zap.Logger, ticketID, actorID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	if history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:   ticketID,
		ChangedBy:  &actorID,
		ChangeType: changeType,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	if err := history.Create(ctx, entry); err != nil {
		logger.Error("failed to record ticket history",
			zap.String("ticket_id", ticketID),
			zap.String("change_type", string(changeType)),
			zap.Error(err))
	}
}

func publish(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	_ = dispatcher.Publish(ctx, event)
}
