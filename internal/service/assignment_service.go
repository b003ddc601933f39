package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/events"
	"github.com/repairdesk/repair-service/internal/repository"
	apperrors "github.com/repairdesk/repair-service/pkg/util/errorutil"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	tickets    repository.RepairTicketRepository
	users      repository.UserRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo  repository.RepairTicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// Assign hands a ticket to a technician and moves it to 處理中 (admin only).
func (s *AssignmentService) Assign(ctx context.Context, actor *domain.User, ticketID, technicianID string) (*domain.RepairTicket, error) {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins can assign tickets")
	}
	ticket, err := getTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	technician, err := requireTechnician(ctx, s.users, technicianID, true)
	if err != nil {
		return nil, err
	}
	return s.assign(ctx, actor, ticket, technician)
}

// SelfAssign lets a technician claim an unassigned ticket.
func (s *AssignmentService) SelfAssign(ctx context.Context, actor *domain.User, ticketID string) (*domain.RepairTicket, error) {
	if actor == nil || !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("insufficient role for self assign")
	}
	ticket, err := getTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.HandledBy != nil && *ticket.HandledBy != actor.ID {
		return nil, apperrors.NewConflict("ticket already assigned", map[string]any{"handled_by": *ticket.HandledBy})
	}
	return s.assign(ctx, actor, ticket, actor)
}

func (s *AssignmentService) assign(ctx context.Context, actor *domain.User, ticket *domain.RepairTicket, technician *domain.User) (*domain.RepairTicket, error) {
	if !ticket.Status.Assignable() {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusInProgress))
	}

	oldHandler := ticket.HandledBy
	oldStatus := ticket.Status
	ticket.HandledBy = &technician.ID
	ticket.Status = domain.TicketStatusInProgress

	handlerChanged := stringValue(oldHandler) != technician.ID
	statusChanged := oldStatus != ticket.Status
	if !handlerChanged && !statusChanged {
		return ticket, nil
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	if handlerChanged {
		recordHistory(ctx, s.history, s.logger, ticket.ID, actor.ID, domain.ChangeTypeAssignee,
			map[string]any{"handled_by": oldHandler}, map[string]any{"handled_by": technician.ID})
		publish(ctx, s.dispatcher, events.New(events.EventTicketAssigned, ticket.ID, &actor.ID, events.TicketAssignedPayload{
			TechnicianID:       technician.ID,
			PreviousTechnician: oldHandler,
		}))
	}
	if statusChanged {
		recordHistory(ctx, s.history, s.logger, ticket.ID, actor.ID, domain.ChangeTypeStatus,
			map[string]any{"status": oldStatus}, map[string]any{"status": ticket.Status})
		publish(ctx, s.dispatcher, events.New(events.EventTicketStatusChanged, ticket.ID, &actor.ID, events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
		}))
	}
	ticket.Handler = technician
	return ticket, nil
}
