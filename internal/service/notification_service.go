package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/events"
	"github.com/repairdesk/repair-service/internal/mail"
	"github.com/repairdesk/repair-service/internal/repository"
)

// NotificationService turns domain events into queued emails.
type NotificationService struct {
	tickets    repository.RepairTicketRepository
	users      repository.UserRepository
	queue      MailQueue
	adminEmail string
	logger     *zap.Logger
}

// NotificationDependencies bundles collaborators for notifications.
type NotificationDependencies struct {
	TicketRepo repository.RepairTicketRepository
	UserRepo   repository.UserRepository
	Queue      MailQueue
	AdminEmail string
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		queue:      deps.Queue,
		adminEmail: strings.TrimSpace(deps.AdminEmail),
		logger:     logger,
	}
}

// EventTypes lists the events Handle reacts to.
func (n *NotificationService) EventTypes() []events.EventType {
	return events.AllEventTypes
}

// Handle routes one event to its notification.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventTicketCreated:
		return n.handleTicketCreated(ctx, event)
	case events.EventTicketStatusChanged:
		return n.handleTicketStatusChanged(ctx, event)
	case events.EventTicketAssigned:
		return n.handleTicketAssigned(ctx, event)
	default:
		return n.logEvent(ctx, event)
	}
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logEvent(ctx, event)
	if n.adminEmail == "" {
		return nil
	}
	ticket, err := n.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return err
	}
	n.enqueue(ticketCreatedMessage(n.adminEmail, ticket), event)
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logEvent(ctx, event)
	ticket, err := n.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return err
	}
	reporter, err := n.users.GetByID(ctx, ticket.UserID)
	if err != nil {
		return err
	}
	if reporter.Email == nil || *reporter.Email == "" {
		return nil
	}
	var oldStatus domain.TicketStatus
	if payload, ok := event.Payload.(events.TicketStatusChangedPayload); ok {
		oldStatus = payload.OldStatus
	}
	n.enqueue(statusChangedMessage(*reporter.Email, ticket, oldStatus), event)
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	n.logEvent(ctx, event)
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return nil
	}
	technician, err := n.users.GetByID(ctx, payload.TechnicianID)
	if err != nil {
		return err
	}
	if technician.Email == nil || *technician.Email == "" {
		return nil
	}
	ticket, err := n.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return err
	}
	n.enqueue(assignedMessage(*technician.Email, ticket, technician), event)
	return nil
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) enqueue(msg mail.Message, event events.Event) {
	if n.queue == nil {
		return
	}
	if err := n.queue.Enqueue(msg); err != nil {
		n.logger.Warn("notification not queued",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
