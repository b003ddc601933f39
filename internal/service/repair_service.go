package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/events"
	"github.com/repairdesk/repair-service/internal/repository"
	apperrors "github.com/repairdesk/repair-service/pkg/util/errorutil"
)

const maxTitleLength = 100

// RepairService coordinates repair ticket workflows.
type RepairService struct {
	tickets     repository.RepairTicketRepository
	users       repository.UserRepository
	equipment   repository.EquipmentRepository
	history     repository.TicketHistoryRepository
	attachments *AttachmentService
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// RepairDependencies bundles collaborators for the repair service.
type RepairDependencies struct {
	TicketRepo    repository.RepairTicketRepository
	UserRepo      repository.UserRepository
	EquipmentRepo repository.EquipmentRepository
	HistoryRepo   repository.TicketHistoryRepository
	Attachments   *AttachmentService
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
}

// NewRepairService constructs the service.
func NewRepairService(deps RepairDependencies) *RepairService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepairService{
		tickets:     deps.TicketRepo,
		users:       deps.UserRepo,
		equipment:   deps.EquipmentRepo,
		history:     deps.HistoryRepo,
		attachments: deps.Attachments,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}
}

// RepairQuery carries list filters as received from clients.
type RepairQuery struct {
	Status      string
	Priority    string
	EquipmentID string
	Search      string
	Unassigned  bool
	PageRequest
}

// RepairPage is a page of tickets.
type RepairPage struct {
	Items []domain.RepairTicket
	PageInfo
}

// CreateRepairInput describes a new ticket.
type CreateRepairInput struct {
	Title        string
	Description  string
	EquipmentID  string
	DeviceType   string
	DeviceNumber string
	Problem      string
	Priority     string
	Location     string
}

// UpdateRepairInput carries a partial update; nil fields are left alone and
// empty optional strings clear the field.
type UpdateRepairInput struct {
	ID           *string
	Title        *string
	Description  *string
	DeviceType   *string
	DeviceNumber *string
	Problem      *string
	Solution     *string
	Priority     *string
	Location     *string
	EquipmentID  *string
	HandledBy    *string
	Status       *domain.TicketStatus
}

// List returns tickets scoped to the actor: admins see everything,
// technicians the tickets they handle (or the unassigned pool), users their own.
func (s *RepairService) List(ctx context.Context, actor *domain.User, q RepairQuery) (*RepairPage, error) {
	page := q.PageRequest.normalize(20, 100)
	filter := repository.RepairTicketFilter{
		Search: strings.TrimSpace(q.Search),
		Page:   page.repoPage(),
	}
	if status := strings.TrimSpace(q.Status); status != "" {
		st := domain.TicketStatus(status)
		if !st.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": status})
		}
		filter.Status = &st
	}
	if priority := strings.TrimSpace(q.Priority); priority != "" {
		filter.Priority = &priority
	}
	if equipmentID := strings.TrimSpace(q.EquipmentID); equipmentID != "" {
		filter.EquipmentID = &equipmentID
	}

	switch actor.Role {
	case domain.RoleAdmin:
		filter.Unassigned = q.Unassigned
	case domain.RoleTechnician:
		if q.Unassigned {
			filter.Unassigned = true
		} else {
			filter.HandledBy = &actor.ID
		}
	default:
		filter.UserID = &actor.ID
	}

	items, total, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if items == nil {
		items = []domain.RepairTicket{}
	}
	return &RepairPage{Items: items, PageInfo: page.info(total)}, nil
}

// Get returns a ticket with reporter, handler, equipment, attachments and history.
func (s *RepairService) Get(ctx context.Context, actor *domain.User, id string) (*domain.RepairTicket, []domain.TicketHistory, error) {
	ticket, err := getTicket(ctx, s.tickets, id)
	if err != nil {
		return nil, nil, err
	}
	if !canViewTicket(actor, ticket) {
		return nil, nil, apperrors.NewForbidden("access denied")
	}
	if err := s.populate(ctx, ticket); err != nil {
		return nil, nil, err
	}
	history, err := s.listHistory(ctx, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, history, nil
}

// History returns the audit trail of a ticket the actor may view.
func (s *RepairService) History(ctx context.Context, actor *domain.User, id string) ([]domain.TicketHistory, error) {
	ticket, err := getTicket(ctx, s.tickets, id)
	if err != nil {
		return nil, err
	}
	if !canViewTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return s.listHistory(ctx, ticket.ID)
}

// Create opens a pending ticket reported by actor and stores any uploads.
func (s *RepairService) Create(ctx context.Context, actor *domain.User, input CreateRepairInput, uploads []Upload) (*domain.RepairTicket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	equipmentID := strings.TrimSpace(input.EquipmentID)

	fields := map[string]any{}
	if title == "" {
		fields["title"] = "required"
	} else if utf8.RuneCountInString(title) > maxTitleLength {
		fields["title"] = "must be at most 100 characters"
	}
	if description == "" {
		fields["description"] = "required"
	}
	if equipmentID == "" {
		fields["equipment_id"] = "required"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid repair ticket", fields)
	}

	equipment, err := s.requireEquipment(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	for _, u := range uploads {
		if err := s.attachments.Validate(u); err != nil {
			return nil, err
		}
	}

	ticket := &domain.RepairTicket{
		Title:        title,
		Description:  description,
		DeviceType:   optional(input.DeviceType),
		DeviceNumber: optional(input.DeviceNumber),
		Problem:      optional(input.Problem),
		Priority:     optional(input.Priority),
		Location:     optional(input.Location),
		EquipmentID:  &equipment.ID,
		Status:       domain.TicketStatusPending,
		UserID:       actor.ID,
	}
	if ticket.DeviceType == nil {
		ticket.DeviceType = optional(equipment.DeviceType)
	}
	if ticket.DeviceNumber == nil {
		ticket.DeviceNumber = optional(equipment.SerialNumber)
	}
	if ticket.Location == nil {
		ticket.Location = optional(equipment.Location)
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.Equipment = equipment
	ticket.Reporter = actor

	for _, u := range uploads {
		att, err := s.attachments.save(ctx, ticket, actor, u)
		if err != nil {
			s.discard(ctx, ticket)
			return nil, err
		}
		ticket.Attachments = append(ticket.Attachments, *att)
	}

	publish(ctx, s.dispatcher, events.New(events.EventTicketCreated, ticket.ID, &actor.ID, events.TicketCreatedPayload{
		Title:       ticket.Title,
		ReporterID:  ticket.UserID,
		EquipmentID: ticket.EquipmentID,
		Priority:    ticket.Priority,
	}))
	for i := range ticket.Attachments {
		s.attachments.announce(ctx, &ticket.Attachments[i])
	}
	return ticket, nil
}

// discard rolls back a ticket whose uploads could not all be stored.
func (s *RepairService) discard(ctx context.Context, ticket *domain.RepairTicket) {
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		s.logger.Error("failed to remove ticket after upload error", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	s.attachments.removeFiles(ticket.Attachments)
}

// Update applies a partial update under the edit rules: staff may change every
// field; reporters may edit descriptive fields and close their own ticket.
func (s *RepairService) Update(ctx context.Context, actor *domain.User, id string, input UpdateRepairInput) (*domain.RepairTicket, error) {
	if input.ID != nil && *input.ID != "" && *input.ID != id {
		return nil, apperrors.NewValidationError("id mismatch", map[string]any{"path_id": id, "body_id": *input.ID})
	}
	ticket, err := getTicket(ctx, s.tickets, id)
	if err != nil {
		return nil, err
	}
	if !canEditTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	staff := actor.Role.IsStaff()
	if !staff && (differs(ticket.Solution, input.Solution) || differs(ticket.HandledBy, input.HandledBy) || differs(ticket.EquipmentID, input.EquipmentID)) {
		return nil, apperrors.NewForbidden("only staff can change solution, handler or equipment")
	}

	oldStatus := ticket.Status
	if input.Status != nil && *input.Status != ticket.Status {
		next := *input.Status
		if !next.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": next})
		}
		if !staff && !reporterMayChangeStatus(next) {
			return nil, apperrors.NewForbidden("reporters can only close their ticket")
		}
		if !ticket.Status.CanTransitionTo(next) {
			return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(next))
		}
		ticket.Status = next
	}

	details := newChangeSet()
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
			return nil, apperrors.NewValidationError("title must be 1 to 100 characters", map[string]any{"field": "title"})
		}
		details.setString("title", &ticket.Title, title)
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, apperrors.NewValidationError("description is required", map[string]any{"field": "description"})
		}
		details.setString("description", &ticket.Description, description)
	}
	details.setOptional("device_type", &ticket.DeviceType, input.DeviceType)
	details.setOptional("device_number", &ticket.DeviceNumber, input.DeviceNumber)
	details.setOptional("problem", &ticket.Problem, input.Problem)
	details.setOptional("solution", &ticket.Solution, input.Solution)
	details.setOptional("location", &ticket.Location, input.Location)
	if input.EquipmentID != nil {
		equipment, err := s.requireEquipment(ctx, strings.TrimSpace(*input.EquipmentID))
		if err != nil {
			return nil, err
		}
		details.setOptional("equipment_id", &ticket.EquipmentID, &equipment.ID)
	}

	priority := newChangeSet()
	priority.setOptional("priority", &ticket.Priority, input.Priority)

	oldHandler := ticket.HandledBy
	var newHandler *domain.User
	if input.HandledBy != nil && strings.TrimSpace(*input.HandledBy) != stringValue(oldHandler) {
		handlerID := strings.TrimSpace(*input.HandledBy)
		if err := checkHandlerChange(actor, oldHandler, handlerID); err != nil {
			return nil, err
		}
		if !oldStatus.Assignable() {
			return nil, apperrors.NewInvalidTransition(string(oldStatus), string(domain.TicketStatusInProgress))
		}
		if handlerID == "" {
			ticket.HandledBy = nil
		} else {
			newHandler, err = s.requireTechnician(ctx, handlerID)
			if err != nil {
				return nil, err
			}
			ticket.HandledBy = &newHandler.ID
		}
	}
	handlerChanged := stringValue(oldHandler) != stringValue(ticket.HandledBy)
	statusChanged := oldStatus != ticket.Status

	if !statusChanged && !handlerChanged && details.empty() && priority.empty() {
		return ticket, nil
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	if statusChanged {
		s.recordHistory(ctx, ticket.ID, actor.ID, domain.ChangeTypeStatus,
			map[string]any{"status": oldStatus}, map[string]any{"status": ticket.Status})
	}
	if handlerChanged {
		s.recordHistory(ctx, ticket.ID, actor.ID, domain.ChangeTypeAssignee,
			map[string]any{"handled_by": oldHandler}, map[string]any{"handled_by": ticket.HandledBy})
	}
	if !priority.empty() {
		s.recordHistory(ctx, ticket.ID, actor.ID, domain.ChangeTypePriority, priority.old, priority.new)
	}
	if !details.empty() {
		s.recordHistory(ctx, ticket.ID, actor.ID, domain.ChangeTypeDetails, details.old, details.new)
	}

	if statusChanged {
		publish(ctx, s.dispatcher, events.New(events.EventTicketStatusChanged, ticket.ID, &actor.ID, events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
		}))
	}
	if handlerChanged && newHandler != nil {
		publish(ctx, s.dispatcher, events.New(events.EventTicketAssigned, ticket.ID, &actor.ID, events.TicketAssignedPayload{
			TechnicianID:       newHandler.ID,
			PreviousTechnician: oldHandler,
		}))
	}
	return ticket, nil
}

// Delete removes a ticket, its rows and its stored files. Admin only.
func (s *RepairService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("only admins can delete tickets")
	}
	ticket, err := getTicket(ctx, s.tickets, id)
	if err != nil {
		return err
	}
	files, err := s.attachments.listForTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewNotFound("repair ticket", map[string]any{"ticket_id": id})
		}
		return apperrors.MapError(err)
	}
	s.attachments.removeFiles(files)

	publish(ctx, s.dispatcher, events.New(events.EventTicketDeleted, ticket.ID, &actor.ID, events.TicketDeletedPayload{
		Title: ticket.Title,
	}))
	return nil
}

func (s *RepairService) populate(ctx context.Context, ticket *domain.RepairTicket) error {
	if reporter, err := s.users.GetByID(ctx, ticket.UserID); err == nil {
		ticket.Reporter = reporter
	} else if !apperrors.IsNotFound(err) {
		return apperrors.MapError(err)
	}
	if ticket.HandledBy != nil {
		if handler, err := s.users.GetByID(ctx, *ticket.HandledBy); err == nil {
			ticket.Handler = handler
		} else if !apperrors.IsNotFound(err) {
			return apperrors.MapError(err)
		}
	}
	if ticket.EquipmentID != nil {
		if equipment, err := s.equipment.GetByID(ctx, *ticket.EquipmentID); err == nil {
			ticket.Equipment = equipment
		} else if !apperrors.IsNotFound(err) {
			return apperrors.MapError(err)
		}
	}
	attachments, err := s.attachments.listForTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}
	ticket.Attachments = attachments
	return nil
}

func (s *RepairService) listHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if entries == nil {
		entries = []domain.TicketHistory{}
	}
	return entries, nil
}

func (s *RepairService) requireEquipment(ctx context.Context, id string) (*domain.Equipment, error) {
	if id == "" {
		return nil, apperrors.NewValidationError("equipment not found", map[string]any{"equipment_id": id})
	}
	equipment, err := s.equipment.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewValidationError("equipment not found", map[string]any{"equipment_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return equipment, nil
}

// checkHandlerChange allows admins to set any handler; technicians may only
// take an unassigned ticket for themselves.
func checkHandlerChange(actor *domain.User, current *string, next string) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	if actor.Role == domain.RoleTechnician && current == nil && next == actor.ID {
		return nil
	}
	return apperrors.NewForbidden("technicians can only assign unassigned tickets to themselves")
}

func (s *RepairService) requireTechnician(ctx context.Context, id string) (*domain.User, error) {
	return requireTechnician(ctx, s.users, id, false)
}

// recordHistory writes an audit entry. A failed write is logged; the ticket
// change it describes has already been committed.
func (s *RepairService) recordHistory(ctx context.Context, ticketID, actorID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	recordHistory(ctx, s.history, s.logger, ticketID, actorID, changeType, oldValue, newValue)
}

type changeSet struct {
	old map[string]any
	new map[string]any
}

func newChangeSet() *changeSet {
	return &changeSet{old: map[string]any{}, new: map[string]any{}}
}

func (c *changeSet) empty() bool { return len(c.new) == 0 }

func (c *changeSet) setString(field string, target *string, value string) {
	if *target == value {
		return
	}
	c.old[field] = *target
	c.new[field] = value
	*target = value
}

func (c *changeSet) setOptional(field string, target **string, value *string) {
	if value == nil {
		return
	}
	next := optional(*value)
	if stringValue(*target) == stringValue(next) {
		return
	}
	c.old[field] = stringValue(*target)
	c.new[field] = stringValue(next)
	*target = next
}

// differs reports whether a requested optional value would change current.
func differs(current, requested *string) bool {
	if requested == nil {
		return false
	}
	return stringValue(current) != strings.TrimSpace(*requested)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
