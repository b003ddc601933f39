package service

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/events"
)

func TestCreateDefaultsFromEquipment(t *testing.T) {
	e := newEnv(t)
	ticket := e.ticket(t, e.reporter)

	if ticket.Status != domain.TicketStatusPending {
		t.Fatalf("new tickets must be pending, got %s", ticket.Status)
	}
	if ticket.UserID != e.reporter.ID {
		t.Fatalf("reporter should be the caller")
	}
	if stringValue(ticket.DeviceType) != "電腦" || stringValue(ticket.DeviceNumber) != "PC-001" || stringValue(ticket.Location) != "2F" {
		t.Fatalf("device fields should default from equipment: %+v", ticket)
	}
	if e.events.count(events.EventTicketCreated) != 1 {
		t.Fatalf("expected ticket_created, got %v", e.events.types())
	}
}

func TestCreateValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tests := []struct {
		name  string
		input CreateRepairInput
	}{
		{"missing title", CreateRepairInput{Description: "d", EquipmentID: e.device.ID}},
		{"missing description", CreateRepairInput{Title: "t", EquipmentID: e.device.ID}},
		{"title too long", CreateRepairInput{Title: strings.Repeat("長", 101), Description: "d", EquipmentID: e.device.ID}},
		{"missing equipment", CreateRepairInput{Title: "t", Description: "d"}},
		{"unknown equipment", CreateRepairInput{Title: "t", Description: "d", EquipmentID: "00000000-0000-0000-0000-000000000000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.repairs.Create(ctx, e.reporter, tt.input, nil); httpStatus(err) != http.StatusBadRequest {
				t.Fatalf("expected 400, got %v", err)
			}
		})
	}

	_, err := e.repairs.Create(ctx, e.reporter, CreateRepairInput{
		Title: "t", Description: "d", EquipmentID: e.device.ID,
	}, []Upload{upload("virus.exe", "MZ")})
	if httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected disallowed upload to reject the ticket, got %v", err)
	}
	page, _ := e.repairs.List(ctx, e.admin, RepairQuery{})
	if page.TotalCount != 0 {
		t.Fatalf("no ticket should be stored after a rejected upload, got %d", page.TotalCount)
	}
}

func TestCreateStoresUploads(t *testing.T) {
	e := newEnv(t)
	ticket, err := e.repairs.Create(context.Background(), e.reporter, CreateRepairInput{
		Title: "卡紙", Description: "列印卡紙", EquipmentID: e.device.ID,
	}, []Upload{upload("photo.jpg", "jpeg-bytes"), upload("manual.pdf", "pdf")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(ticket.Attachments) != 2 || e.files.count() != 2 {
		t.Fatalf("expected two stored attachments, got %d/%d", len(ticket.Attachments), e.files.count())
	}
	if e.events.count(events.EventAttachmentAdded) != 2 {
		t.Fatalf("expected attachment_added events, got %v", e.events.types())
	}
}

func TestCreateRollsBackWhenStorageFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.files.failOn = 2

	_, err := e.repairs.Create(ctx, e.reporter, CreateRepairInput{
		Title: "卡紙", Description: "列印卡紙", EquipmentID: e.device.ID,
	}, []Upload{upload("photo.jpg", "jpeg-bytes"), upload("manual.pdf", "pdf")})
	if httpStatus(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
	if e.files.count() != 0 {
		t.Fatalf("stored files should be removed, %d left", e.files.count())
	}
	page, err := e.repairs.List(ctx, e.admin, RepairQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.TotalCount != 0 {
		t.Fatalf("ticket should be rolled back, got %d", page.TotalCount)
	}
	if n := len(e.events.types()); n != 0 {
		t.Fatalf("no events expected, got %v", e.events.types())
	}
}

func TestListIsScopedByRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	mine := e.ticket(t, e.reporter)
	e.ticket(t, e.other)
	if _, err := e.assignments.Assign(ctx, e.admin, mine.ID, e.tech.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	tests := []struct {
		name  string
		actor *domain.User
		query RepairQuery
		want  int
	}{
		{"admin sees all", e.admin, RepairQuery{}, 2},
		{"reporter sees own", e.reporter, RepairQuery{}, 1},
		{"technician sees handled", e.tech, RepairQuery{}, 1},
		{"technician pool", e.tech, RepairQuery{Unassigned: true}, 1},
		{"status filter", e.admin, RepairQuery{Status: string(domain.TicketStatusInProgress)}, 1},
		{"search", e.admin, RepairQuery{Search: "沒有反應"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := e.repairs.List(ctx, tt.actor, tt.query)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if page.TotalCount != tt.want {
				t.Fatalf("got %d tickets, want %d", page.TotalCount, tt.want)
			}
		})
	}

	if _, err := e.repairs.List(ctx, e.admin, RepairQuery{Status: "done"}); httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %v", err)
	}
}

func TestGetVisibility(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ticket := e.ticket(t, e.reporter)

	got, history, err := e.repairs.Get(ctx, e.reporter, ticket.ID)
	if err != nil {
		t.Fatalf("get as reporter: %v", err)
	}
	if got.Reporter == nil || got.Equipment == nil || history == nil {
		t.Fatalf("detail should be populated: %+v", got)
	}
	if _, _, err := e.repairs.Get(ctx, e.tech, ticket.ID); err != nil {
		t.Fatalf("technicians can view any ticket: %v", err)
	}
	if _, _, err := e.repairs.Get(ctx, e.other, ticket.ID); httpStatus(err) != http.StatusForbidden {
		t.Fatalf("expected 403 for another user, got %v", err)
	}
	if _, _, err := e.repairs.Get(ctx, e.admin, "missing"); httpStatus(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestUpdateStatusLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ticket := e.ticket(t, e.reporter)

	status := func(s domain.TicketStatus) UpdateRepairInput { return UpdateRepairInput{Status: &s} }

	if _, err := e.repairs.Update(ctx, e.tech, ticket.ID, status(domain.TicketStatusCompleted)); errorCode(err) != "INVALID_TRANSITION" {
		t.Fatalf("pending -> completed should be rejected, got %v", err)
	}
	if _, err := e.repairs.Update(ctx, e.tech, ticket.ID, status(domain.TicketStatusInProgress)); err != nil {
		t.Fatalf("pending -> in progress: %v", err)
	}
	if _, err := e.repairs.Update(ctx, e.tech, ticket.ID, status(domain.TicketStatusCompleted)); err != nil {
		t.Fatalf("in progress -> completed: %v", err)
	}
	if _, err := e.repairs.Update(ctx, e.tech, ticket.ID, status(domain.TicketStatusClosed)); err != nil {
		t.Fatalf("completed -> closed: %v", err)
	}
	if _, err := e.repairs.Update(ctx, e.admin, ticket.ID, status(domain.TicketStatusPending)); httpStatus(err) != http.StatusConflict {
		t.Fatalf("closed is terminal, got %v", err)
	}
	if _, err := e.repairs.Update(ctx, e.admin, ticket.ID, status(domain.TicketStatusClosed)); err != nil {
		t.Fatalf("same status should be a no-op: %v", err)
	}

	if got := e.events.count(events.EventTicketStatusChanged); got != 3 {
		t.Fatalf("expected 3 status events, got %d", got)
	}
	history, _ := e.repairs.History(ctx, e.admin, ticket.ID)
	if len(history) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(history))
	}
	for _, h := range history {
		if h.ChangeType != domain.ChangeTypeStatus {
			t.Fatalf("unexpected change type %s", h.ChangeType)
		}
	}
}

func TestUpdateReporterRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ticket := e.ticket(t, e.reporter)

	updated, err := e.repairs.Update(ctx, e.reporter, ticket.ID, UpdateRepairInput{
		Title:    ptr("電腦仍無法開機"),
		Priority: ptr("中"),
	})
	if err != nil {
		t.Fatalf("reporter edit: %v", err)
	}
	if updated.Title != "電腦仍無法開機" || stringValue(updated.Priority) != "中" {
		t.Fatalf("edit not applied: %+v", updated)
	}

	inProgress := domain.TicketStatusInProgress
	if _, err := e.repairs.Update(ctx, e.reporter, ticket.ID, UpdateRepairInput{Status: &inProgress}); httpStatus(err) != http.StatusForbidden {
		t.Fatalf("reporter cannot move to in progress, got %v", err)
	}
	if _, err := e.repairs.Update(ctx, e.reporter, ticket.ID, UpdateRepairInput{Solution: ptr("自己修好")}); httpStatus(err) != http.StatusForbidden {
		t.Fatalf("reporter cannot set solution, got %v", err)
	}
	if _, err := e.repairs.Update(ctx, e.reporter, ticket.ID, UpdateRepairInput{EquipmentID: ticket.EquipmentID}); err != nil {
		t.Fatalf("resending the current equipment is allowed: %v", err)
	}
	if _, err := e.repairs.Update(ctx, e.other, ticket.ID, UpdateRepairInput{Title: ptr("hijack")}); httpStatus(err) != http.StatusForbidden {
		t.Fatalf("other users cannot edit, got %v", err)
	}
	if _, err := e.repairs.Update(ctx, e.reporter, ticket.ID, UpdateRepairInput{ID: ptr("different")}); httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected id mismatch, got %v", err)
	}

	closed := domain.TicketStatusClosed
	if _, err := e.repairs.Update(ctx, e.reporter, ticket.ID, UpdateRepairInput{Status: &closed}); err != nil {
		t.Fatalf("reporter may close own ticket: %v", err)
	}

	history, _ := e.repairs.History(ctx, e.reporter, ticket.ID)
	kinds := map[domain.TicketChangeType]int{}
	for _, h := range history {
		kinds[h.ChangeType]++
	}
	if kinds[domain.ChangeTypeDetails] != 1 || kinds[domain.ChangeTypePriority] != 1 || kinds[domain.ChangeTypeStatus] != 1 {
		t.Fatalf("unexpected history %v", kinds)
	}
}

func TestUpdateHandlerByStaff(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ticket := e.ticket(t, e.reporter)

	updated, err := e.repairs.Update(ctx, e.admin, ticket.ID, UpdateRepairInput{HandledBy: ptr(e.tech.ID), Solution: ptr("更換電源")})
	if err != nil {
		t.Fatalf("set handler: %v", err)
	}
	if stringValue(updated.HandledBy) != e.tech.ID || stringValue(updated.Solution) != "更換電源" {
		t.Fatalf("update not applied: %+v", updated)
	}
	if e.events.count(events.EventTicketAssigned) != 1 {
		t.Fatalf("expected ticket_assigned, got %v", e.events.types())
	}
	if _, err := e.repairs.Update(ctx, e.admin, ticket.ID, UpdateRepairInput{HandledBy: ptr(e.other.ID)}); httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("end users cannot handle tickets, got %v", err)
	}
}

func TestUpdateHandlerByTechnician(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tech2 := e.account(t, "tech2", domain.RoleTechnician)

	held := e.ticket(t, e.reporter)
	if _, err := e.assignments.Assign(ctx, e.admin, held.ID, tech2.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := e.repairs.Update(ctx, e.tech, held.ID, UpdateRepairInput{HandledBy: ptr(e.tech.ID)}); httpStatus(err) != http.StatusForbidden {
		t.Fatalf("taking over another technician's ticket should be forbidden, got %v", err)
	}

	open := e.ticket(t, e.reporter)
	if _, err := e.repairs.Update(ctx, e.tech, open.ID, UpdateRepairInput{HandledBy: ptr(tech2.ID)}); httpStatus(err) != http.StatusForbidden {
		t.Fatalf("handing a ticket to someone else should be forbidden, got %v", err)
	}
	updated, err := e.repairs.Update(ctx, e.tech, open.ID, UpdateRepairInput{HandledBy: ptr(e.tech.ID)})
	if err != nil {
		t.Fatalf("self assign through update: %v", err)
	}
	if stringValue(updated.HandledBy) != e.tech.ID {
		t.Fatalf("handler not set: %+v", updated.HandledBy)
	}
	if _, err := e.repairs.Update(ctx, e.tech, open.ID, UpdateRepairInput{HandledBy: ptr("")}); httpStatus(err) != http.StatusForbidden {
		t.Fatalf("technicians cannot clear the handler, got %v", err)
	}
}

func TestUpdateHandlerOnClosedTicket(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ticket := e.ticket(t, e.reporter)
	if _, err := e.repairs.Update(ctx, e.admin, ticket.ID, UpdateRepairInput{Status: ptr(domain.TicketStatusClosed)}); err != nil {
		t.Fatalf("close: %v", err)
	}
	assigned := e.events.count(events.EventTicketAssigned)

	_, err := e.repairs.Update(ctx, e.admin, ticket.ID, UpdateRepairInput{HandledBy: ptr(e.tech.ID)})
	if errorCode(err) != "INVALID_TRANSITION" || httpStatus(err) != http.StatusConflict {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
	if e.events.count(events.EventTicketAssigned) != assigned {
		t.Fatalf("no assignment event expected, got %v", e.events.types())
	}
	stored, _, err := e.repairs.Get(ctx, e.admin, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.HandledBy != nil {
		t.Fatalf("closed ticket must stay unassigned, got %s", *stored.HandledBy)
	}
}

func TestDeleteRemovesFiles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ticket, err := e.repairs.Create(ctx, e.reporter, CreateRepairInput{
		Title: "t", Description: "d", EquipmentID: e.device.ID,
	}, []Upload{upload("photo.png", "png")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := e.repairs.Delete(ctx, e.tech, ticket.ID); httpStatus(err) != http.StatusForbidden {
		t.Fatalf("technicians cannot delete, got %v", err)
	}
	if err := e.repairs.Delete(ctx, e.admin, ticket.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if e.files.count() != 0 {
		t.Fatalf("stored files should be removed, %d left", e.files.count())
	}
	if _, _, err := e.repairs.Get(ctx, e.admin, ticket.ID); httpStatus(err) != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
	if e.events.count(events.EventTicketDeleted) != 1 {
		t.Fatalf("expected ticket_deleted, got %v", e.events.types())
	}
	if err := e.repairs.Delete(ctx, e.admin, ticket.ID); httpStatus(err) != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %v", err)
	}
}
