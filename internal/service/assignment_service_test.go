package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/events"
)

func TestAssign(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ticket := e.ticket(t, e.reporter)

	assigned, err := e.assignments.Assign(ctx, e.admin, ticket.ID, e.tech.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if stringValue(assigned.HandledBy) != e.tech.ID || assigned.Status != domain.TicketStatusInProgress {
		t.Fatalf("unexpected ticket after assign: %+v", assigned)
	}
	if e.events.count(events.EventTicketAssigned) != 1 || e.events.count(events.EventTicketStatusChanged) != 1 {
		t.Fatalf("unexpected events %v", e.events.types())
	}
	history, _ := e.repairs.History(ctx, e.admin, ticket.ID)
	if len(history) != 2 {
		t.Fatalf("expected assignee and status history, got %d", len(history))
	}

	if _, err := e.assignments.Assign(ctx, e.admin, ticket.ID, e.tech.ID); err != nil {
		t.Fatalf("reassigning the same technician should succeed: %v", err)
	}
	if e.events.count(events.EventTicketAssigned) != 1 {
		t.Fatalf("no-op assign should not publish, got %v", e.events.types())
	}
}

func TestAssignErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ticket := e.ticket(t, e.reporter)
	closed := e.ticket(t, e.reporter)
	status := domain.TicketStatusClosed
	if _, err := e.repairs.Update(ctx, e.admin, closed.ID, UpdateRepairInput{Status: &status}); err != nil {
		t.Fatalf("close: %v", err)
	}

	tests := []struct {
		name         string
		actor        *domain.User
		ticketID     string
		technicianID string
		wantStatus   int
	}{
		{"technician cannot assign", e.tech, ticket.ID, e.tech.ID, http.StatusForbidden},
		{"unknown ticket", e.admin, "missing", e.tech.ID, http.StatusNotFound},
		{"unknown technician", e.admin, ticket.ID, "missing", http.StatusNotFound},
		{"end user as technician", e.admin, ticket.ID, e.other.ID, http.StatusBadRequest},
		{"closed ticket", e.admin, closed.ID, e.tech.ID, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.assignments.Assign(ctx, tt.actor, tt.ticketID, tt.technicianID)
			if httpStatus(err) != tt.wantStatus {
				t.Fatalf("got %v, want status %d", err, tt.wantStatus)
			}
		})
	}
}

func TestSelfAssign(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ticket := e.ticket(t, e.reporter)

	if _, err := e.assignments.SelfAssign(ctx, e.reporter, ticket.ID); httpStatus(err) != http.StatusForbidden {
		t.Fatalf("end users cannot claim, got %v", err)
	}
	claimed, err := e.assignments.SelfAssign(ctx, e.tech, ticket.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if stringValue(claimed.HandledBy) != e.tech.ID {
		t.Fatalf("ticket should be handled by the claimer")
	}
	if _, err := e.assignments.SelfAssign(ctx, e.admin, ticket.ID); errorCode(err) != "CONFLICT" {
		t.Fatalf("claiming an assigned ticket should conflict, got %v", err)
	}
}
