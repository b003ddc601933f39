// Package memory holds map-backed repository implementations. The API falls
// back to them when no Postgres DSN is configured, and tests use them as fakes.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/repository"
)

// Store owns every table; repositories obtained from it share one lock so
// cross-table rules (cascades, foreign keys) hold.
type Store struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	equipment   map[string]domain.Equipment
	maintenance map[string]domain.MaintenanceRecord
	tickets     map[string]domain.RepairTicket
	attachments map[string]domain.Attachment
	history     map[string]domain.TicketHistory
	resets      map[string]domain.PasswordResetToken
	now         func() time.Time
	last        time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:       map[string]domain.User{},
		equipment:   map[string]domain.Equipment{},
		maintenance: map[string]domain.MaintenanceRecord{},
		tickets:     map[string]domain.RepairTicket{},
		attachments: map[string]domain.Attachment{},
		history:     map[string]domain.TicketHistory{},
		resets:      map[string]domain.PasswordResetToken{},
		now:         time.Now,
	}
}

// Users returns the user repository view.
func (s *Store) Users() repository.UserRepository { return &userRepo{s} }

// Equipment returns the equipment repository view.
func (s *Store) Equipment() repository.EquipmentRepository { return &equipmentRepo{s} }

// Maintenance returns the maintenance repository view.
func (s *Store) Maintenance() repository.MaintenanceRepository { return &maintenanceRepo{s} }

// Tickets returns the repair ticket repository view.
func (s *Store) Tickets() repository.RepairTicketRepository { return &ticketRepo{s} }

// Attachments returns the attachment repository view.
func (s *Store) Attachments() repository.AttachmentRepository { return &attachmentRepo{s} }

// History returns the ticket history repository view.
func (s *Store) History() repository.TicketHistoryRepository { return &historyRepo{s} }

// PasswordResets returns the reset token repository view.
func (s *Store) PasswordResets() repository.PasswordResetRepository { return &resetRepo{s} }

// tick returns a strictly increasing timestamp so ordering by time is stable.
// Callers hold the write lock.
func (s *Store) tick() time.Time {
	now := s.now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

func newID() string { return uuid.NewString() }

func paginate[T any](items []T, page repository.Page, defaultLimit int) []T {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func containsFold(term string, values ...string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sortedDistinct(values []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
