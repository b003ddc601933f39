package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/repository"
)

type ticketRepo struct{ s *Store }

func (r *ticketRepo) Create(_ context.Context, t *domain.RepairTicket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.tick()
	t.ID = newID()
	t.CreatedAt = now
	t.UpdatedAt = now
	r.s.tickets[t.ID] = stripTicket(*t)
	return nil
}

func (r *ticketRepo) Update(_ context.Context, t *domain.RepairTicket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.tickets[t.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	t.CreatedAt = existing.CreatedAt
	t.UserID = existing.UserID
	t.UpdatedAt = r.s.tick()
	r.s.tickets[t.ID] = stripTicket(*t)
	return nil
}

// stripTicket drops the detail-only associations so stored rows match the table.
func stripTicket(t domain.RepairTicket) domain.RepairTicket {
	t.Reporter = nil
	t.Handler = nil
	t.Equipment = nil
	t.Attachments = nil
	return t
}

func (r *ticketRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.tickets, id)
	for aid, a := range r.s.attachments {
		if a.TicketID == id {
			delete(r.s.attachments, aid)
		}
	}
	for hid, h := range r.s.history {
		if h.TicketID == id {
			delete(r.s.history, hid)
		}
	}
	return nil
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.RepairTicket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r *ticketRepo) List(_ context.Context, filter repository.RepairTicketFilter) ([]domain.RepairTicket, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var matched []domain.RepairTicket
	for _, t := range r.s.tickets {
		if filter.UserID != nil && t.UserID != *filter.UserID {
			continue
		}
		if filter.HandledBy != nil && deref(t.HandledBy) != *filter.HandledBy {
			continue
		}
		if filter.Unassigned && t.HandledBy != nil {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && deref(t.Priority) != *filter.Priority {
			continue
		}
		if filter.EquipmentID != nil && deref(t.EquipmentID) != *filter.EquipmentID {
			continue
		}
		if !containsFold(filter.Search, t.Title, t.Description, deref(t.Problem), deref(t.DeviceNumber)) {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Page, 20), len(matched), nil
}

func (r *ticketRepo) CountByEquipment(_ context.Context, equipmentID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, t := range r.s.tickets {
		if deref(t.EquipmentID) == equipmentID {
			count++
		}
	}
	return count, nil
}

type attachmentRepo struct{ s *Store }

func (r *attachmentRepo) Create(_ context.Context, a *domain.Attachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[a.TicketID]; !ok {
		return pgx.ErrNoRows
	}
	a.ID = newID()
	a.UploadedAt = r.s.tick()
	r.s.attachments[a.ID] = *a
	return nil
}

func (r *attachmentRepo) GetByID(_ context.Context, id string) (*domain.Attachment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.attachments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r *attachmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Attachment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Attachment
	for _, a := range r.s.attachments {
		if a.TicketID == ticketID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UploadedAt.Equal(result[j].UploadedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UploadedAt.Before(result[j].UploadedAt)
	})
	return result, nil
}

func (r *attachmentRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.attachments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.attachments, id)
	return nil
}

type historyRepo struct{ s *Store }

func (r *historyRepo) Create(_ context.Context, h *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h.ID = newID()
	h.CreatedAt = r.s.tick()
	if h.OldValue == nil {
		h.OldValue = map[string]any{}
	}
	if h.NewValue == nil {
		h.NewValue = map[string]any{}
	}
	r.s.history[h.ID] = *h
	return nil
}

func (r *historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.TicketHistory
	for _, h := range r.s.history {
		if h.TicketID == ticketID {
			result = append(result, h)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type resetRepo struct{ s *Store }

func (r *resetRepo) Create(_ context.Context, token *domain.PasswordResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token.ID = newID()
	token.CreatedAt = r.s.tick()
	r.s.resets[token.ID] = *token
	return nil
}

func (r *resetRepo) GetByToken(_ context.Context, value string) (*domain.PasswordResetToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, token := range r.s.resets {
		if token.Token == value {
			t := token
			return &t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *resetRepo) Redeem(_ context.Context, id, passwordHash string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token, ok := r.s.resets[id]
	if !ok || !token.Usable(now) {
		return pgx.ErrNoRows
	}
	user, ok := r.s.users[token.UserID]
	if !ok {
		return pgx.ErrNoRows
	}
	token.UsedAt = &now
	r.s.resets[id] = token
	user.PasswordHash = passwordHash
	user.UpdatedAt = r.s.tick()
	r.s.users[user.ID] = user
	return nil
}
