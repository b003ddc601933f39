package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/repository"
)

type equipmentRepo struct{ s *Store }

func (r *equipmentRepo) Create(_ context.Context, e *domain.Equipment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.tick()
	e.ID = newID()
	e.CreatedAt = now
	e.UpdatedAt = now
	r.s.equipment[e.ID] = *e
	return nil
}

func (r *equipmentRepo) Update(_ context.Context, e *domain.Equipment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.equipment[e.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = r.s.tick()
	r.s.equipment[e.ID] = *e
	return nil
}

func (r *equipmentRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.equipment[id]; !ok {
		return pgx.ErrNoRows
	}
	for _, t := range r.s.tickets {
		if t.EquipmentID != nil && *t.EquipmentID == id {
			return repository.ErrEquipmentInUse
		}
	}
	delete(r.s.equipment, id)
	for mid, m := range r.s.maintenance {
		if m.EquipmentID == id {
			delete(r.s.maintenance, mid)
		}
	}
	return nil
}

func (r *equipmentRepo) GetByID(_ context.Context, id string) (*domain.Equipment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.equipment[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &e, nil
}

func (r *equipmentRepo) List(_ context.Context, filter repository.EquipmentFilter) ([]domain.Equipment, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var matched []domain.Equipment
	for _, e := range r.s.equipment {
		if !containsFold(filter.Search, e.Name, e.SerialNumber, deref(e.Notes)) {
			continue
		}
		if filter.DeviceType != "" && e.DeviceType != filter.DeviceType {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.Department != "" && e.Department != filter.Department {
			continue
		}
		matched = append(matched, e)
	}

	key := equipmentSortKey(strings.ToLower(filter.SortBy))
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := key(matched[i]), key(matched[j])
		if a == b {
			return matched[i].ID < matched[j].ID
		}
		if filter.SortDesc {
			return a > b
		}
		return a < b
	})
	return paginate(matched, filter.Page, 10), len(matched), nil
}

func equipmentSortKey(column string) func(domain.Equipment) string {
	switch column {
	case "device_type":
		return func(e domain.Equipment) string { return e.DeviceType }
	case "status":
		return func(e domain.Equipment) string { return e.Status }
	case "department":
		return func(e domain.Equipment) string { return e.Department }
	case "purchase_date":
		return func(e domain.Equipment) string {
			if e.PurchaseDate == nil {
				return ""
			}
			return e.PurchaseDate.Format(time.RFC3339)
		}
	case "created_at":
		return func(e domain.Equipment) string { return e.CreatedAt.Format(time.RFC3339Nano) }
	default:
		return func(e domain.Equipment) string { return e.Name }
	}
}

func (r *equipmentRepo) DistinctDeviceTypes(_ context.Context) ([]string, error) {
	return r.distinct(func(e domain.Equipment) string { return e.DeviceType }), nil
}

func (r *equipmentRepo) DistinctDepartments(_ context.Context) ([]string, error) {
	return r.distinct(func(e domain.Equipment) string { return e.Department }), nil
}

func (r *equipmentRepo) distinct(field func(domain.Equipment) string) []string {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	values := make([]string, 0, len(r.s.equipment))
	for _, e := range r.s.equipment {
		values = append(values, field(e))
	}
	return sortedDistinct(values)
}

func (r *equipmentRepo) UpdateLastMaintenance(_ context.Context, id string, date time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.equipment[id]
	if !ok {
		return nil
	}
	if e.LastMaintenanceDate == nil || e.LastMaintenanceDate.Before(date) {
		d := date
		e.LastMaintenanceDate = &d
		e.UpdatedAt = r.s.tick()
		r.s.equipment[id] = e
	}
	return nil
}

type maintenanceRepo struct{ s *Store }

func (r *maintenanceRepo) Create(_ context.Context, record *domain.MaintenanceRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.equipment[record.EquipmentID]; !ok {
		return pgx.ErrNoRows
	}
	record.ID = newID()
	record.CreatedAt = r.s.tick()
	r.s.maintenance[record.ID] = *record
	return nil
}

func (r *maintenanceRepo) ListByEquipment(_ context.Context, equipmentID string) ([]domain.MaintenanceRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.MaintenanceRecord
	for _, m := range r.s.maintenance {
		if m.EquipmentID == equipmentID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].MaintenanceDate.Equal(result[j].MaintenanceDate) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].MaintenanceDate.After(result[j].MaintenanceDate)
	})
	return result, nil
}
