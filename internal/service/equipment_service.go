package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/repository"
	apperrors "github.com/repairdesk/repair-service/pkg/util/errorutil"
)

const (
	lookupDeviceTypes = "equipment:device_types"
	lookupDepartments = "equipment:departments"
)

// EquipmentService manages the equipment registry and its maintenance log.
type EquipmentService struct {
	equipment   repository.EquipmentRepository
	tickets     repository.RepairTicketRepository
	maintenance repository.MaintenanceRepository
	cache       LookupCache
	logger      *zap.Logger
}

// EquipmentDependencies bundles repositories for the equipment service.
type EquipmentDependencies struct {
	EquipmentRepo   repository.EquipmentRepository
	TicketRepo      repository.RepairTicketRepository
	MaintenanceRepo repository.MaintenanceRepository
	Cache           LookupCache
	Logger          *zap.Logger
}

// NewEquipmentService constructs the service.
func NewEquipmentService(deps EquipmentDependencies) *EquipmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EquipmentService{
		equipment:   deps.EquipmentRepo,
		tickets:     deps.TicketRepo,
		maintenance: deps.MaintenanceRepo,
		cache:       deps.Cache,
		logger:      logger,
	}
}

// EquipmentQuery carries list filters as received from clients.
type EquipmentQuery struct {
	Search     string
	DeviceType string
	Status     string
	Department string
	SortBy     string
	SortOrder  string
	PageRequest
}

// EquipmentPage is a page of equipment.
type EquipmentPage struct {
	Items []domain.Equipment
	PageInfo
}

// EquipmentInput is the writable part of an equipment record.
type EquipmentInput struct {
	Name                string
	DeviceType          string
	SerialNumber        string
	Status              string
	Department          string
	Location            string
	PurchaseDate        *time.Time
	LastMaintenanceDate *time.Time
	Notes               *string
	ImageURL            *string
}

// MaintenanceInput records a service on a piece of equipment.
type MaintenanceInput struct {
	MaintenanceDate     time.Time
	MaintenanceType     string
	Description         string
	Cost                float64
	Result              string
	NextMaintenanceDate *time.Time
}

// List returns a filtered, sorted page. Page size defaults to 10 and is capped at 50.
func (s *EquipmentService) List(ctx context.Context, q EquipmentQuery) (*EquipmentPage, error) {
	page := q.PageRequest.normalize(10, 50)
	items, total, err := s.equipment.List(ctx, repository.EquipmentFilter{
		Search:     strings.TrimSpace(q.Search),
		DeviceType: strings.TrimSpace(q.DeviceType),
		Status:     strings.TrimSpace(q.Status),
		Department: strings.TrimSpace(q.Department),
		SortBy:     q.SortBy,
		SortDesc:   strings.EqualFold(q.SortOrder, "desc"),
		Page:       page.repoPage(),
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &EquipmentPage{Items: items, PageInfo: page.info(total)}, nil
}

// Get loads one record.
func (s *EquipmentService) Get(ctx context.Context, id string) (*domain.Equipment, error) {
	e, err := s.equipment.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("equipment", map[string]any{"equipment_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return e, nil
}

// Create registers new equipment.
func (s *EquipmentService) Create(ctx context.Context, input EquipmentInput) (*domain.Equipment, error) {
	e := &domain.Equipment{}
	if err := applyEquipmentInput(e, input); err != nil {
		return nil, err
	}
	if err := s.equipment.Create(ctx, e); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.invalidateLookups(ctx)
	return e, nil
}

// Update replaces the writable fields of an existing record.
func (s *EquipmentService) Update(ctx context.Context, id string, input EquipmentInput) (*domain.Equipment, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyEquipmentInput(e, input); err != nil {
		return nil, err
	}
	if err := s.equipment.Update(ctx, e); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.invalidateLookups(ctx)
	return e, nil
}

// Delete removes equipment no ticket references.
func (s *EquipmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.tickets.CountByEquipment(ctx, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if count > 0 {
		return apperrors.NewConflict("equipment is referenced by repair tickets", map[string]any{"tickets": count})
	}
	if err := s.equipment.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrEquipmentInUse) {
			return apperrors.NewConflict("equipment is referenced by repair tickets", nil)
		}
		if apperrors.IsNotFound(err) {
			return apperrors.NewNotFound("equipment", map[string]any{"equipment_id": id})
		}
		return apperrors.MapError(err)
	}
	s.invalidateLookups(ctx)
	return nil
}

// DeviceTypes returns the distinct device types in use.
func (s *EquipmentService) DeviceTypes(ctx context.Context) ([]string, error) {
	return s.cachedLookup(ctx, lookupDeviceTypes, s.equipment.DistinctDeviceTypes)
}

// Departments returns the distinct departments in use.
func (s *EquipmentService) Departments(ctx context.Context) ([]string, error) {
	return s.cachedLookup(ctx, lookupDepartments, s.equipment.DistinctDepartments)
}

// ListMaintenance returns the maintenance log, newest first.
func (s *EquipmentService) ListMaintenance(ctx context.Context, equipmentID string) ([]domain.MaintenanceRecord, error) {
	if _, err := s.Get(ctx, equipmentID); err != nil {
		return nil, err
	}
	records, err := s.maintenance.ListByEquipment(ctx, equipmentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return records, nil
}

// RecordMaintenance appends to the log and advances last_maintenance_date
// when the new date is later.
func (s *EquipmentService) RecordMaintenance(ctx context.Context, actor *domain.User, equipmentID string, input MaintenanceInput) (*domain.MaintenanceRecord, error) {
	if _, err := s.Get(ctx, equipmentID); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if input.MaintenanceDate.IsZero() {
		fields["maintenance_date"] = "required"
	}
	if strings.TrimSpace(input.MaintenanceType) == "" {
		fields["maintenance_type"] = "required"
	}
	if input.Cost < 0 {
		fields["cost"] = "must not be negative"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid maintenance record", fields)
	}

	record := &domain.MaintenanceRecord{
		EquipmentID:         equipmentID,
		MaintenanceDate:     input.MaintenanceDate,
		MaintenanceType:     strings.TrimSpace(input.MaintenanceType),
		Description:         strings.TrimSpace(input.Description),
		Cost:                input.Cost,
		PerformedBy:         actor.ID,
		Result:              strings.TrimSpace(input.Result),
		NextMaintenanceDate: input.NextMaintenanceDate,
	}
	if err := s.maintenance.Create(ctx, record); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.equipment.UpdateLastMaintenance(ctx, equipmentID, record.MaintenanceDate); err != nil {
		return nil, apperrors.MapError(err)
	}
	return record, nil
}

func applyEquipmentInput(e *domain.Equipment, in EquipmentInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if len([]rune(name)) > 200 {
		return apperrors.NewValidationError("name is too long", map[string]any{"field": "name"})
	}
	e.Name = name
	e.DeviceType = strings.TrimSpace(in.DeviceType)
	e.SerialNumber = strings.TrimSpace(in.SerialNumber)
	e.Status = strings.TrimSpace(in.Status)
	e.Department = strings.TrimSpace(in.Department)
	e.Location = strings.TrimSpace(in.Location)
	e.PurchaseDate = in.PurchaseDate
	e.LastMaintenanceDate = in.LastMaintenanceDate
	e.Notes = in.Notes
	e.ImageURL = in.ImageURL
	return nil
}

// cachedLookup reads through the cache. Cache failures fall back to the database.
func (s *EquipmentService) cachedLookup(ctx context.Context, key string, load func(context.Context) ([]string, error)) ([]string, error) {
	if s.cache != nil {
		values, ok, err := s.cache.GetStrings(ctx, key)
		if err != nil {
			s.logger.Warn("lookup cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return values, nil
		}
	}

	values, err := load(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if values == nil {
		values = []string{}
	}
	if s.cache != nil {
		if err := s.cache.SetStrings(ctx, key, values); err != nil {
			s.logger.Warn("lookup cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return values, nil
}

func (s *EquipmentService) invalidateLookups(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, lookupDeviceTypes, lookupDepartments); err != nil {
		s.logger.Warn("lookup cache invalidation failed", zap.Error(err))
	}
}
