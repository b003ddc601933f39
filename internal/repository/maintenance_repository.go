package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairdesk/repair-service/internal/domain"
)

// MaintenanceRepository stores equipment service records.
type MaintenanceRepository interface {
	Create(ctx context.Context, record *domain.MaintenanceRecord) error
	ListByEquipment(ctx context.Context, equipmentID string) ([]domain.MaintenanceRecord, error)
}

type maintenanceRepository struct {
	pool *pgxpool.Pool
}

// NewMaintenanceRepository constructs repository.
func NewMaintenanceRepository(pool *pgxpool.Pool) MaintenanceRepository {
	return &maintenanceRepository{pool: pool}
}

func (r *maintenanceRepository) Create(ctx context.Context, record *domain.MaintenanceRecord) error {
	const query = `
        INSERT INTO maintenance_records (equipment_id, maintenance_date, maintenance_type, description, cost, performed_by, result, next_maintenance_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		record.EquipmentID,
		record.MaintenanceDate,
		record.MaintenanceType,
		record.Description,
		record.Cost,
		record.PerformedBy,
		record.Result,
		record.NextMaintenanceDate,
	).Scan(&record.ID, &record.CreatedAt)
}

func (r *maintenanceRepository) ListByEquipment(ctx context.Context, equipmentID string) ([]domain.MaintenanceRecord, error) {
	if err := validID(equipmentID); err != nil {
		return nil, nil
	}
	const query = `
        SELECT id, equipment_id, maintenance_date, maintenance_type, description, cost, performed_by, result, next_maintenance_date, created_at
        FROM maintenance_records WHERE equipment_id=$1 ORDER BY maintenance_date DESC, created_at DESC`
	rows, err := r.pool.Query(ctx, query, equipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.MaintenanceRecord
	for rows.Next() {
		var record domain.MaintenanceRecord
		if err := rows.Scan(
			&record.ID,
			&record.EquipmentID,
			&record.MaintenanceDate,
			&record.MaintenanceType,
			&record.Description,
			&record.Cost,
			&record.PerformedBy,
			&record.Result,
			&record.NextMaintenanceDate,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
