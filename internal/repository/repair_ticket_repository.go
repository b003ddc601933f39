package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairdesk/repair-service/internal/domain"
)

// RepairTicketFilter narrows ticket listings. UserID and HandledBy carry the
// role scope applied by the service.
type RepairTicketFilter struct {
	UserID      *string
	HandledBy   *string
	Unassigned  bool
	Status      *domain.TicketStatus
	Priority    *string
	EquipmentID *string
	Search      string
	Page
}

// RepairTicketRepository abstracts ticket persistence.
type RepairTicketRepository interface {
	Create(ctx context.Context, ticket *domain.RepairTicket) error
	Update(ctx context.Context, ticket *domain.RepairTicket) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.RepairTicket, error)
	List(ctx context.Context, filter RepairTicketFilter) ([]domain.RepairTicket, int, error)
	CountByEquipment(ctx context.Context, equipmentID string) (int, error)
}

type repairTicketRepository struct {
	pool *pgxpool.Pool
}

// NewRepairTicketRepository builds a Postgres-backed repository.
func NewRepairTicketRepository(pool *pgxpool.Pool) RepairTicketRepository {
	return &repairTicketRepository{pool: pool}
}

const repairTicketColumns = `id, title, description, device_type, device_number, problem, solution, status, priority, location, equipment_id, user_id, handled_by, created_at, updated_at`

func (r *repairTicketRepository) Create(ctx context.Context, t *domain.RepairTicket) error {
	const query = `
        INSERT INTO repair_tickets (title, description, device_type, device_number, problem, solution, status, priority, location, equipment_id, user_id, handled_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		t.Title,
		t.Description,
		t.DeviceType,
		t.DeviceNumber,
		t.Problem,
		t.Solution,
		t.Status,
		t.Priority,
		t.Location,
		t.EquipmentID,
		t.UserID,
		t.HandledBy,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *repairTicketRepository) Update(ctx context.Context, t *domain.RepairTicket) error {
	if err := validID(t.ID); err != nil {
		return err
	}
	const query = `
        UPDATE repair_tickets SET title=$1, description=$2, device_type=$3, device_number=$4, problem=$5, solution=$6,
            status=$7, priority=$8, location=$9, equipment_id=$10, handled_by=$11, updated_at=NOW()
        WHERE id=$12
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		t.Title,
		t.Description,
		t.DeviceType,
		t.DeviceNumber,
		t.Problem,
		t.Solution,
		t.Status,
		t.Priority,
		t.Location,
		t.EquipmentID,
		t.HandledBy,
		t.ID,
	).Scan(&t.UpdatedAt)
}

func (r *repairTicketRepository) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM repair_tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repairTicketRepository) GetByID(ctx context.Context, id string) (*domain.RepairTicket, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	return scanRepairTicket(r.pool.QueryRow(ctx, `SELECT `+repairTicketColumns+` FROM repair_tickets WHERE id=$1`, id))
}

func (r *repairTicketRepository) List(ctx context.Context, filter RepairTicketFilter) ([]domain.RepairTicket, int, error) {
	where := &whereBuilder{}
	if filter.UserID != nil {
		where.add("user_id=$%d", *filter.UserID)
	}
	if filter.HandledBy != nil {
		where.add("handled_by=$%d", *filter.HandledBy)
	}
	if filter.Unassigned {
		where.clauses = append(where.clauses, "handled_by IS NULL")
	}
	if filter.Status != nil {
		where.add("status=$%d", *filter.Status)
	}
	if filter.Priority != nil {
		where.add("priority=$%d", *filter.Priority)
	}
	if filter.EquipmentID != nil {
		if err := validID(*filter.EquipmentID); err != nil {
			return nil, 0, nil
		}
		where.add("equipment_id=$%d", *filter.EquipmentID)
	}
	where.search(filter.Search, "title", "description", "problem", "device_number")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM repair_tickets`+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + repairTicketColumns + ` FROM repair_tickets` + where.String() +
		` ORDER BY created_at DESC, id ASC` + filter.Page.clause(20)
	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.RepairTicket
	for rows.Next() {
		t, err := scanRepairTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *t)
	}
	return result, total, rows.Err()
}

func (r *repairTicketRepository) CountByEquipment(ctx context.Context, equipmentID string) (int, error) {
	if err := validID(equipmentID); err != nil {
		return 0, nil
	}
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM repair_tickets WHERE equipment_id=$1`, equipmentID).Scan(&total)
	return total, err
}

func scanRepairTicket(row pgx.Row) (*domain.RepairTicket, error) {
	var t domain.RepairTicket
	if err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.DeviceType,
		&t.DeviceNumber,
		&t.Problem,
		&t.Solution,
		&t.Status,
		&t.Priority,
		&t.Location,
		&t.EquipmentID,
		&t.UserID,
		&t.HandledBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
