package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairdesk/repair-service/internal/domain"
)

// ErrEquipmentInUse is returned when tickets still reference the equipment being deleted.
var ErrEquipmentInUse = errors.New("equipment referenced by repair tickets")

// EquipmentFilter narrows equipment listings.
type EquipmentFilter struct {
	Search     string
	DeviceType string
	Status     string
	Department string
	SortBy     string
	SortDesc   bool
	Page
}

var equipmentSortColumns = map[string]string{
	"name":          "name",
	"device_type":   "device_type",
	"status":        "status",
	"department":    "department",
	"purchase_date": "purchase_date",
	"created_at":    "created_at",
}

// EquipmentRepository abstracts equipment persistence.
type EquipmentRepository interface {
	Create(ctx context.Context, equipment *domain.Equipment) error
	Update(ctx context.Context, equipment *domain.Equipment) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Equipment, error)
	List(ctx context.Context, filter EquipmentFilter) ([]domain.Equipment, int, error)
	DistinctDeviceTypes(ctx context.Context) ([]string, error)
	DistinctDepartments(ctx context.Context) ([]string, error)
	UpdateLastMaintenance(ctx context.Context, id string, date time.Time) error
}

type equipmentRepository struct {
	pool *pgxpool.Pool
}

// NewEquipmentRepository builds a Postgres-backed repository.
func NewEquipmentRepository(pool *pgxpool.Pool) EquipmentRepository {
	return &equipmentRepository{pool: pool}
}

const equipmentColumns = `id, name, device_type, serial_number, status, department, location, purchase_date, last_maintenance_date, notes, image_url, created_at, updated_at`

func (r *equipmentRepository) Create(ctx context.Context, e *domain.Equipment) error {
	const query = `
        INSERT INTO equipment (name, device_type, serial_number, status, department, location, purchase_date, last_maintenance_date, notes, image_url)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		e.Name,
		e.DeviceType,
		e.SerialNumber,
		e.Status,
		e.Department,
		e.Location,
		e.PurchaseDate,
		e.LastMaintenanceDate,
		e.Notes,
		e.ImageURL,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (r *equipmentRepository) Update(ctx context.Context, e *domain.Equipment) error {
	if err := validID(e.ID); err != nil {
		return err
	}
	const query = `
        UPDATE equipment SET name=$1, device_type=$2, serial_number=$3, status=$4, department=$5, location=$6,
            purchase_date=$7, last_maintenance_date=$8, notes=$9, image_url=$10, updated_at=NOW()
        WHERE id=$11
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		e.Name,
		e.DeviceType,
		e.SerialNumber,
		e.Status,
		e.Department,
		e.Location,
		e.PurchaseDate,
		e.LastMaintenanceDate,
		e.Notes,
		e.ImageURL,
		e.ID,
	).Scan(&e.UpdatedAt)
}

func (r *equipmentRepository) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM equipment WHERE id=$1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrEquipmentInUse
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *equipmentRepository) GetByID(ctx context.Context, id string) (*domain.Equipment, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	return scanEquipment(r.pool.QueryRow(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id=$1`, id))
}

func (r *equipmentRepository) List(ctx context.Context, filter EquipmentFilter) ([]domain.Equipment, int, error) {
	where := &whereBuilder{}
	where.search(filter.Search, "name", "serial_number", "notes")
	if filter.DeviceType != "" {
		where.add("device_type=$%d", filter.DeviceType)
	}
	if filter.Status != "" {
		where.add("status=$%d", filter.Status)
	}
	if filter.Department != "" {
		where.add("department=$%d", filter.Department)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM equipment`+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := equipmentSortColumns[strings.ToLower(filter.SortBy)]
	if !ok {
		column = "name"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	query := `SELECT ` + equipmentColumns + ` FROM equipment` + where.String() +
		` ORDER BY ` + column + ` ` + direction + ` NULLS LAST, id ASC` + filter.Page.clause(10)
	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *e)
	}
	return result, total, rows.Err()
}

func (r *equipmentRepository) DistinctDeviceTypes(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "device_type")
}

func (r *equipmentRepository) DistinctDepartments(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "department")
}

// distinct is only called with fixed column names.
func (r *equipmentRepository) distinct(ctx context.Context, column string) ([]string, error) {
	query := `SELECT DISTINCT ` + column + ` FROM equipment WHERE ` + column + ` <> '' ORDER BY ` + column
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, rows.Err()
}

func (r *equipmentRepository) UpdateLastMaintenance(ctx context.Context, id string, date time.Time) error {
	if err := validID(id); err != nil {
		return err
	}
	const query = `
        UPDATE equipment SET last_maintenance_date=$1, updated_at=NOW()
        WHERE id=$2 AND (last_maintenance_date IS NULL OR last_maintenance_date < $1)`
	_, err := r.pool.Exec(ctx, query, date, id)
	return err
}

func scanEquipment(row pgx.Row) (*domain.Equipment, error) {
	var e domain.Equipment
	if err := row.Scan(
		&e.ID,
		&e.Name,
		&e.DeviceType,
		&e.SerialNumber,
		&e.Status,
		&e.Department,
		&e.Location,
		&e.PurchaseDate,
		&e.LastMaintenanceDate,
		&e.Notes,
		&e.ImageURL,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}
