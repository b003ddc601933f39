package domain

import "time"

// Equipment is a tracked device that repair tickets can reference.
type Equipment struct {
	ID                  string
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
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// MaintenanceRecord logs a service performed on a piece of equipment.
type MaintenanceRecord struct {
	ID                  string
	EquipmentID         string
	MaintenanceDate     time.Time
	MaintenanceType     string
	Description         string
	Cost                float64
	PerformedBy         string
	Result              string
	NextMaintenanceDate *time.Time
	CreatedAt           time.Time
}
