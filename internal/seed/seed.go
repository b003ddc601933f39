// Package seed loads fixture data into an empty database.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/repairdesk/repair-service/internal/auth"
	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/repository"
)

//go:embed default.yaml
var defaultFixture []byte

// Fixture is the YAML seed document.
type Fixture struct {
	Users     []UserFixture      `yaml:"users"`
	Equipment []EquipmentFixture `yaml:"equipment"`
	Tickets   []TicketFixture    `yaml:"tickets"`
}

// UserFixture seeds one account.
type UserFixture struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Role       string `yaml:"role"`
	Phone      string `yaml:"phone"`
	Department string `yaml:"department"`
}

// EquipmentFixture seeds one device.
type EquipmentFixture struct {
	Name         string `yaml:"name"`
	DeviceType   string `yaml:"device_type"`
	SerialNumber string `yaml:"serial_number"`
	Status       string `yaml:"status"`
	Department   string `yaml:"department"`
	Location     string `yaml:"location"`
	Notes        string `yaml:"notes"`
}

// TicketFixture seeds one ticket. Reporter and handler are usernames;
// equipment is a serial number.
type TicketFixture struct {
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	Reporter     string `yaml:"reporter"`
	Handler      string `yaml:"handler"`
	Equipment    string `yaml:"equipment"`
	DeviceType   string `yaml:"device_type"`
	DeviceNumber string `yaml:"device_number"`
	Problem      string `yaml:"problem"`
	Solution     string `yaml:"solution"`
	Status       string `yaml:"status"`
	Priority     string `yaml:"priority"`
	Location     string `yaml:"location"`
}

// Parse decodes and validates a fixture document.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads a fixture from path, or the built-in fixture when path is empty.
func Load(path string) (*Fixture, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultFixture)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

func (f *Fixture) validate() error {
	usernames := map[string]bool{}
	for i, u := range f.Users {
		if u.Username == "" || u.Password == "" || u.Name == "" {
			return fmt.Errorf("users[%d]: username, password and name are required", i)
		}
		if !domain.Role(u.Role).Valid() {
			return fmt.Errorf("users[%d]: unknown role %q", i, u.Role)
		}
		usernames[u.Username] = true
	}
	serials := map[string]bool{}
	for i, e := range f.Equipment {
		if e.Name == "" {
			return fmt.Errorf("equipment[%d]: name is required", i)
		}
		if e.SerialNumber != "" {
			serials[e.SerialNumber] = true
		}
	}
	for i, t := range f.Tickets {
		if t.Title == "" {
			return fmt.Errorf("tickets[%d]: title is required", i)
		}
		if !usernames[t.Reporter] {
			return fmt.Errorf("tickets[%d]: unknown reporter %q", i, t.Reporter)
		}
		if t.Handler != "" && !usernames[t.Handler] {
			return fmt.Errorf("tickets[%d]: unknown handler %q", i, t.Handler)
		}
		if t.Equipment != "" && !serials[t.Equipment] {
			return fmt.Errorf("tickets[%d]: unknown equipment %q", i, t.Equipment)
		}
		if t.Status != "" && !domain.TicketStatus(t.Status).Valid() {
			return fmt.Errorf("tickets[%d]: unknown status %q", i, t.Status)
		}
	}
	return nil
}

// Seeder writes fixtures through the repositories.
type Seeder struct {
	users      repository.UserRepository
	equipment  repository.EquipmentRepository
	tickets    repository.RepairTicketRepository
	bcryptCost int
	logger     *zap.Logger
}

// NewSeeder builds a seeder.
func NewSeeder(users repository.UserRepository, equipment repository.EquipmentRepository, tickets repository.RepairTicketRepository, bcryptCost int, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{users: users, equipment: equipment, tickets: tickets, bcryptCost: bcryptCost, logger: logger}
}

// Seed applies f when no users exist yet and reports whether anything was written.
func (s *Seeder) Seed(ctx context.Context, f *Fixture) (bool, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		s.logger.Info("database already has users; skipping seed", zap.Int("users", count))
		return false, nil
	}

	userIDs := make(map[string]string, len(f.Users))
	for _, u := range f.Users {
		hash, err := auth.HashPassword(u.Password, s.bcryptCost)
		if err != nil {
			return false, err
		}
		user := &domain.User{
			Username:     u.Username,
			Name:         u.Name,
			Role:         domain.Role(u.Role),
			Phone:        u.Phone,
			Department:   u.Department,
			PasswordHash: hash,
		}
		if u.Email != "" {
			email := u.Email
			user.Email = &email
		}
		if err := s.users.Create(ctx, user); err != nil {
			return false, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		userIDs[u.Username] = user.ID
	}

	equipmentIDs := make(map[string]string, len(f.Equipment))
	for _, e := range f.Equipment {
		item := &domain.Equipment{
			Name:         e.Name,
			DeviceType:   e.DeviceType,
			SerialNumber: e.SerialNumber,
			Status:       e.Status,
			Department:   e.Department,
			Location:     e.Location,
			Notes:        optional(e.Notes),
		}
		if err := s.equipment.Create(ctx, item); err != nil {
			return false, fmt.Errorf("seed equipment %s: %w", e.Name, err)
		}
		if e.SerialNumber != "" {
			equipmentIDs[e.SerialNumber] = item.ID
		}
	}

	for _, t := range f.Tickets {
		status := domain.TicketStatus(t.Status)
		if status == "" {
			status = domain.TicketStatusPending
		}
		ticket := &domain.RepairTicket{
			Title:        t.Title,
			Description:  t.Description,
			DeviceType:   optional(t.DeviceType),
			DeviceNumber: optional(t.DeviceNumber),
			Problem:      optional(t.Problem),
			Solution:     optional(t.Solution),
			Priority:     optional(t.Priority),
			Location:     optional(t.Location),
			Status:       status,
			UserID:       userIDs[t.Reporter],
		}
		if t.Description == "" {
			ticket.Description = t.Title
		}
		if t.Handler != "" {
			id := userIDs[t.Handler]
			ticket.HandledBy = &id
		}
		if t.Equipment != "" {
			id := equipmentIDs[t.Equipment]
			ticket.EquipmentID = &id
		}
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return false, fmt.Errorf("seed ticket %s: %w", t.Title, err)
		}
	}

	s.logger.Info("seed applied",
		zap.Int("users", len(f.Users)),
		zap.Int("equipment", len(f.Equipment)),
		zap.Int("tickets", len(f.Tickets)))
	return true, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
