package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/repairdesk/repair-service/internal/cache"
	"github.com/repairdesk/repair-service/internal/config"
	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/events"
	"github.com/repairdesk/repair-service/internal/mail"
	"github.com/repairdesk/repair-service/internal/repository/memory"
	"github.com/repairdesk/repair-service/internal/storage"
	apperrors "github.com/repairdesk/repair-service/pkg/util/errorutil"
)

const testBcryptCost = 4

type memFiles struct {
	mu     sync.Mutex
	files  map[string][]byte
	seq    int
	failOn int
}

func newMemFiles() *memFiles { return &memFiles{files: map[string][]byte{}} }

func (f *memFiles) Save(original string, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if f.seq == f.failOn {
		return "", 0, errors.New("disk full")
	}
	stored := strings.Repeat("f", f.seq) + "_" + storage.SanitizeFileName(original)
	f.files[stored] = data
	return stored, int64(len(data)), nil
}

func (f *memFiles) Open(stored string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[stored]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *memFiles) Delete(stored string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, stored)
	return nil
}

func (f *memFiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

type mailbox struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *mailbox) Enqueue(msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mailbox) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.To...)
	}
	return out
}

type memLockout struct {
	mu     sync.Mutex
	states map[string]cache.LockoutState
	down   bool
}

func newMemLockout() *memLockout { return &memLockout{states: map[string]cache.LockoutState{}} }

func (l *memLockout) Get(_ context.Context, username string) (cache.LockoutState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.down {
		return cache.LockoutState{}, errors.New("redis down")
	}
	return l.states[username], nil
}

func (l *memLockout) RecordFailure(_ context.Context, username string, now time.Time, threshold int, window time.Duration) (cache.LockoutState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.down {
		return cache.LockoutState{}, errors.New("redis down")
	}
	state := l.states[username]
	state.FailedCount++
	if state.FailedCount >= threshold {
		until := now.Add(window)
		state.LockedUntil = &until
	}
	l.states[username] = state
	return state, nil
}

func (l *memLockout) Clear(_ context.Context, username string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.states, username)
	return nil
}

type memLookup struct {
	mu     sync.Mutex
	values map[string][]string
	hits   int
}

func newMemLookup() *memLookup { return &memLookup{values: map[string][]string{}} }

func (c *memLookup) GetStrings(_ context.Context, key string) ([]string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *memLookup) SetStrings(_ context.Context, key string, values []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = values
	return nil
}

func (c *memLookup) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

// recorder captures every published event.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) attach(d events.Dispatcher) {
	for _, t := range events.AllEventTypes {
		d.Subscribe(t, func(_ context.Context, e events.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
			return nil
		})
	}
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) count(t events.EventType) int {
	n := 0
	for _, got := range r.types() {
		if got == t {
			n++
		}
	}
	return n
}

type env struct {
	store       *memory.Store
	files       *memFiles
	mail        *mailbox
	lockout     *memLockout
	lookup      *memLookup
	events      *recorder
	dispatcher  events.Dispatcher
	auth        *AuthService
	users       *UserService
	equipment   *EquipmentService
	attachments *AttachmentService
	repairs     *RepairService
	assignments *AssignmentService

	admin    *domain.User
	tech     *domain.User
	reporter *domain.User
	other    *domain.User
	device   *domain.Equipment
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:      memory.NewStore(),
		files:      newMemFiles(),
		mail:       &mailbox{},
		lockout:    newMemLockout(),
		lookup:     newMemLookup(),
		events:     &recorder{},
		dispatcher: events.NewInMemoryDispatcher(nil),
	}
	e.events.attach(e.dispatcher)

	authCfg := config.AuthConfig{
		JWTSecret:               "test-secret",
		Issuer:                  "repair-service",
		Audience:                "repair-clients",
		AccessTokenTTLMinutes:   60,
		PasswordResetTTLMinutes: 30,
		BcryptCost:              testBcryptCost,
		LockoutThreshold:        3,
		LockoutMinutes:          15,
	}
	e.auth = NewAuthService(authCfg, AuthDependencies{
		UserRepo:          e.store.Users(),
		PasswordResetRepo: e.store.PasswordResets(),
		Lockout:           e.lockout,
		Mail:              e.mail,
	})
	e.users = NewUserService(e.store.Users(), testBcryptCost)
	e.equipment = NewEquipmentService(EquipmentDependencies{
		EquipmentRepo:   e.store.Equipment(),
		TicketRepo:      e.store.Tickets(),
		MaintenanceRepo: e.store.Maintenance(),
		Cache:           e.lookup,
	})
	e.attachments = NewAttachmentService(config.StorageConfig{
		MaxFileSizeBytes:  1024,
		AllowedExtensions: []string{".jpg", ".png", ".pdf"},
	}, AttachmentDependencies{
		TicketRepo:     e.store.Tickets(),
		AttachmentRepo: e.store.Attachments(),
		Files:          e.files,
		Dispatcher:     e.dispatcher,
	})
	e.repairs = NewRepairService(RepairDependencies{
		TicketRepo:    e.store.Tickets(),
		UserRepo:      e.store.Users(),
		EquipmentRepo: e.store.Equipment(),
		HistoryRepo:   e.store.History(),
		Attachments:   e.attachments,
		Dispatcher:    e.dispatcher,
	})
	e.assignments = NewAssignmentService(AssignmentDependencies{
		TicketRepo:  e.store.Tickets(),
		UserRepo:    e.store.Users(),
		HistoryRepo: e.store.History(),
		Dispatcher:  e.dispatcher,
	})

	e.admin = e.account(t, "admin", domain.RoleAdmin)
	e.tech = e.account(t, "tech", domain.RoleTechnician)
	e.reporter = e.account(t, "reporter", domain.RoleUser)
	e.other = e.account(t, "other", domain.RoleUser)

	device, err := e.equipment.Create(context.Background(), EquipmentInput{
		Name:         "Front desk PC",
		DeviceType:   "電腦",
		SerialNumber: "PC-001",
		Department:   "業務部",
		Location:     "2F",
	})
	if err != nil {
		t.Fatalf("create equipment: %v", err)
	}
	e.device = device
	return e
}

func (e *env) account(t *testing.T, username string, role domain.Role) *domain.User {
	t.Helper()
	user, err := e.users.Create(context.Background(), AccountInput{
		Username: username,
		Password: username + "-pass",
		Name:     strings.ToUpper(username),
		Email:    username + "@example.com",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return user
}

func (e *env) ticket(t *testing.T, actor *domain.User) *domain.RepairTicket {
	t.Helper()
	ticket, err := e.repairs.Create(context.Background(), actor, CreateRepairInput{
		Title:       "無法開機",
		Description: "按下電源沒有反應",
		EquipmentID: e.device.ID,
		Priority:    "高",
	}, nil)
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func upload(name string, body string) Upload {
	return Upload{
		FileName: name,
		Size:     int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	return apperrors.ToDomainError(err).Code
}

func httpStatus(err error) int {
	if err == nil {
		return 0
	}
	return apperrors.ToDomainError(err).HTTPStatus
}

func ptr[T any](v T) *T { return &v }
