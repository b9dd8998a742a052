package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/licenseguard/licenseguard/internal/models"
	"github.com/licenseguard/licenseguard/internal/repositories"
)

// In-memory repository fakes. One mutex per fake; fakeDeviceRepo holds
// its lock across the whole AddIfUnderQuota check-then-insert, matching
// the per-account serialization the Postgres implementation gets from
// row locks.

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
	devices  *fakeDeviceRepo
}

type fakeDeviceRepo struct {
	mu      sync.Mutex
	devices map[uuid.UUID]map[string]*models.Device
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newFakes() (*fakeAccountRepo, *fakeDeviceRepo, *fakeSessionRepo) {
	devices := &fakeDeviceRepo{devices: make(map[uuid.UUID]map[string]*models.Device)}
	accounts := &fakeAccountRepo{accounts: make(map[uuid.UUID]*models.Account), devices: devices}
	sessions := &fakeSessionRepo{sessions: make(map[string]*models.Session)}
	return accounts, devices, sessions
}

func copyAccount(a *models.Account) *models.Account {
	cp := *a
	return &cp
}

func (f *fakeAccountRepo) Create(ctx context.Context, account *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.accounts {
		if existing.LicenseCode == account.LicenseCode {
			return repositories.ErrConflict
		}
	}
	account.ID = uuid.New()
	account.CreatedAt = time.Now()
	f.accounts[account.ID] = copyAccount(account)
	return nil
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if account, ok := f.accounts[id]; ok {
		return copyAccount(account), nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeAccountRepo) GetByCode(ctx context.Context, licenseCode string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, account := range f.accounts {
		if account.LicenseCode == licenseCode {
			return copyAccount(account), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeAccountRepo) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, account := range f.accounts {
		if account.Username == username && account.Username != "" {
			return copyAccount(account), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeAccountRepo) Activate(ctx context.Context, id uuid.UUID, username, passwordHash, fingerprint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if account.State == models.StateActivated {
		return repositories.ErrConflict
	}
	for _, other := range f.accounts {
		if other.ID != id && other.Username == username && other.Username != "" {
			return repositories.ErrDuplicateUsername
		}
	}

	account.Username = username
	account.PasswordHash = passwordHash
	account.State = models.StateActivated
	f.devices.register(id, fingerprint)
	return nil
}

func (f *fakeAccountRepo) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	now := time.Now()
	account.LastLoginAt = &now
	return nil
}

func (f *fakeAccountRepo) delete(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, id)
}

func (f *fakeDeviceRepo) register(accountID uuid.UUID, fingerprint string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.add(accountID, fingerprint)
}

// add assumes f.mu is held.
func (f *fakeDeviceRepo) add(accountID uuid.UUID, fingerprint string) *models.Device {
	byFP, ok := f.devices[accountID]
	if !ok {
		byFP = make(map[string]*models.Device)
		f.devices[accountID] = byFP
	}
	if device, ok := byFP[fingerprint]; ok {
		device.LastSeenAt = time.Now()
		return device
	}
	now := time.Now()
	device := &models.Device{
		ID:          uuid.New(),
		AccountID:   accountID,
		Fingerprint: fingerprint,
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	byFP[fingerprint] = device
	return device
}

func (f *fakeDeviceRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var devices []*models.Device
	for _, device := range f.devices[accountID] {
		cp := *device
		devices = append(devices, &cp)
	}
	return devices, nil
}

func (f *fakeDeviceRepo) GetByFingerprint(ctx context.Context, accountID uuid.UUID, fingerprint string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if device, ok := f.devices[accountID][fingerprint]; ok {
		cp := *device
		return &cp, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeDeviceRepo) AddIfUnderQuota(ctx context.Context, accountID uuid.UUID, fingerprint string, quota int) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if device, ok := f.devices[accountID][fingerprint]; ok {
		device.LastSeenAt = time.Now()
		cp := *device
		return &cp, nil
	}
	if len(f.devices[accountID]) >= quota {
		return nil, repositories.ErrQuotaExceeded
	}
	cp := *f.add(accountID, fingerprint)
	return &cp, nil
}

func (f *fakeDeviceRepo) Remove(ctx context.Context, accountID uuid.UUID, fingerprint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.devices[accountID][fingerprint]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.devices[accountID], fingerprint)
	return nil
}

func (f *fakeDeviceRepo) count(accountID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.devices[accountID])
}

func (f *fakeSessionRepo) Create(ctx context.Context, session *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *session
	f.sessions[session.ID] = &cp
	return nil
}

func (f *fakeSessionRepo) GetByID(ctx context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if session, ok := f.sessions[id]; ok {
		cp := *session
		return &cp, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeSessionRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var sessions []*models.Session
	for _, session := range f.sessions {
		if session.AccountID == accountID {
			cp := *session
			sessions = append(sessions, &cp)
		}
	}
	return sessions, nil
}

func (f *fakeSessionRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.sessions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionRepo) DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, session := range f.sessions {
		if session.AccountID == accountID {
			delete(f.sessions, id)
		}
	}
	return nil
}
