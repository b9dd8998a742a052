package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/licenseguard/licenseguard/internal/models"
	"github.com/licenseguard/licenseguard/internal/repositories"
	"github.com/licenseguard/licenseguard/internal/utils"
	"go.uber.org/zap"
)

const MinPasswordLength = 6

// RegistryService owns the license/account state machine: activation,
// login with device admission, and read-only license checks. All writes
// that race per account are pushed down to the repositories, which
// serialize them on the account row.
type RegistryService struct {
	accountRepo    repositories.AccountRepository
	deviceRepo     repositories.DeviceRepository
	maxDevices     int
	storageTimeout time.Duration
	validate       *validator.Validate
	logger         *zap.Logger
}

type ActivateInput struct {
	LicenseCode string `json:"license_code" validate:"required"`
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required"`
	Fingerprint string `json:"fingerprint" validate:"required"`
}

type LoginInput struct {
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required"`
	Fingerprint string `json:"fingerprint" validate:"required"`
}

type CheckResult struct {
	Valid     bool `json:"valid"`
	Available bool `json:"available"`
}

func NewRegistryService(
	accountRepo repositories.AccountRepository,
	deviceRepo repositories.DeviceRepository,
	maxDevices int,
	storageTimeout time.Duration,
	logger *zap.Logger,
) *RegistryService {
	return &RegistryService{
		accountRepo:    accountRepo,
		deviceRepo:     deviceRepo,
		maxDevices:     maxDevices,
		storageTimeout: storageTimeout,
		validate:       validator.New(),
		logger:         logger,
	}
}

func (s *RegistryService) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storageTimeout)
}

// Activate redeems a provisioned license code: it sets the credential,
// flips the account to activated, and registers the first device as one
// atomic unit. Retrying the identical request succeeds without mutation.
func (s *RegistryService) Activate(ctx context.Context, input ActivateInput) (*models.Account, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, ErrInvalidInput
	}
	if len(input.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	account, err := s.accountRepo.GetByCode(ctx, input.LicenseCode)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, storageErr("get account by code", err)
	}

	if account.Activated() {
		return s.reactivate(ctx, account, input)
	}

	if err := s.checkUsernameFree(ctx, account.ID, input.Username); err != nil {
		return nil, err
	}

	passwordHash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.accountRepo.Activate(ctx, account.ID, input.Username, passwordHash, input.Fingerprint)
	if errors.Is(err, repositories.ErrDuplicateUsername) {
		return nil, ErrUsernameTaken
	}
	if errors.Is(err, repositories.ErrConflict) {
		// Lost the race to another activation; decide idempotency
		// against what actually got committed.
		account, err = s.accountRepo.GetByCode(ctx, input.LicenseCode)
		if err != nil {
			return nil, storageErr("reload account", err)
		}
		return s.reactivate(ctx, account, input)
	}
	if err != nil {
		return nil, storageErr("activate account", err)
	}

	s.logger.Info("license activated",
		zap.String("license_code", account.LicenseCode),
		zap.String("username", input.Username),
	)

	account, err = s.accountRepo.GetByCode(ctx, input.LicenseCode)
	if err != nil {
		return nil, storageErr("reload account", err)
	}
	return account, nil
}

// reactivate handles an Activate call against an already-activated
// account. The identical request retried (same username, same
// fingerprint, verifying password) is a success; anything else is a
// conflict.
func (s *RegistryService) reactivate(ctx context.Context, account *models.Account, input ActivateInput) (*models.Account, error) {
	if account.Username != input.Username {
		return nil, ErrAlreadyActivated
	}
	if !utils.CheckPassword(account.PasswordHash, input.Password) {
		return nil, ErrAlreadyActivated
	}

	_, err := s.deviceRepo.GetByFingerprint(ctx, account.ID, input.Fingerprint)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrAlreadyActivated
	}
	if err != nil {
		return nil, storageErr("get device", err)
	}
	return account, nil
}

func (s *RegistryService) checkUsernameFree(ctx context.Context, accountID uuid.UUID, username string) error {
	owner, err := s.accountRepo.GetByUsername(ctx, username)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storageErr("get account by username", err)
	}
	if owner.ID != accountID {
		return ErrUsernameTaken
	}
	return nil
}

// Login verifies credentials, admits the device under the quota, and
// returns the account. Unknown usernames and wrong passwords produce the
// same error and cost the same bcrypt comparison.
func (s *RegistryService) Login(ctx context.Context, input LoginInput) (*models.Account, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, ErrInvalidInput
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	account, err := s.accountRepo.GetByUsername(ctx, input.Username)
	if errors.Is(err, repositories.ErrNotFound) {
		utils.CheckPasswordDummy(input.Password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storageErr("get account by username", err)
	}

	if !account.Activated() {
		return nil, ErrNotActivated
	}

	if !utils.CheckPassword(account.PasswordHash, input.Password) {
		return nil, ErrInvalidCredentials
	}

	_, err = s.deviceRepo.AddIfUnderQuota(ctx, account.ID, input.Fingerprint, s.maxDevices)
	if errors.Is(err, repositories.ErrQuotaExceeded) {
		s.logger.Warn("device limit exceeded",
			zap.String("username", account.Username),
			zap.Int("max_devices", s.maxDevices),
		)
		return nil, ErrDeviceLimitExceeded
	}
	if err != nil {
		return nil, storageErr("admit device", err)
	}

	if err := s.accountRepo.TouchLastLogin(ctx, account.ID); err != nil {
		return nil, storageErr("update last login", err)
	}

	return account, nil
}

// CheckLicense is read-only: valid means the code is provisioned,
// available means it has not been activated yet.
func (s *RegistryService) CheckLicense(ctx context.Context, code string) (CheckResult, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	account, err := s.accountRepo.GetByCode(ctx, code)
	if errors.Is(err, repositories.ErrNotFound) {
		return CheckResult{Valid: false, Available: false}, nil
	}
	if err != nil {
		return CheckResult{}, storageErr("get account by code", err)
	}

	return CheckResult{Valid: true, Available: !account.Activated()}, nil
}

// ProvisionLicense creates an unactivated account row for a new license
// code. With an empty code a fresh one is generated.
func (s *RegistryService) ProvisionLicense(ctx context.Context, code string) (*models.Account, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if code == "" {
		generated, err := utils.NewLicenseCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate license code: %w", err)
		}
		code = generated
	}

	account := &models.Account{
		LicenseCode: code,
		State:       models.StateUnactivated,
	}
	err := s.accountRepo.Create(ctx, account)
	if errors.Is(err, repositories.ErrConflict) {
		// Supplied code is already provisioned.
		return nil, ErrInvalidInput
	}
	if err != nil {
		return nil, storageErr("create account", err)
	}

	s.logger.Info("license provisioned", zap.String("license_code", account.LicenseCode))
	return account, nil
}

func (s *RegistryService) ListDevices(ctx context.Context, accountID uuid.UUID) ([]*models.Device, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	devices, err := s.deviceRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, storageErr("list devices", err)
	}
	return devices, nil
}

// RemoveDevice frees a quota slot. Removing an unknown fingerprint is a
// no-op; sessions bound to the removed device are revoked by the caller
// through the session authority.
func (s *RegistryService) RemoveDevice(ctx context.Context, accountID uuid.UUID, fingerprint string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err := s.deviceRepo.Remove(ctx, accountID, fingerprint)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storageErr("remove device", err)
	}
	return nil
}
