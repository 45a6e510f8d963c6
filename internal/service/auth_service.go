package service

import (
	"context"
	"fmt"
	"time"

	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"
	"wallet-platform/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AuthServiceImpl implements ports.AuthService: password check, OTP
// challenge over SMS, then JWT issuance.
type AuthServiceImpl struct {
	userRepo     ports.UserRepository
	walletRepo   ports.WalletRepository
	hashSvc      ports.HashService
	encSvc       ports.EncryptionService
	otpSvc       ports.OTPService
	otpStore     ports.OTPStore
	smsSender    ports.SMSSender
	tokenSvc     ports.TokenService
	resendWindow time.Duration
	log          zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl. resendWindow bounds how often
// an OTP may be sent to the same phone number.
func NewAuthService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	hashSvc ports.HashService,
	encSvc ports.EncryptionService,
	otpSvc ports.OTPService,
	otpStore ports.OTPStore,
	smsSender ports.SMSSender,
	tokenSvc ports.TokenService,
	resendWindow time.Duration,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:     userRepo,
		walletRepo:   walletRepo,
		hashSvc:      hashSvc,
		encSvc:       encSvc,
		otpSvc:       otpSvc,
		otpStore:     otpStore,
		smsSender:    smsSender,
		tokenSvc:     tokenSvc,
		resendWindow: resendWindow,
		log:          log,
	}
}

// Register creates the account with an encrypted OTP seed and one empty
// wallet per supported currency.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.User, error) {
	if req.PhoneNumber == "" {
		return nil, apperror.Validation("phone_number is required")
	}
	if len(req.Password) < 8 {
		return nil, apperror.Validation("password must be at least 8 characters")
	}
	if !req.Type.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown user type %q", req.Type))
	}

	existing, err := s.userRepo.GetByPhone(ctx, req.PhoneNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check existing user: %w", err))
	}
	if existing != nil {
		return nil, apperror.Validation("phone number already registered")
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	secret, err := s.otpSvc.GenerateSecret()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate otp secret: %w", err))
	}
	secretEnc, err := s.encSvc.Encrypt(secret)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt otp secret: %w", err))
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		PhoneNumber:  req.PhoneNumber,
		Email:        req.Email,
		PasswordHash: passwordHash,
		OTPSecretEnc: secretEnc,
		Type:         req.Type,
		BusinessID:   req.BusinessID,
		IsActive:     true,
		Scopes:       defaultScopesFor(req.Type),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}

	for _, currency := range domain.Currencies {
		wallet := &domain.Wallet{
			ID:         uuid.New(),
			UserID:     user.ID,
			BusinessID: req.BusinessID,
			Currency:   currency,
			Balance:    decimal.Zero,
			Limit:      decimal.Zero,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.walletRepo.Create(ctx, wallet); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create %s wallet: %w", currency, err))
		}
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("type", string(user.Type)).
		Msg("user registered")

	return user, nil
}

// Login verifies the password and sends an OTP challenge. Lookup and
// password failures both map to invalid credentials so enumeration gives
// nothing away.
func (s *AuthServiceImpl) Login(ctx context.Context, phoneNumber, password string) error {
	user, err := s.userRepo.GetByPhone(ctx, phoneNumber)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return apperror.ErrInvalidCredentials()
	}
	if !user.IsActive {
		return apperror.ErrUserInactive()
	}

	ok, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		return apperror.ErrInvalidCredentials()
	}

	allowed, err := s.otpStore.MarkSent(ctx, phoneNumber, s.resendWindow)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("otp throttle: %w", err))
	}
	if !allowed {
		return apperror.ErrOTPResendTooSoon()
	}

	secret, err := s.encSvc.Decrypt(user.OTPSecretEnc)
	if err != nil {
		return apperror.ErrEncryptionFailure(fmt.Errorf("decrypt otp secret: %w", err))
	}
	code, err := s.otpSvc.Code(secret)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("generate otp code: %w", err))
	}

	if err := s.smsSender.Send(ctx, phoneNumber, fmt.Sprintf("Your verification code is %s", code)); err != nil {
		return apperror.InternalError(fmt.Errorf("send otp: %w", err))
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("otp challenge sent")
	return nil
}

// VerifyOTP checks the one-time password and issues a token pair.
func (s *AuthServiceImpl) VerifyOTP(ctx context.Context, phoneNumber, code string) (*ports.TokenPair, error) {
	user, err := s.userRepo.GetByPhone(ctx, phoneNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrInvalidCredentials()
	}
	if !user.IsActive {
		return nil, apperror.ErrUserInactive()
	}

	secret, err := s.encSvc.Decrypt(user.OTPSecretEnc)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("decrypt otp secret: %w", err))
	}
	if !s.otpSvc.Verify(secret, code) {
		return nil, apperror.ErrInvalidOTP()
	}

	pair, err := s.tokenSvc.Generate(user)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("issue tokens: %w", err))
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("login completed")
	return pair, nil
}

// Refresh exchanges a refresh token for a fresh token pair.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
	userID, err := s.tokenSvc.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, apperror.ErrInvalidToken()
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrUserNotFound()
	}
	if !user.IsActive {
		return nil, apperror.ErrUserInactive()
	}

	pair, err := s.tokenSvc.Generate(user)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("issue tokens: %w", err))
	}
	return pair, nil
}

// defaultScopesFor maps a user tier to its initial scope set. Agencies hold
// the administrative scopes; business and regular accounts can only operate
// their own wallets.
func defaultScopesFor(t domain.UserType) []string {
	switch t {
	case domain.UserTypeAgency:
		return []string{
			domain.ScopeWalletRead,
			domain.ScopeWalletUpdate,
			domain.ScopeWalletTransactionCreate,
			domain.ScopeWalletTransactionRead,
			domain.ScopeGatewayCreate,
			domain.ScopeGatewayRead,
			domain.ScopeGatewayUpdate,
			domain.ScopeGatewayDelete,
			domain.ScopeGatewayTransactionRead,
		}
	default:
		return []string{
			domain.ScopeWalletRead,
			domain.ScopeWalletTransactionCreate,
			domain.ScopeWalletTransactionRead,
			domain.ScopeGatewayTransactionRead,
		}
	}
}
