package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/marketprep-backend/internal/vendors"
	pkgAuth "github.com/angelmondragon/marketprep-backend/pkg/auth"
	"github.com/angelmondragon/marketprep-backend/pkg/auth/session"
	"github.com/angelmondragon/marketprep-backend/pkg/config"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	"github.com/angelmondragon/marketprep-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/google/uuid"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	tokenTypeBearer           = "Bearer"
)

// Service defines the behavior needed by the auth controller.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*AuthResponse, error)
	Logout(ctx context.Context, accessID string) error
}

type vendorRepository interface {
	Create(ctx context.Context, vendor *models.Vendor) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	FindByEmail(ctx context.Context, email string) (*models.Vendor, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionManager interface {
	Generate(ctx context.Context, vendorID uuid.UUID, accessID string) (string, error)
	Rotate(ctx context.Context, refreshToken string) (session.Session, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	VendorRepo     vendorRepository
	SessionManager sessionManager
	Hasher         passwordHasher
	JWTConfig      config.JWTConfig
	Now            func() time.Time
}

type service struct {
	vendors vendorRepository
	session sessionManager
	hasher  passwordHasher
	jwtCfg  config.JWTConfig
	now     func() time.Time
}

// NewService constructs the vendor auth service.
func NewService(params ServiceParams) (Service, error) {
	if params.VendorRepo == nil {
		return nil, fmt.Errorf("vendor repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		vendors: params.VendorRepo,
		session: params.SessionManager,
		hasher:  params.Hasher,
		jwtCfg:  params.JWTConfig,
		now:     now,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := vendors.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.BusinessName)
	if email == "" || name == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email, password and business_name are required")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	vendor := &models.Vendor{
		Email:            email,
		BusinessName:     name,
		SubscriptionTier: enums.SubscriptionTierFree,
		PasswordHash:     hash,
	}
	if err := s.vendors.Create(ctx, vendor); err != nil {
		return nil, err
	}

	now, err := s.recordLogin(ctx, vendor)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, vendor, now, session.NewAccessID())
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	vendor, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	now, err := s.recordLogin(ctx, vendor)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, vendor, now, session.NewAccessID())
}

// Refresh rotates the refresh token and mints an access token bound to the
// new session id. The tier is re-read so plan changes apply on refresh.
func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	sess, refreshToken, err := s.session.Rotate(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate refresh token")
	}

	vendor, err := s.vendors.FindByID(ctx, sess.VendorID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			_ = s.session.Revoke(ctx, sess.AccessID)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, err
	}

	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgAuth.AccessTokenPayload{
		VendorID: vendor.ID,
		Tier:     vendor.SubscriptionTier,
		JTI:      sess.AccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &AuthResponse{
		Vendor:       vendors.NewVendorDTO(*vendor),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
	}, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) issue(ctx context.Context, vendor *models.Vendor, now time.Time, accessID string) (*AuthResponse, error) {
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		VendorID: vendor.ID,
		Tier:     vendor.SubscriptionTier,
		JTI:      accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, vendor.ID, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return &AuthResponse{
		Vendor:       vendors.NewVendorDTO(*vendor),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
	}, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.Vendor, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	vendor, err := s.vendors.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if vendor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	valid, err := s.hasher.Verify(password, vendor.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return vendor, nil
}

func (s *service) recordLogin(ctx context.Context, vendor *models.Vendor) (time.Time, error) {
	now := s.now().UTC()
	if err := s.vendors.UpdateLastLogin(ctx, vendor.ID, now); err != nil {
		return time.Time{}, err
	}
	vendor.LastLoginAt = &now
	return now, nil
}
