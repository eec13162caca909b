package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/buildmart-backend/internal/docpaths"
	"github.com/angelmondragon/buildmart-backend/internal/session"
	pkgAuth "github.com/angelmondragon/buildmart-backend/pkg/auth"
	authsession "github.com/angelmondragon/buildmart-backend/pkg/auth/session"
	"github.com/angelmondragon/buildmart-backend/pkg/config"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
	"github.com/angelmondragon/buildmart-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	RegisterCustomer(ctx context.Context, req CustomerRegisterRequest) (string, error)
	RegisterVendor(ctx context.Context, req VendorRegisterRequest) (string, error)
	LoginCustomer(ctx context.Context, req CustomerLoginRequest) (*TokenResponse, error)
	LoginVendor(ctx context.Context, req VendorLoginRequest) (*TokenResponse, error)
	LoginAdmin(ctx context.Context, req AdminLoginRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error)
	Logout(ctx context.Context, accessID string) error
	BootstrapAdmin(ctx context.Context, username, password string) (bool, error)
	VendorName(ctx context.Context, vendorID string) (string, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string, identity authsession.Identity) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, authsession.Identity, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Store          docstore.Store
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
}

type service struct {
	store       docstore.Store
	session     sessionManager
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

// NewService constructs the account service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	return &service{
		store:       params.Store,
		session:     params.SessionManager,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		now:         time.Now,
	}, nil
}

func (s *service) LoginCustomer(ctx context.Context, req CustomerLoginRequest) (*TokenResponse, error) {
	customerID, err := session.ComposeCustomerID(req.State, req.City, req.Phone)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	path := docpaths.CustomerProfile(customerID)
	var profile CustomerProfile
	if err := s.authenticate(ctx, path, req.Password, &profile, func() string { return profile.PasswordHash }); err != nil {
		return nil, err
	}
	return s.issue(ctx, path, authsession.Identity{Subject: customerID, Role: enums.RoleCustomer, Name: profile.Name})
}

func (s *service) LoginVendor(ctx context.Context, req VendorLoginRequest) (*TokenResponse, error) {
	vendorID := strings.TrimSpace(req.VendorID)
	if !docstore.ValidSegment(vendorID) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	path := docpaths.VendorProfile(vendorID)
	var profile VendorProfile
	if err := s.authenticate(ctx, path, req.Password, &profile, func() string { return profile.PasswordHash }); err != nil {
		return nil, err
	}
	return s.issue(ctx, path, authsession.Identity{Subject: vendorID, Role: enums.RoleVendor, Name: profile.BusinessName})
}

func (s *service) LoginAdmin(ctx context.Context, req AdminLoginRequest) (*TokenResponse, error) {
	username := strings.TrimSpace(req.Username)
	if !docstore.ValidSegment(username) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	path := docpaths.AdminProfile(username)
	var profile AdminProfile
	if err := s.authenticate(ctx, path, req.Password, &profile, func() string { return profile.PasswordHash }); err != nil {
		return nil, err
	}
	return s.issue(ctx, path, authsession.Identity{Subject: username, Role: enums.RoleAdmin, Name: username})
}

// Refresh validates the refresh token bound to the (possibly expired) access
// token and issues a new pair.
func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, req.AccessToken)
	if err != nil || claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}
	newAccessID, refreshToken, identity, err := s.session.Rotate(ctx, claims.ID, req.RefreshToken)
	if err != nil {
		if errors.Is(err, authsession.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate refresh token")
	}
	accessToken, err := s.mint(identity, newAccessID)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Role:         identity.Role,
		Subject:      identity.Subject,
		Name:         identity.Name,
	}, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// VendorName returns the business name shown on products and orders.
func (s *service) VendorName(ctx context.Context, vendorID string) (string, error) {
	var profile VendorProfile
	ok, err := docstore.GetInto(ctx, s.store, docpaths.VendorProfile(vendorID), &profile)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
	}
	return profile.BusinessName, nil
}

func (s *service) authenticate(ctx context.Context, path, password string, dest any, hash func() string) error {
	ok, err := docstore.GetInto(ctx, s.store, path, dest)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup account")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	valid, err := security.VerifyPassword(password, hash())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return nil
}

func (s *service) issue(ctx context.Context, profilePath string, identity authsession.Identity) (*TokenResponse, error) {
	now := s.now().UTC()
	if err := s.store.Update(ctx, profilePath, map[string]any{"lastLoginAt": now}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}

	accessID := authsession.NewAccessID()
	accessToken, err := s.mint(identity, accessID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.session.Generate(ctx, accessID, identity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Role:         identity.Role,
		Subject:      identity.Subject,
		Name:         identity.Name,
	}, nil
}

func (s *service) mint(identity authsession.Identity, accessID string) (string, error) {
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now(), pkgAuth.AccessTokenPayload{
		Subject: identity.Subject,
		Role:    identity.Role,
		Name:    identity.Name,
		JTI:     accessID,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token, nil
}
