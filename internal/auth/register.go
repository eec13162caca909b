package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/buildmart-backend/internal/docpaths"
	"github.com/angelmondragon/buildmart-backend/internal/session"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
	"github.com/angelmondragon/buildmart-backend/pkg/security"
)

// RegisterCustomer creates the profile and returns the composite customer id.
func (s *service) RegisterCustomer(ctx context.Context, req CustomerRegisterRequest) (string, error) {
	customerID, err := session.ComposeCustomerID(req.State, req.City, req.Phone)
	if err != nil {
		return "", err
	}
	key, _ := session.ParseCustomerID(customerID)
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return "", err
	}
	profile := CustomerProfile{
		Name:         strings.TrimSpace(req.Name),
		Phone:        key.Phone,
		State:        key.State,
		City:         key.City,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.createOnce(ctx, docpaths.CustomerProfile(customerID), profile); err != nil {
		return "", err
	}
	return customerID, nil
}

func (s *service) RegisterVendor(ctx context.Context, req VendorRegisterRequest) (string, error) {
	vendorID := strings.TrimSpace(req.VendorID)
	if !docstore.ValidSegment(vendorID) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "vendorId may not contain . # $ [ ] or /")
	}
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return "", err
	}
	profile := VendorProfile{
		BusinessName: strings.TrimSpace(req.BusinessName),
		OwnerName:    strings.TrimSpace(req.OwnerName),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.createOnce(ctx, docpaths.VendorProfile(vendorID), profile); err != nil {
		return "", err
	}
	return vendorID, nil
}

// BootstrapAdmin creates the admin account if it does not exist yet.
func (s *service) BootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, nil
	}
	if !docstore.ValidSegment(username) {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "admin username is not a valid path segment")
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return false, err
	}
	profile := AdminProfile{Username: username, PasswordHash: hash, CreatedAt: s.now().UTC()}
	err = s.createOnce(ctx, docpaths.AdminProfile(username), profile)
	if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) hashPassword(password string) (string, error) {
	if err := security.CheckPasswordPolicy(password); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	return hash, nil
}

// createOnce writes a profile only if nothing is stored at path yet.
func (s *service) createOnce(ctx context.Context, path string, profile any) error {
	batch := docstore.NewBatch().Require(path, nil).Set(path, profile)
	err := s.store.Commit(ctx, batch)
	if errors.Is(err, docstore.ErrPreconditionFailed) {
		return pkgerrors.New(pkgerrors.CodeConflict, "account already exists")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}
	return nil
}
