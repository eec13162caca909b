// Package session carries the authenticated principal through service calls.
package session

import (
	"context"
	"strings"

	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
)

// Context identifies who is acting. Exactly one of CustomerID, VendorID or
// Username is set, matching Role.
type Context struct {
	Role       enums.Role
	CustomerID string
	VendorID   string
	Username   string
	Name       string
}

func Customer(customerID string) Context {
	return Context{Role: enums.RoleCustomer, CustomerID: customerID}
}

func Vendor(vendorID string) Context {
	return Context{Role: enums.RoleVendor, VendorID: vendorID}
}

func Admin(username string) Context {
	return Context{Role: enums.RoleAdmin, Username: username}
}

// FromSubject rebuilds a session from a token subject and role.
func FromSubject(role enums.Role, subject, name string) (Context, error) {
	var sc Context
	switch role {
	case enums.RoleCustomer:
		sc = Customer(subject)
	case enums.RoleVendor:
		sc = Vendor(subject)
	case enums.RoleAdmin:
		sc = Admin(subject)
	default:
		return Context{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown role")
	}
	sc.Name = name
	if err := sc.Validate(); err != nil {
		return Context{}, err
	}
	return sc, nil
}

// Subject returns the identifier matching the role.
func (c Context) Subject() string {
	switch c.Role {
	case enums.RoleCustomer:
		return c.CustomerID
	case enums.RoleVendor:
		return c.VendorID
	case enums.RoleAdmin:
		return c.Username
	}
	return ""
}

// Validate checks that the subject is present and usable inside store paths.
func (c Context) Validate() error {
	if !c.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session role is invalid")
	}
	subject := c.Subject()
	if strings.TrimSpace(subject) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session subject is missing")
	}
	if c.Role == enums.RoleCustomer {
		if _, err := ParseCustomerID(subject); err != nil {
			return err
		}
		return nil
	}
	if !docstore.ValidSegment(subject) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session subject is malformed")
	}
	return nil
}

func (c Context) IsCustomer() bool { return c.Role == enums.RoleCustomer }
func (c Context) IsVendor() bool   { return c.Role == enums.RoleVendor }
func (c Context) IsAdmin() bool    { return c.Role == enums.RoleAdmin }

// RequireCustomer returns the customer id or a forbidden error.
func (c Context) RequireCustomer() (string, error) {
	if !c.IsCustomer() || c.CustomerID == "" {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "customer session required")
	}
	return c.CustomerID, nil
}

// RequireVendor returns the vendor id or a forbidden error.
func (c Context) RequireVendor() (string, error) {
	if !c.IsVendor() || c.VendorID == "" {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "vendor session required")
	}
	return c.VendorID, nil
}

func (c Context) RequireAdmin() error {
	if !c.IsAdmin() || c.Username == "" {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin session required")
	}
	return nil
}

type ctxKey struct{}

// WithContext stores the session on ctx for handlers further down the chain.
func WithContext(ctx context.Context, sc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, sc)
}

// FromContext returns the session attached by the auth middleware.
func FromContext(ctx context.Context) (Context, bool) {
	sc, ok := ctx.Value(ctxKey{}).(Context)
	return sc, ok
}
