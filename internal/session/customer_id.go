package session

import (
	"strings"

	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
)

// CustomerKey is the decomposed form of a customer id.
type CustomerKey struct {
	State string
	City  string
	Phone string
}

func (k CustomerKey) String() string {
	return k.State + "/" + k.City + "/" + k.Phone
}

// ComposeCustomerID builds the "{state}/{city}/{phone}" id used in every
// customer path.
func ComposeCustomerID(state, city, phone string) (string, error) {
	key := CustomerKey{
		State: strings.TrimSpace(state),
		City:  strings.TrimSpace(city),
		Phone: normalizePhone(phone),
	}
	for _, part := range []string{key.State, key.City, key.Phone} {
		if !docstore.ValidSegment(part) {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "state, city and phone are required and may not contain . # $ [ ] or /")
		}
	}
	return key.String(), nil
}

// ParseCustomerID splits a customer id into its parts.
func ParseCustomerID(id string) (CustomerKey, error) {
	parts := strings.Split(id, "/")
	if len(parts) != 3 {
		return CustomerKey{}, pkgerrors.New(pkgerrors.CodeValidation, "customer id must be state/city/phone")
	}
	for _, part := range parts {
		if !docstore.ValidSegment(part) {
			return CustomerKey{}, pkgerrors.New(pkgerrors.CodeValidation, "customer id contains an invalid segment")
		}
	}
	return CustomerKey{State: parts[0], City: parts[1], Phone: parts[2]}, nil
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if r == ' ' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
