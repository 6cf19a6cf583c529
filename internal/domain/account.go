package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidID is returned when an account id is not a well-formed UUID.
var ErrInvalidID = errors.New("invalid account id")

// Account is a registered user together with the ids it follows.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Following    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountPatch carries a partial account update. Nil fields are left untouched.
type AccountPatch struct {
	Email    *string
	Name     *string
	Password *string
}

// Empty reports whether the patch changes nothing.
func (p AccountPatch) Empty() bool {
	return p.Email == nil && p.Name == nil && p.Password == nil
}

// Projection selects the hidden account fields a read should return.
type Projection uint8

const (
	ProjectPasswordHash Projection = 1 << iota
	ProjectFollowing
)

// ProjectDefault returns only the public fields.
const ProjectDefault Projection = 0

// Has reports whether every field in f is selected.
func (p Projection) Has(f Projection) bool {
	return p&f == f
}

var projectionFields = map[string]Projection{
	"passwordhash":  ProjectPasswordHash,
	"password_hash": ProjectPasswordHash,
	"following":     ProjectFollowing,
}

// ParseFieldSpec turns a semicolon separated list of hidden field names
// ("following;passwordHash") into a Projection. Unknown names are ignored.
func ParseFieldSpec(spec string) Projection {
	var p Projection
	for _, name := range strings.Split(spec, ";") {
		name = strings.ToLower(strings.TrimSpace(name))
		name = strings.TrimPrefix(name, "+")
		if name == "" {
			continue
		}
		p |= projectionFields[name]
	}
	return p
}

// NewID returns a fresh canonical account id.
func NewID() string {
	return uuid.NewString()
}

// ParseID validates raw and returns its canonical form.
func ParseID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidID
	}
	return id.String(), nil
}
