package admin

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
	"github.com/claimtrack/claimtrack/pkg/nullable"
)

const (
	maxNameLen    = 255
	maxAddressLen = 500
	maxMobileLen  = 20
)

// Hospital maps to the hospitals table.
type Hospital struct {
	ID        int64                  `db:"id" json:"id"`
	Name      string                 `db:"name" json:"name"`
	Address   *string                `db:"address" json:"address"`
	Email     string                 `db:"email" json:"email"`
	Mobile    *string                `db:"mobile" json:"mobile"`
	Reference map[string]interface{} `db:"reference" json:"reference"`
	CreatedAt time.Time              `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time              `db:"updated_at" json:"updatedAt"`
}

// TPA maps to the tpas table.
type TPA struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   *string   `db:"address" json:"address"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// HospitalInput is the body of hospital create and update requests. On
// update, an empty name or email keeps the stored value, while address,
// mobile and reference may be cleared with an explicit null.
type HospitalInput struct {
	Name      string                                 `json:"name"`
	Address   nullable.Value[string]                 `json:"address"`
	Email     string                                 `json:"email"`
	Mobile    nullable.Value[string]                 `json:"mobile"`
	Reference nullable.Value[map[string]interface{}] `json:"reference"`
}

type TPAInput struct {
	Name    string                 `json:"name"`
	Address nullable.Value[string] `json:"address"`
	Email   string                 `json:"email"`
}

// ListFilter narrows registry listings by name substring.
type ListFilter struct {
	Name string
}

func (f ListFilter) validate() error {
	var fe apperr.Fields
	fe.Text("name", f.Name, maxNameLen, "Name must be at most 255 characters")
	return fe.Err()
}

// normalizeEmail makes email uniqueness case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if !utf8.ValidString(email) {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}

// validateCommon checks the fields hospitals and TPAs share. requireAll is
// set on create.
func validateCommon(f *apperr.Fields, name, email string, address nullable.Value[string], requireAll bool) {
	switch {
	case requireAll && strings.TrimSpace(name) == "":
		f.Add("name", "Name is required")
	default:
		f.Text("name", name, maxNameLen, "Name must be at most 255 characters")
	}
	switch {
	case requireAll && email == "":
		f.Add("email", "Email is required")
	case email != "" && !validEmail(email):
		f.Add("email", "Please provide a valid email address")
	}
	if p := address.Ptr(); p != nil {
		f.Text("address", *p, maxAddressLen, "Address must be at most 500 characters")
	}
}

func (in *HospitalInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
}

func (in *HospitalInput) validate(creating bool) error {
	var f apperr.Fields
	validateCommon(&f, in.Name, in.Email, in.Address, creating)
	if p := in.Mobile.Ptr(); p != nil {
		f.Text("mobile", *p, maxMobileLen, "Mobile must be at most 20 characters")
	}
	return f.Err()
}

func (in *TPAInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
}

func (in *TPAInput) validate(creating bool) error {
	var f apperr.Fields
	validateCommon(&f, in.Name, in.Email, in.Address, creating)
	return f.Err()
}
