package admin

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrInUse is returned when a delete is blocked by referencing claims.
	ErrInUse = errors.New("record is referenced by claims")
)

// ConflictError names the unique field a write collided on: "name" or "email".
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string { return e.Field + " already exists" }

// HospitalRepository defines the persistence interface for hospitals.
type HospitalRepository interface {
	Create(ctx context.Context, h *Hospital) error
	GetByID(ctx context.Context, id int64) (*Hospital, error)
	Update(ctx context.Context, h *Hospital) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Hospital, int, error)
	// FindConflict reports which of name or email another record already
	// uses. Empty arguments are not checked.
	FindConflict(ctx context.Context, name, email string, excludeID int64) (string, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

// TPARepository defines the persistence interface for TPAs.
type TPARepository interface {
	Create(ctx context.Context, t *TPA) error
	GetByID(ctx context.Context, id int64) (*TPA, error)
	Update(ctx context.Context, t *TPA) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*TPA, int, error)
	FindConflict(ctx context.Context, name, email string, excludeID int64) (string, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

// ClaimCounter reports how many claims reference a hospital or TPA.
type ClaimCounter interface {
	CountByHospital(ctx context.Context, hospitalID int64) (int, error)
	CountByTPA(ctx context.Context, tpaID int64) (int, error)
}
