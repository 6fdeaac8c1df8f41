package claim

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("claim not found")
	ErrClaimNumberTaken  = errors.New("claim number already exists")
	ErrPolicyNumberTaken = errors.New("policy number already exists")
	ErrHospitalMissing   = errors.New("hospital does not exist")
	ErrTPAMissing        = errors.New("tpa does not exist")
)

// Repository defines the persistence interface for claims. Unique and
// foreign key violations surface as the sentinel errors above.
type Repository interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id int64) (*View, error)
	// Update writes the mutable fields of c and appends newDocs to the stored
	// document list. c.Documents is refreshed from the store.
	Update(ctx context.Context, c *Claim, newDocs []string) error
	// SetStatus returns the updated summary and the status it replaced.
	SetStatus(ctx context.Context, id int64, status Status) (*StatusSummary, Status, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*View, int, error)
	Lookup(ctx context.Context, q LookupQuery, limit, offset int) ([]*PublicSummary, int, error)
	ClaimNumberExists(ctx context.Context, number string) (bool, error)
	PolicyNumberExists(ctx context.Context, policy string, excludeID int64) (bool, error)
	CountByHospital(ctx context.Context, hospitalID int64) (int, error)
	CountByTPA(ctx context.Context, tpaID int64) (int, error)
}
