package claim

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
	"github.com/claimtrack/claimtrack/internal/platform/auth"
	"github.com/claimtrack/claimtrack/internal/platform/blobstore"
	"github.com/claimtrack/claimtrack/pkg/pagination"
)

const (
	msgClaimNotFound     = "Claim not found."
	msgHospitalNotFound  = "Hospital not found."
	msgTPANotFound       = "TPA not found."
	msgClaimNumberTaken  = "Claim number already exists."
	msgPolicyNumberTaken = "Policy number already exists."
	msgNoClaimsFound     = "No claims found."
)

// Directory answers whether referenced hospitals and TPAs exist.
type Directory interface {
	HospitalExists(ctx context.Context, id int64) (bool, error)
	TPAExists(ctx context.Context, id int64) (bool, error)
}

type Service struct {
	repo      Repository
	dir       Directory
	docs      blobstore.DocumentStore
	lifecycle *Lifecycle
	logger    zerolog.Logger

	newClaimNumber func() string
}

func NewService(repo Repository, dir Directory, docs blobstore.DocumentStore, lifecycle *Lifecycle, logger zerolog.Logger) *Service {
	return &Service{
		repo:           repo,
		dir:            dir,
		docs:           docs,
		lifecycle:      lifecycle,
		logger:         logger,
		newClaimNumber: generateClaimNumber,
	}
}

func generateClaimNumber() string {
	return "CLM-" + uuid.NewString()[:8]
}

// repoErr maps repository sentinels onto the error taxonomy.
func repoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(msgClaimNotFound)
	case errors.Is(err, ErrClaimNumberTaken):
		return apperr.Conflict(msgClaimNumberTaken)
	case errors.Is(err, ErrPolicyNumberTaken):
		return apperr.Conflict(msgPolicyNumberTaken)
	case errors.Is(err, ErrHospitalMissing):
		return apperr.NotFound(msgHospitalNotFound)
	case errors.Is(err, ErrTPAMissing):
		return apperr.NotFound(msgTPANotFound)
	}
	return err
}

func (s *Service) checkHospital(ctx context.Context, id int64) error {
	ok, err := s.dir.HospitalExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound(msgHospitalNotFound)
	}
	return nil
}

func (s *Service) checkTPA(ctx context.Context, id int64) error {
	ok, err := s.dir.TPAExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound(msgTPANotFound)
	}
	return nil
}

func (s *Service) checkPolicyNumber(ctx context.Context, policy string, excludeID int64) error {
	taken, err := s.repo.PolicyNumberExists(ctx, policy, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflict(msgPolicyNumberTaken)
	}
	return nil
}

// storeDocuments persists uploads in order. The returned refs must be
// cleaned up by the caller if the claim write fails.
func (s *Service) storeDocuments(ctx context.Context, uploads []blobstore.Upload) ([]string, error) {
	if len(uploads) == 0 {
		return []string{}, nil
	}
	refs, err := blobstore.SaveAll(ctx, s.docs, uploads)
	if err != nil {
		return nil, blobstore.StoreError(err)
	}
	return refs, nil
}

// Create registers a claim on behalf of creatorID.
func (s *Service) Create(ctx context.Context, in Input, uploads []blobstore.Upload, creatorID int64) (*Claim, error) {
	in.normalize()
	parsed, err := in.parse(true)
	if err != nil {
		return nil, err
	}
	if err := checkDates(*parsed.admission, parsed.discharge.Ptr()); err != nil {
		return nil, err
	}

	if err := s.checkHospital(ctx, int64(in.HospitalID)); err != nil {
		return nil, err
	}
	if err := s.checkTPA(ctx, int64(in.TPAID)); err != nil {
		return nil, err
	}

	number := in.ClaimNumber
	if number == "" {
		number = s.newClaimNumber()
	}
	taken, err := s.repo.ClaimNumberExists(ctx, number)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict(msgClaimNumberTaken)
	}
	if in.PolicyNumber != "" {
		if err := s.checkPolicyNumber(ctx, in.PolicyNumber, 0); err != nil {
			return nil, err
		}
	}

	refs, err := s.storeDocuments(ctx, uploads)
	if err != nil {
		return nil, err
	}

	c := &Claim{
		ClaimNumber:       number,
		PolicyNumber:      optional(in.PolicyNumber),
		PatientName:       in.PatientName,
		AdmissionDate:     *parsed.admission,
		DischargeDate:     parsed.discharge.Ptr(),
		HospitalID:        int64(in.HospitalID),
		TPAID:             int64(in.TPAID),
		CreatorID:         creatorID,
		Status:            s.lifecycle.Initial(),
		Documents:         refs,
		SettlementDetails: parsed.settlement.V,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		blobstore.Cleanup(context.WithoutCancel(ctx), s.docs, refs)
		return nil, repoErr(err)
	}

	s.logger.Info().
		Int64("claim_id", c.ID).
		Str("claim_number", c.ClaimNumber).
		Int64("creator_id", creatorID).
		Int("documents", len(refs)).
		Msg("claim created")
	return c, nil
}

// Update applies a partial update and appends any uploaded documents.
func (s *Service) Update(ctx context.Context, id int64, in Input, uploads []blobstore.Upload, callerID int64) (*Claim, error) {
	in.normalize()
	parsed, err := in.parse(false)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, repoErr(err)
	}
	c := current.Claim

	if in.HospitalID > 0 && int64(in.HospitalID) != c.HospitalID {
		if err := s.checkHospital(ctx, int64(in.HospitalID)); err != nil {
			return nil, err
		}
		c.HospitalID = int64(in.HospitalID)
	}
	if in.TPAID > 0 && int64(in.TPAID) != c.TPAID {
		if err := s.checkTPA(ctx, int64(in.TPAID)); err != nil {
			return nil, err
		}
		c.TPAID = int64(in.TPAID)
	}
	if in.PolicyNumber != "" && (c.PolicyNumber == nil || *c.PolicyNumber != in.PolicyNumber) {
		if err := s.checkPolicyNumber(ctx, in.PolicyNumber, id); err != nil {
			return nil, err
		}
		c.PolicyNumber = optional(in.PolicyNumber)
	}

	if in.PatientName != "" {
		c.PatientName = in.PatientName
	}
	if parsed.admission != nil {
		c.AdmissionDate = *parsed.admission
	}
	c.DischargeDate = parsed.discharge.Apply(c.DischargeDate)
	if parsed.settlement.Set {
		c.SettlementDetails = parsed.settlement.V
	}
	if err := checkDates(c.AdmissionDate, c.DischargeDate); err != nil {
		return nil, err
	}

	refs, err := s.storeDocuments(ctx, uploads)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &c, refs); err != nil {
		blobstore.Cleanup(context.WithoutCancel(ctx), s.docs, refs)
		return nil, repoErr(err)
	}

	s.logger.Info().
		Int64("claim_id", c.ID).
		Int64("updated_by", callerID).
		Int("documents_added", len(refs)).
		Msg("claim updated")
	return &c, nil
}

// SetStatus moves a claim to any status in the enumeration. The status is
// validated before the role, and both before the store is touched.
func (s *Service) SetStatus(ctx context.Context, id int64, rawStatus string, role auth.Role) (*StatusSummary, error) {
	next, err := s.lifecycle.Transition(rawStatus, role)
	if err != nil {
		return nil, err
	}

	summary, prev, err := s.repo.SetStatus(ctx, id, next)
	if err != nil {
		return nil, repoErr(err)
	}

	s.logger.Info().
		Int64("claim_id", id).
		Str("claim_number", summary.ClaimNumber).
		Str("from", string(prev)).
		Str("to", string(next)).
		Str("role", string(role)).
		Msg("claim status changed")
	return summary, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*View, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, repoErr(err)
	}
	return v, nil
}

// List filters by patient name substring and exact status. rawStatus may be
// empty.
func (s *Service) List(ctx context.Context, patientName, rawStatus string, p pagination.Params) ([]*View, int, error) {
	var fe apperr.Fields
	if !fe.Text("patientName", patientName, maxPatientNameLen, "Patient name must be less than 255 characters") {
		return nil, 0, fe.Err()
	}
	f := ListFilter{PatientName: patientName}
	if rawStatus != "" {
		st, err := ParseStatus(rawStatus)
		if err != nil {
			return nil, 0, err
		}
		f.Status = st
	}
	return s.repo.List(ctx, f, p.Limit, p.Offset())
}

// PublicStatus serves the unauthenticated lookup. An unknown hospital and
// an empty result are both reported as not found.
func (s *Service) PublicStatus(ctx context.Context, q LookupQuery, p pagination.Params) ([]*PublicSummary, int, error) {
	if err := q.validate(); err != nil {
		return nil, 0, err
	}
	if err := s.checkHospital(ctx, q.HospitalID); err != nil {
		return nil, 0, err
	}

	items, total, err := s.repo.Lookup(ctx, q, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, apperr.NotFound(msgNoClaimsFound)
	}
	return items, total, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
