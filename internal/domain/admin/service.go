package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
	"github.com/claimtrack/claimtrack/pkg/pagination"
)

const (
	labelHospital = "Hospital"
	labelTPA      = "TPA"
)

type Service struct {
	hospitals HospitalRepository
	tpas      TPARepository
	claims    ClaimCounter
	logger    zerolog.Logger
}

func NewService(hospitals HospitalRepository, tpas TPARepository, claims ClaimCounter, logger zerolog.Logger) *Service {
	return &Service{hospitals: hospitals, tpas: tpas, claims: claims, logger: logger}
}

// registryErr maps repository sentinels onto the error taxonomy using the
// entity label in messages.
func registryErr(label string, err error) error {
	var ce *ConflictError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(label + " not found.")
	case errors.As(err, &ce):
		return apperr.Conflict(fmt.Sprintf("%s %s already exists.", label, ce.Field))
	}
	return err
}

func conflictErr(label, field string) error {
	if field == "" {
		return nil
	}
	return apperr.Conflict(fmt.Sprintf("%s %s already exists.", label, field))
}

func inUseErr(label string, n int) error {
	return apperr.Validation(fmt.Sprintf("Cannot delete %s with %d associated claim(s).", lowerLabel(label), n))
}

func lowerLabel(label string) string {
	if label == labelHospital {
		return "hospital"
	}
	return label
}

// changed returns v when it differs from current, else "".
func changed(v, current string) string {
	if v == current {
		return ""
	}
	return v
}

// -- Hospital --

func (s *Service) CreateHospital(ctx context.Context, in HospitalInput) (*Hospital, error) {
	in.normalize()
	if err := in.validate(true); err != nil {
		return nil, err
	}

	field, err := s.hospitals.FindConflict(ctx, in.Name, in.Email, 0)
	if err != nil {
		return nil, err
	}
	if err := conflictErr(labelHospital, field); err != nil {
		return nil, err
	}

	h := &Hospital{
		Name:      in.Name,
		Address:   in.Address.Ptr(),
		Email:     in.Email,
		Mobile:    in.Mobile.Ptr(),
		Reference: in.Reference.V,
	}
	if err := s.hospitals.Create(ctx, h); err != nil {
		return nil, registryErr(labelHospital, err)
	}
	return h, nil
}

func (s *Service) GetHospital(ctx context.Context, id int64) (*Hospital, error) {
	h, err := s.hospitals.GetByID(ctx, id)
	if err != nil {
		return nil, registryErr(labelHospital, err)
	}
	return h, nil
}

// UpdateHospital applies a partial update. Name and email collisions are
// checked only against other hospitals.
func (s *Service) UpdateHospital(ctx context.Context, id int64, in HospitalInput) (*Hospital, error) {
	in.normalize()
	if err := in.validate(false); err != nil {
		return nil, err
	}

	h, err := s.hospitals.GetByID(ctx, id)
	if err != nil {
		return nil, registryErr(labelHospital, err)
	}

	field, err := s.hospitals.FindConflict(ctx, changed(in.Name, h.Name), changed(in.Email, h.Email), id)
	if err != nil {
		return nil, err
	}
	if err := conflictErr(labelHospital, field); err != nil {
		return nil, err
	}

	if in.Name != "" {
		h.Name = in.Name
	}
	if in.Email != "" {
		h.Email = in.Email
	}
	h.Address = in.Address.Apply(h.Address)
	h.Mobile = in.Mobile.Apply(h.Mobile)
	if in.Reference.Set {
		h.Reference = in.Reference.V
	}

	if err := s.hospitals.Update(ctx, h); err != nil {
		return nil, registryErr(labelHospital, err)
	}
	return h, nil
}

// DeleteHospital refuses while any claim references the hospital.
func (s *Service) DeleteHospital(ctx context.Context, id int64) error {
	if _, err := s.hospitals.GetByID(ctx, id); err != nil {
		return registryErr(labelHospital, err)
	}
	n, err := s.claims.CountByHospital(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return inUseErr(labelHospital, n)
	}

	if err := s.hospitals.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrInUse) {
			// A claim was created after the count.
			n, cerr := s.claims.CountByHospital(ctx, id)
			if cerr != nil || n < 1 {
				n = 1
			}
			return inUseErr(labelHospital, n)
		}
		return registryErr(labelHospital, err)
	}

	s.logger.Info().Int64("hospital_id", id).Msg("hospital deleted")
	return nil
}

func (s *Service) ListHospitals(ctx context.Context, f ListFilter, p pagination.Params) ([]*Hospital, int, error) {
	if err := f.validate(); err != nil {
		return nil, 0, err
	}
	return s.hospitals.List(ctx, f, p.Limit, p.Offset())
}

// HospitalExists lets the claim registry check references.
func (s *Service) HospitalExists(ctx context.Context, id int64) (bool, error) {
	return s.hospitals.Exists(ctx, id)
}

// -- TPA --

func (s *Service) CreateTPA(ctx context.Context, in TPAInput) (*TPA, error) {
	in.normalize()
	if err := in.validate(true); err != nil {
		return nil, err
	}

	field, err := s.tpas.FindConflict(ctx, in.Name, in.Email, 0)
	if err != nil {
		return nil, err
	}
	if err := conflictErr(labelTPA, field); err != nil {
		return nil, err
	}

	t := &TPA{Name: in.Name, Address: in.Address.Ptr(), Email: in.Email}
	if err := s.tpas.Create(ctx, t); err != nil {
		return nil, registryErr(labelTPA, err)
	}
	return t, nil
}

func (s *Service) GetTPA(ctx context.Context, id int64) (*TPA, error) {
	t, err := s.tpas.GetByID(ctx, id)
	if err != nil {
		return nil, registryErr(labelTPA, err)
	}
	return t, nil
}

func (s *Service) UpdateTPA(ctx context.Context, id int64, in TPAInput) (*TPA, error) {
	in.normalize()
	if err := in.validate(false); err != nil {
		return nil, err
	}

	t, err := s.tpas.GetByID(ctx, id)
	if err != nil {
		return nil, registryErr(labelTPA, err)
	}

	field, err := s.tpas.FindConflict(ctx, changed(in.Name, t.Name), changed(in.Email, t.Email), id)
	if err != nil {
		return nil, err
	}
	if err := conflictErr(labelTPA, field); err != nil {
		return nil, err
	}

	if in.Name != "" {
		t.Name = in.Name
	}
	if in.Email != "" {
		t.Email = in.Email
	}
	t.Address = in.Address.Apply(t.Address)

	if err := s.tpas.Update(ctx, t); err != nil {
		return nil, registryErr(labelTPA, err)
	}
	return t, nil
}

func (s *Service) DeleteTPA(ctx context.Context, id int64) error {
	if _, err := s.tpas.GetByID(ctx, id); err != nil {
		return registryErr(labelTPA, err)
	}
	n, err := s.claims.CountByTPA(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return inUseErr(labelTPA, n)
	}

	if err := s.tpas.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrInUse) {
			n, cerr := s.claims.CountByTPA(ctx, id)
			if cerr != nil || n < 1 {
				n = 1
			}
			return inUseErr(labelTPA, n)
		}
		return registryErr(labelTPA, err)
	}

	s.logger.Info().Int64("tpa_id", id).Msg("tpa deleted")
	return nil
}

func (s *Service) ListTPAs(ctx context.Context, f ListFilter, p pagination.Params) ([]*TPA, int, error) {
	if err := f.validate(); err != nil {
		return nil, 0, err
	}
	return s.tpas.List(ctx, f, p.Limit, p.Offset())
}

func (s *Service) TPAExists(ctx context.Context, id int64) (bool, error) {
	return s.tpas.Exists(ctx, id)
}
