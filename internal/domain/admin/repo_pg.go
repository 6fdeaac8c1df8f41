package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/claimtrack/claimtrack/internal/platform/db"
)

// mapWriteErr turns constraint failures into registry errors.
func mapWriteErr(op string, err error) error {
	if name, ok := db.UniqueViolation(err); ok {
		if strings.Contains(name, "email") {
			return &ConflictError{Field: "email"}
		}
		return &ConflictError{Field: "name"}
	}
	if _, ok := db.ForeignKeyViolation(err); ok {
		return ErrInUse
	}
	return db.Classify(fmt.Errorf("%s: %w", op, err))
}

// findConflict runs the shared name/email lookup against table.
func findConflict(ctx context.Context, h *db.Handle, table, name, email string, excludeID int64) (string, error) {
	if name == "" && email == "" {
		return "", nil
	}
	ctx, cancel := h.Bound(ctx)
	defer cancel()

	var nameHit, emailHit bool
	err := h.Pool.QueryRow(ctx, `
		SELECT
			COALESCE(bool_or($1 <> '' AND name = $1), false),
			COALESCE(bool_or($2 <> '' AND email = $2), false)
		FROM `+table+`
		WHERE id <> $3 AND (($1 <> '' AND name = $1) OR ($2 <> '' AND email = $2))`,
		name, email, excludeID,
	).Scan(&nameHit, &emailHit)
	if err != nil {
		return "", db.Classify(fmt.Errorf("check %s conflicts: %w", table, err))
	}
	switch {
	case nameHit:
		return "name", nil
	case emailHit:
		return "email", nil
	}
	return "", nil
}

func exists(ctx context.Context, h *db.Handle, table string, id int64) (bool, error) {
	ctx, cancel := h.Bound(ctx)
	defer cancel()
	var ok bool
	if err := h.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, db.Classify(fmt.Errorf("check %s exists: %w", table, err))
	}
	return ok, nil
}

func deleteByID(ctx context.Context, h *db.Handle, table string, id int64) error {
	ctx, cancel := h.Bound(ctx)
	defer cancel()
	tag, err := h.Pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return mapWriteErr("delete from "+table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nameFilter(f ListFilter) (string, []interface{}) {
	if f.Name == "" {
		return "", nil
	}
	return ` WHERE name ILIKE $1`, []interface{}{db.ContainsPattern(f.Name)}
}

// -- Hospital Repository --

const hospitalColumns = `id, name, address, email, mobile, reference, created_at, updated_at`

type hospitalRepoPG struct {
	db *db.Handle
}

func NewHospitalRepo(h *db.Handle) HospitalRepository {
	return &hospitalRepoPG{db: h}
}

func (r *hospitalRepoPG) Create(ctx context.Context, h *Hospital) error {
	ref, err := encodeReference(h.Reference)
	if err != nil {
		return err
	}
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()

	err = r.db.Pool.QueryRow(ctx, `
		INSERT INTO hospitals (name, address, email, mobile, reference)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		h.Name, h.Address, h.Email, h.Mobile, ref,
	).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return mapWriteErr("insert hospital", err)
	}
	return nil
}

func (r *hospitalRepoPG) GetByID(ctx context.Context, id int64) (*Hospital, error) {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()
	return scanHospital(r.db.Pool.QueryRow(ctx, `SELECT `+hospitalColumns+` FROM hospitals WHERE id = $1`, id))
}

func (r *hospitalRepoPG) Update(ctx context.Context, h *Hospital) error {
	ref, err := encodeReference(h.Reference)
	if err != nil {
		return err
	}
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()

	err = r.db.Pool.QueryRow(ctx, `
		UPDATE hospitals SET
			name = $2, address = $3, email = $4, mobile = $5, reference = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		h.ID, h.Name, h.Address, h.Email, h.Mobile, ref,
	).Scan(&h.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return mapWriteErr("update hospital", err)
	}
	return nil
}

func (r *hospitalRepoPG) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.db, "hospitals", id)
}

func (r *hospitalRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Hospital, int, error) {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()

	where, args := nameFilter(f)
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM hospitals`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(fmt.Errorf("count hospitals: %w", err))
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.db.Pool.Query(ctx,
		fmt.Sprintf(`SELECT `+hospitalColumns+` FROM hospitals%s ORDER BY id LIMIT $%d OFFSET $%d`, where, n+1, n+2),
		args...)
	if err != nil {
		return nil, 0, db.Classify(fmt.Errorf("list hospitals: %w", err))
	}
	defer rows.Close()

	hospitals := []*Hospital{}
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, 0, err
		}
		hospitals = append(hospitals, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return hospitals, total, nil
}

func (r *hospitalRepoPG) FindConflict(ctx context.Context, name, email string, excludeID int64) (string, error) {
	return findConflict(ctx, r.db, "hospitals", name, email, excludeID)
}

func (r *hospitalRepoPG) Exists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.db, "hospitals", id)
}

func encodeReference(ref map[string]interface{}) ([]byte, error) {
	if ref == nil {
		return nil, nil
	}
	b, err := json.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("encode reference: %w", err)
	}
	return b, nil
}

func scanHospital(row pgx.Row) (*Hospital, error) {
	var h Hospital
	var ref []byte
	err := row.Scan(&h.ID, &h.Name, &h.Address, &h.Email, &h.Mobile, &ref, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, db.Classify(fmt.Errorf("scan hospital: %w", err))
	}
	if len(ref) > 0 {
		if err := json.Unmarshal(ref, &h.Reference); err != nil {
			return nil, fmt.Errorf("decode hospital reference: %w", err)
		}
	}
	return &h, nil
}

// -- TPA Repository --

const tpaColumns = `id, name, address, email, created_at, updated_at`

type tpaRepoPG struct {
	db *db.Handle
}

func NewTPARepo(h *db.Handle) TPARepository {
	return &tpaRepoPG{db: h}
}

func (r *tpaRepoPG) Create(ctx context.Context, t *TPA) error {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()

	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO tpas (name, address, email)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		t.Name, t.Address, t.Email,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return mapWriteErr("insert tpa", err)
	}
	return nil
}

func (r *tpaRepoPG) GetByID(ctx context.Context, id int64) (*TPA, error) {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()
	return scanTPA(r.db.Pool.QueryRow(ctx, `SELECT `+tpaColumns+` FROM tpas WHERE id = $1`, id))
}

func (r *tpaRepoPG) Update(ctx context.Context, t *TPA) error {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()

	err := r.db.Pool.QueryRow(ctx, `
		UPDATE tpas SET name = $2, address = $3, email = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.Name, t.Address, t.Email,
	).Scan(&t.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return mapWriteErr("update tpa", err)
	}
	return nil
}

func (r *tpaRepoPG) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.db, "tpas", id)
}

func (r *tpaRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*TPA, int, error) {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()

	where, args := nameFilter(f)
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM tpas`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(fmt.Errorf("count tpas: %w", err))
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.db.Pool.Query(ctx,
		fmt.Sprintf(`SELECT `+tpaColumns+` FROM tpas%s ORDER BY id LIMIT $%d OFFSET $%d`, where, n+1, n+2),
		args...)
	if err != nil {
		return nil, 0, db.Classify(fmt.Errorf("list tpas: %w", err))
	}
	defer rows.Close()

	tpas := []*TPA{}
	for rows.Next() {
		t, err := scanTPA(rows)
		if err != nil {
			return nil, 0, err
		}
		tpas = append(tpas, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return tpas, total, nil
}

func (r *tpaRepoPG) FindConflict(ctx context.Context, name, email string, excludeID int64) (string, error) {
	return findConflict(ctx, r.db, "tpas", name, email, excludeID)
}

func (r *tpaRepoPG) Exists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.db, "tpas", id)
}

func scanTPA(row pgx.Row) (*TPA, error) {
	var t TPA
	if err := row.Scan(&t.ID, &t.Name, &t.Address, &t.Email, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, db.Classify(fmt.Errorf("scan tpa: %w", err))
	}
	return &t, nil
}
