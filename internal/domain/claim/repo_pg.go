package claim

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/claimtrack/claimtrack/internal/platform/db"
)

const (
	constraintClaimNumber  = "claims_claim_number_key"
	constraintPolicyNumber = "claims_policy_number_key"
	constraintHospitalFK   = "claims_hospital_id_fkey"
	constraintTPAFK        = "claims_tpa_id_fkey"
)

const viewSelect = `
	SELECT c.id, c.claim_number, c.policy_number, c.patient_name, c.admission_date,
		c.discharge_date, c.hospital_id, c.tpa_id, c.creator_id, c.status,
		c.documents, c.settlement_details, c.created_at, c.updated_at,
		h.name, t.name
	FROM claims c
	JOIN hospitals h ON h.id = c.hospital_id
	JOIN tpas t ON t.id = c.tpa_id`

type repoPG struct {
	db *db.Handle
}

func NewRepo(h *db.Handle) Repository {
	return &repoPG{db: h}
}

// mapWriteErr turns constraint failures into the repository sentinels.
func mapWriteErr(op string, err error) error {
	if name, ok := db.UniqueViolation(err); ok {
		switch name {
		case constraintClaimNumber:
			return ErrClaimNumberTaken
		case constraintPolicyNumber:
			return ErrPolicyNumberTaken
		}
	}
	if name, ok := db.ForeignKeyViolation(err); ok {
		switch name {
		case constraintHospitalFK:
			return ErrHospitalMissing
		case constraintTPAFK:
			return ErrTPAMissing
		}
	}
	return db.Classify(fmt.Errorf("%s: %w", op, err))
}

func (r *repoPG) Create(ctx context.Context, c *Claim) error {
	docs, settlement, err := encodeJSON(c.Documents, c.SettlementDetails)
	if err != nil {
		return err
	}
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()

	err = r.db.Pool.QueryRow(ctx, `
		INSERT INTO claims (
			claim_number, policy_number, patient_name, admission_date, discharge_date,
			hospital_id, tpa_id, creator_id, status, documents, settlement_details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`,
		c.ClaimNumber, c.PolicyNumber, c.PatientName, c.AdmissionDate, c.DischargeDate,
		c.HospitalID, c.TPAID, c.CreatorID, string(c.Status), docs, settlement,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return mapWriteErr("insert claim", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*View, error) {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()
	return scanView(r.db.Pool.QueryRow(ctx, viewSelect+` WHERE c.id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, c *Claim, newDocs []string) error {
	appended, settlement, err := encodeJSON(newDocs, c.SettlementDetails)
	if err != nil {
		return err
	}
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()

	// documents is append-only; concurrent updates each add their own refs.
	var docs []byte
	err = r.db.Pool.QueryRow(ctx, `
		UPDATE claims SET
			policy_number = $2, patient_name = $3, admission_date = $4,
			discharge_date = $5, hospital_id = $6, tpa_id = $7,
			settlement_details = $8, documents = documents || $9::jsonb,
			updated_at = NOW()
		WHERE id = $1
		RETURNING documents, status, updated_at`,
		c.ID, c.PolicyNumber, c.PatientName, c.AdmissionDate,
		c.DischargeDate, c.HospitalID, c.TPAID,
		settlement, appended,
	).Scan(&docs, &c.Status, &c.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return mapWriteErr("update claim", err)
	}
	return decodeDocuments(docs, &c.Documents)
}

func (r *repoPG) SetStatus(ctx context.Context, id int64, status Status) (*StatusSummary, Status, error) {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()

	var s StatusSummary
	var prev Status
	err := r.db.Pool.QueryRow(ctx, `
		UPDATE claims c SET status = $2, updated_at = NOW()
		FROM (SELECT id, status FROM claims WHERE id = $1 FOR UPDATE) p
		WHERE c.id = p.id
		RETURNING c.id, c.claim_number, c.patient_name, c.status, c.updated_at, p.status`,
		id, string(status),
	).Scan(&s.ID, &s.ClaimNumber, &s.PatientName, &s.Status, &s.UpdatedAt, &prev)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", db.Classify(fmt.Errorf("set claim status: %w", err))
	}
	return &s, prev, nil
}

// where accumulates AND-ed predicates with positional arguments.
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *where) page(limit, offset int) string {
	n := len(w.args)
	w.args = append(w.args, limit, offset)
	return fmt.Sprintf(" ORDER BY c.id LIMIT $%d OFFSET $%d", n+1, n+2)
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*View, int, error) {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()

	var w where
	if f.PatientName != "" {
		w.add("c.patient_name ILIKE $%d", db.ContainsPattern(f.PatientName))
	}
	if f.Status != "" {
		w.add("c.status = $%d", string(f.Status))
	}

	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM claims c`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(fmt.Errorf("count claims: %w", err))
	}

	query := viewSelect + w.String()
	query += w.page(limit, offset)
	rows, err := r.db.Pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, db.Classify(fmt.Errorf("list claims: %w", err))
	}
	defer rows.Close()

	claims := []*View{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, 0, err
		}
		claims = append(claims, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return claims, total, nil
}

func (r *repoPG) Lookup(ctx context.Context, q LookupQuery, limit, offset int) ([]*PublicSummary, int, error) {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()

	args := []interface{}{q.HospitalID}
	var ors []string
	ident := func(clause string, arg interface{}) {
		args = append(args, arg)
		ors = append(ors, fmt.Sprintf(clause, len(args)))
	}
	if q.ClaimNumber != "" {
		ident("c.claim_number = $%d", q.ClaimNumber)
	}
	if q.PolicyNumber != "" {
		ident("c.policy_number = $%d", q.PolicyNumber)
	}
	if q.PatientName != "" {
		ident("c.patient_name ILIKE $%d", db.ContainsPattern(q.PatientName))
	}
	cond := " WHERE c.hospital_id = $1"
	if len(ors) > 0 {
		cond += " AND (" + strings.Join(ors, " OR ") + ")"
	}

	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM claims c`+cond, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(fmt.Errorf("count claim lookup: %w", err))
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.db.Pool.Query(ctx, fmt.Sprintf(`
		SELECT c.claim_number, c.patient_name, c.status, h.name, t.name, c.updated_at
		FROM claims c
		JOIN hospitals h ON h.id = c.hospital_id
		JOIN tpas t ON t.id = c.tpa_id`+cond+` ORDER BY c.id LIMIT $%d OFFSET $%d`, n+1, n+2),
		args...)
	if err != nil {
		return nil, 0, db.Classify(fmt.Errorf("claim lookup: %w", err))
	}
	defer rows.Close()

	out := []*PublicSummary{}
	for rows.Next() {
		var s PublicSummary
		if err := rows.Scan(&s.ClaimNumber, &s.PatientName, &s.Status, &s.HospitalName, &s.TPAName, &s.LastUpdated); err != nil {
			return nil, 0, db.Classify(fmt.Errorf("scan claim summary: %w", err))
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return out, total, nil
}

func (r *repoPG) ClaimNumberExists(ctx context.Context, number string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM claims WHERE claim_number = $1)`, number)
}

func (r *repoPG) PolicyNumberExists(ctx context.Context, policy string, excludeID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM claims WHERE policy_number = $1 AND id <> $2)`, policy, excludeID)
}

func (r *repoPG) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, db.Classify(fmt.Errorf("check claims: %w", err))
	}
	return ok, nil
}

func (r *repoPG) CountByHospital(ctx context.Context, hospitalID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM claims WHERE hospital_id = $1`, hospitalID)
}

func (r *repoPG) CountByTPA(ctx context.Context, tpaID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM claims WHERE tpa_id = $1`, tpaID)
}

func (r *repoPG) count(ctx context.Context, query string, id int64) (int, error) {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()
	var n int
	if err := r.db.Pool.QueryRow(ctx, query, id).Scan(&n); err != nil {
		return 0, db.Classify(fmt.Errorf("count claims: %w", err))
	}
	return n, nil
}

func encodeJSON(docs []string, settlement map[string]interface{}) ([]byte, []byte, error) {
	if docs == nil {
		docs = []string{}
	}
	d, err := json.Marshal(docs)
	if err != nil {
		return nil, nil, fmt.Errorf("encode documents: %w", err)
	}
	if settlement == nil {
		return d, nil, nil
	}
	s, err := json.Marshal(settlement)
	if err != nil {
		return nil, nil, fmt.Errorf("encode settlement details: %w", err)
	}
	return d, s, nil
}

func decodeDocuments(raw []byte, dst *[]string) error {
	*dst = []string{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode claim documents: %w", err)
	}
	return nil
}

func scanView(row pgx.Row) (*View, error) {
	var v View
	var docs, settlement []byte
	err := row.Scan(
		&v.ID, &v.ClaimNumber, &v.PolicyNumber, &v.PatientName, &v.AdmissionDate,
		&v.DischargeDate, &v.HospitalID, &v.TPAID, &v.CreatorID, &v.Status,
		&docs, &settlement, &v.CreatedAt, &v.UpdatedAt,
		&v.HospitalName, &v.TPAName,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, db.Classify(fmt.Errorf("scan claim: %w", err))
	}
	if err := decodeDocuments(docs, &v.Documents); err != nil {
		return nil, err
	}
	if len(settlement) > 0 {
		if err := json.Unmarshal(settlement, &v.SettlementDetails); err != nil {
			return nil, fmt.Errorf("decode settlement details: %w", err)
		}
	}
	return &v, nil
}
