package claim

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
	"github.com/claimtrack/claimtrack/internal/platform/auth"
	"github.com/claimtrack/claimtrack/internal/platform/blobstore"
	"github.com/claimtrack/claimtrack/pkg/nullable"
	"github.com/claimtrack/claimtrack/pkg/pagination"
)

const creator int64 = 7

func baseInput() Input {
	return Input{
		PatientName:   "Asha Rao",
		AdmissionDate: "2025-03-01",
		HospitalID:    1,
		TPAID:         1,
	}
}

func upload(name, contentType string) blobstore.Upload {
	body := "%PDF-1.4 " + name
	return blobstore.Upload{FileName: name, ContentType: contentType, Size: int64(len(body)), Content: strings.NewReader(body)}
}

func expectKind(t *testing.T, err error, kind apperr.Kind, msg string) {
	t.Helper()
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected %s error %q, got %v", kind, msg, err)
	}
	if appErr.Kind != kind || (msg != "" && appErr.Message != msg) {
		t.Errorf("got %s %q, want %s %q", appErr.Kind, appErr.Message, kind, msg)
	}
}

func TestCreate_GeneratesNumberAndInitialStatus(t *testing.T) {
	f := newFixture(StatusAdmitted)
	c, err := f.svc.Create(context.Background(), baseInput(), nil, creator)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !strings.HasPrefix(c.ClaimNumber, "CLM-") || len(c.ClaimNumber) != len("CLM-")+8 {
		t.Errorf("unexpected claim number %q", c.ClaimNumber)
	}
	if c.Status != StatusAdmitted {
		t.Errorf("expected Admitted, got %s", c.Status)
	}
	if c.CreatorID != creator {
		t.Errorf("expected creator %d, got %d", creator, c.CreatorID)
	}
	if c.Documents == nil || len(c.Documents) != 0 {
		t.Errorf("expected empty document list, got %v", c.Documents)
	}
}

func TestCreate_InitialStatusInReview(t *testing.T) {
	f := newFixture(StatusInReview)
	c, err := f.svc.Create(context.Background(), baseInput(), nil, creator)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if c.Status != StatusInReview {
		t.Errorf("expected In Review, got %s", c.Status)
	}
}

func TestCreate_MissingFields(t *testing.T) {
	f := newFixture(StatusAdmitted)
	_, err := f.svc.Create(context.Background(), Input{}, nil, creator)

	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	got := map[string]bool{}
	for _, fe := range appErr.Fields {
		got[fe.Field] = true
	}
	for _, want := range []string{"patientName", "admissionDate", "hospitalId", "tpaId"} {
		if !got[want] {
			t.Errorf("expected %s to be reported missing, got %+v", want, appErr.Fields)
		}
	}
}

func TestCreate_UnknownReferences(t *testing.T) {
	f := newFixture(StatusAdmitted)
	ctx := context.Background()

	in := baseInput()
	in.HospitalID = 99
	_, err := f.svc.Create(ctx, in, nil, creator)
	expectKind(t, err, apperr.KindNotFound, "Hospital not found.")

	in = baseInput()
	in.TPAID = 99
	_, err = f.svc.Create(ctx, in, nil, creator)
	expectKind(t, err, apperr.KindNotFound, "TPA not found.")
}

func TestCreate_DuplicateClaimNumber(t *testing.T) {
	f := newFixture(StatusAdmitted)
	ctx := context.Background()

	in := baseInput()
	in.ClaimNumber = "CLM-2025-0001"
	if _, err := f.svc.Create(ctx, in, nil, creator); err != nil {
		t.Fatalf("first Create() error: %v", err)
	}

	in.PatientName = "Someone Else"
	_, err := f.svc.Create(ctx, in, nil, creator)
	expectKind(t, err, apperr.KindConflict, "Claim number already exists.")
	if f.repo.nextID != 1 {
		t.Errorf("expected no second claim stored, got %d", f.repo.nextID)
	}
}

func TestCreate_GeneratedNumberCollision(t *testing.T) {
	f := newFixture(StatusAdmitted)
	f.svc.newClaimNumber = func() string { return "CLM-deadbeef" }
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, baseInput(), nil, creator); err != nil {
		t.Fatalf("first Create() error: %v", err)
	}
	_, err := f.svc.Create(ctx, baseInput(), nil, creator)
	expectKind(t, err, apperr.KindConflict, "Claim number already exists.")
}

func TestCreate_DuplicatePolicyNumber(t *testing.T) {
	f := newFixture(StatusAdmitted)
	ctx := context.Background()

	in := baseInput()
	in.PolicyNumber = "POL-1"
	if _, err := f.svc.Create(ctx, in, nil, creator); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Create(ctx, in, nil, creator)
	expectKind(t, err, apperr.KindConflict, "Policy number already exists.")
}

func TestCreate_StoreViolationIsConflict(t *testing.T) {
	f := newFixture(StatusAdmitted)
	f.repo.createErr = ErrPolicyNumberTaken

	in := baseInput()
	in.PolicyNumber = "POL-RACE"
	_, err := f.svc.Create(context.Background(), in, []blobstore.Upload{upload("a.pdf", "application/pdf")}, creator)
	expectKind(t, err, apperr.KindConflict, "Policy number already exists.")
	if f.docs.Len() != 0 {
		t.Errorf("expected stored documents to be cleaned up, %d remain", f.docs.Len())
	}
}

func TestCreate_DischargeBeforeAdmission(t *testing.T) {
	f := newFixture(StatusAdmitted)
	in := baseInput()
	in.DischargeDate = nullable.Of("2025-02-01")
	_, err := f.svc.Create(context.Background(), in, nil, creator)
	expectKind(t, err, apperr.KindValidation, "")
}

func TestCreate_StoresDocumentsInOrder(t *testing.T) {
	f := newFixture(StatusAdmitted)
	uploads := []blobstore.Upload{upload("a.pdf", "application/pdf"), upload("b.png", "image/png")}
	c, err := f.svc.Create(context.Background(), baseInput(), uploads, creator)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if len(c.Documents) != 2 || !strings.HasSuffix(c.Documents[0], "a.pdf") || !strings.HasSuffix(c.Documents[1], "b.png") {
		t.Errorf("unexpected documents %v", c.Documents)
	}
}

func TestUpdate_AppendsDocuments(t *testing.T) {
	f := newFixture(StatusAdmitted)
	ctx := context.Background()
	c, _ := f.svc.Create(ctx, baseInput(), []blobstore.Upload{upload("a.pdf", "application/pdf"), upload("b.png", "image/png")}, creator)

	updated, err := f.svc.Update(ctx, c.ID, Input{}, []blobstore.Upload{upload("c.jpg", "image/jpeg")}, creator)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	want := []string{"a.pdf", "b.png", "c.jpg"}
	if len(updated.Documents) != len(want) {
		t.Fatalf("expected %d documents, got %v", len(want), updated.Documents)
	}
	for i, name := range want {
		if !strings.HasSuffix(updated.Documents[i], name) {
			t.Errorf("document %d = %q, want suffix %q", i, updated.Documents[i], name)
		}
	}
}

func TestUpdate_TriStateFields(t *testing.T) {
	f := newFixture(StatusAdmitted)
	ctx := context.Background()

	in := baseInput()
	in.DischargeDate = nullable.Of("2025-03-05")
	in.SettlementDetails = nullable.Of(json.RawMessage(`{"amount":1200}`))
	in.PolicyNumber = "POL-9"
	c, err := f.svc.Create(ctx, in, nil, creator)
	if err != nil {
		t.Fatal(err)
	}

	// Absent fields keep their values.
	updated, err := f.svc.Update(ctx, c.ID, Input{PatientName: "Asha R."}, nil, creator)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.DischargeDate == nil || updated.SettlementDetails["amount"] != float64(1200) {
		t.Errorf("expected discharge date and settlement kept, got %+v", updated)
	}
	if updated.PolicyNumber == nil || *updated.PolicyNumber != "POL-9" || updated.PatientName != "Asha R." {
		t.Errorf("unexpected fields after partial update: %+v", updated)
	}

	// Explicit null clears them.
	var patch Input
	if err := json.Unmarshal([]byte(`{"dischargeDate":null,"settlementDetails":null}`), &patch); err != nil {
		t.Fatal(err)
	}
	cleared, err := f.svc.Update(ctx, c.ID, patch, nil, creator)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if cleared.DischargeDate != nil || cleared.SettlementDetails != nil {
		t.Errorf("expected fields cleared, got discharge=%v settlement=%v", cleared.DischargeDate, cleared.SettlementDetails)
	}
	if cleared.CreatorID != creator {
		t.Errorf("creator must not change, got %d", cleared.CreatorID)
	}
}

func TestUpdate_PolicyNumberConflict(t *testing.T) {
	f := newFixture(StatusAdmitted)
	ctx := context.Background()

	a := baseInput()
	a.PolicyNumber = "POL-A"
	first, _ := f.svc.Create(ctx, a, nil, creator)
	b := baseInput()
	b.PolicyNumber = "POL-B"
	second, _ := f.svc.Create(ctx, b, nil, creator)

	_, err := f.svc.Update(ctx, second.ID, Input{PolicyNumber: "POL-A"}, nil, creator)
	expectKind(t, err, apperr.KindConflict, "Policy number already exists.")

	if _, err := f.svc.Update(ctx, first.ID, Input{PolicyNumber: "POL-A"}, nil, creator); err != nil {
		t.Errorf("re-saving own policy number should succeed, got %v", err)
	}
}

func TestUpdate_ChangedReferencesRevalidated(t *testing.T) {
	f := newFixture(StatusAdmitted)
	ctx := context.Background()
	c, _ := f.svc.Create(ctx, baseInput(), nil, creator)

	_, err := f.svc.Update(ctx, c.ID, Input{HospitalID: 42}, nil, creator)
	expectKind(t, err, apperr.KindNotFound, "Hospital not found.")

	updated, err := f.svc.Update(ctx, c.ID, Input{TPAID: 2}, nil, creator)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.TPAID != 2 {
		t.Errorf("expected tpa 2, got %d", updated.TPAID)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(StatusAdmitted)
	_, err := f.svc.Update(context.Background(), 404, Input{PatientName: "X"}, nil, creator)
	expectKind(t, err, apperr.KindNotFound, "Claim not found.")
}

func TestSetStatus(t *testing.T) {
	f := newFixture(StatusAdmitted)
	ctx := context.Background()
	c, _ := f.svc.Create(ctx, baseInput(), nil, creator)

	summary, err := f.svc.SetStatus(ctx, c.ID, "Settled", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("SetStatus() error: %v", err)
	}
	if summary.Status != StatusSettled || summary.ClaimNumber != c.ClaimNumber {
		t.Errorf("unexpected summary %+v", summary)
	}

	// Transitions are permissive, including out of Settled.
	if _, err := f.svc.SetStatus(ctx, c.ID, "Admitted", auth.RoleSuperAdmin); err != nil {
		t.Errorf("expected backwards transition to be allowed, got %v", err)
	}
}

func TestSetStatus_Ordering(t *testing.T) {
	f := newFixture(StatusAdmitted)
	ctx := context.Background()
	c, _ := f.svc.Create(ctx, baseInput(), nil, creator)

	tests := []struct {
		name   string
		id     int64
		status string
		role   auth.Role
		kind   apperr.Kind
	}{
		{"invalid status before role", c.ID, "Closed", auth.RoleStaff, apperr.KindValidation},
		{"invalid status before lookup", 999, "Closed", auth.RoleAdmin, apperr.KindValidation},
		{"staff forbidden", c.ID, "Settled", auth.RoleStaff, apperr.KindForbidden},
		{"forbidden before lookup", 999, "Settled", auth.RoleHospital, apperr.KindForbidden},
		{"missing claim", 999, "Settled", auth.RoleAdmin, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SetStatus(ctx, tt.id, tt.status, tt.role)
			if got := apperr.KindOf(err); got != tt.kind {
				t.Errorf("got %s (%v), want %s", got, err, tt.kind)
			}
		})
	}

	v, _ := f.svc.Get(ctx, c.ID)
	if v.Status != StatusAdmitted {
		t.Errorf("failed calls must not change status, got %s", v.Status)
	}
}

func TestList_Filters(t *testing.T) {
	f := newFixture(StatusAdmitted)
	ctx := context.Background()
	for _, name := range []string{"Asha Rao", "Ravi Kumar", "Asha Iyer"} {
		in := baseInput()
		in.PatientName = name
		_, _ = f.svc.Create(ctx, in, nil, creator)
	}
	_, _ = f.svc.SetStatus(ctx, 3, "Discharged", auth.RoleAdmin)

	claims, total, err := f.svc.List(ctx, "asha", "", pagination.Params{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if total != 2 || len(claims) != 2 {
		t.Errorf("expected 2 matches, got %d/%d", len(claims), total)
	}
	if claims[0].HospitalName != "City Hospital" || claims[0].TPAName != "MediAssist" {
		t.Errorf("expected joined names, got %+v", claims[0])
	}

	_, total, _ = f.svc.List(ctx, "", "Discharged", pagination.Params{Page: 1, Limit: 10})
	if total != 1 {
		t.Errorf("expected 1 discharged claim, got %d", total)
	}

	_, _, err = f.svc.List(ctx, "", "Closed", pagination.Params{Page: 1, Limit: 10})
	expectKind(t, err, apperr.KindValidation, "Invalid status")

	_, _, err = f.svc.List(ctx, "Asha \xff", "", pagination.Params{Page: 1, Limit: 10})
	expectKind(t, err, apperr.KindValidation, "patientName contains invalid characters")
}

func TestPublicStatus(t *testing.T) {
	f := newFixture(StatusAdmitted)
	ctx := context.Background()

	a := baseInput()
	a.ClaimNumber = "CLM-A"
	a.PolicyNumber = "POL-A"
	_, _ = f.svc.Create(ctx, a, nil, creator)
	b := baseInput()
	b.ClaimNumber = "CLM-B"
	b.PatientName = "Ravi Kumar"
	_, _ = f.svc.Create(ctx, b, nil, creator)
	other := baseInput()
	other.ClaimNumber = "CLM-C"
	other.HospitalID = 2
	_, _ = f.svc.Create(ctx, other, nil, creator)

	p := pagination.Params{Page: 1, Limit: 10}

	items, total, err := f.svc.PublicStatus(ctx, LookupQuery{HospitalID: 1, PolicyNumber: "POL-A", PatientName: "ravi"}, p)
	if err != nil {
		t.Fatalf("PublicStatus() error: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected identifiers OR-combined to match 2, got %d", total)
	}
	if items[0].HospitalName != "City Hospital" || items[0].LastUpdated.IsZero() {
		t.Errorf("unexpected summary %+v", items[0])
	}

	_, _, err = f.svc.PublicStatus(ctx, LookupQuery{HospitalID: 1, ClaimNumber: "CLM-C"}, p)
	expectKind(t, err, apperr.KindNotFound, "No claims found.")

	_, _, err = f.svc.PublicStatus(ctx, LookupQuery{HospitalID: 99, ClaimNumber: "CLM-A"}, p)
	expectKind(t, err, apperr.KindNotFound, "Hospital not found.")

	_, _, err = f.svc.PublicStatus(ctx, LookupQuery{HospitalID: 1}, p)
	expectKind(t, err, apperr.KindValidation, "")

	_, _, err = f.svc.PublicStatus(ctx, LookupQuery{ClaimNumber: "CLM-A"}, p)
	expectKind(t, err, apperr.KindValidation, "")
}
