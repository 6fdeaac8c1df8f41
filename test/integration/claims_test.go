package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/claimtrack/claimtrack/internal/domain/admin"
	"github.com/claimtrack/claimtrack/internal/domain/claim"
	"github.com/claimtrack/claimtrack/internal/platform/auth"
)

type registry struct {
	hospital *admin.Hospital
	tpa      *admin.TPA
	creator  int64
}

func createRegistry(t *testing.T, ctx context.Context) registry {
	t.Helper()
	sfx := uniqueSuffix()
	h := &admin.Hospital{Name: "Hospital " + sfx, Email: "h-" + sfx + "@example.com"}
	if err := admin.NewHospitalRepo(globalDB.Handle).Create(ctx, h); err != nil {
		t.Fatalf("create hospital: %v", err)
	}
	tp := &admin.TPA{Name: "TPA " + sfx, Email: "t-" + sfx + "@example.com"}
	if err := admin.NewTPARepo(globalDB.Handle).Create(ctx, tp); err != nil {
		t.Fatalf("create tpa: %v", err)
	}
	u := createTestUser(t, ctx, auth.RoleAdmin)
	return registry{hospital: h, tpa: tp, creator: u.ID}
}

func newClaim(reg registry, patient string) *claim.Claim {
	return &claim.Claim{
		ClaimNumber:   "CLM-" + uniqueSuffix(),
		PatientName:   patient,
		AdmissionDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		HospitalID:    reg.hospital.ID,
		TPAID:         reg.tpa.ID,
		CreatorID:     reg.creator,
		Status:        claim.StatusAdmitted,
		Documents:     []string{"a.pdf"},
	}
}

func strPtr(s string) *string { return &s }

func TestHospitalRepo_Conflicts(t *testing.T) {
	ctx := context.Background()
	repo := admin.NewHospitalRepo(globalDB.Handle)
	sfx := uniqueSuffix()

	first := &admin.Hospital{Name: "Unique " + sfx, Email: "u-" + sfx + "@example.com"}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := &admin.Hospital{Name: "Unique " + sfx, Email: "other-" + sfx + "@example.com"}
	err := repo.Create(ctx, dup)
	var ce *admin.ConflictError
	if !errors.As(err, &ce) || ce.Field != "name" {
		t.Fatalf("expected name conflict, got %v", err)
	}

	field, err := repo.FindConflict(ctx, "", first.Email, 0)
	if err != nil {
		t.Fatalf("find conflict: %v", err)
	}
	if field != "email" {
		t.Errorf("expected email conflict, got %q", field)
	}
	field, err = repo.FindConflict(ctx, first.Name, first.Email, first.ID)
	if err != nil {
		t.Fatalf("find conflict: %v", err)
	}
	if field != "" {
		t.Errorf("record should not conflict with itself, got %q", field)
	}
}

func TestHospitalRepo_ListByName(t *testing.T) {
	ctx := context.Background()
	repo := admin.NewHospitalRepo(globalDB.Handle)
	sfx := uniqueSuffix()

	for _, name := range []string{"North 100% " + sfx, "South " + sfx} {
		if err := repo.Create(ctx, &admin.Hospital{Name: name, Email: uniqueSuffix() + "@example.com"}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	got, total, err := repo.List(ctx, admin.ListFilter{Name: "100% " + sfx}, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(got) != 1 {
		t.Fatalf("expected one match for literal %%, got %d", total)
	}
}

func TestClaimRepo_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	reg := createRegistry(t, ctx)
	repo := claim.NewRepo(globalDB.Handle)

	c := newClaim(reg, "Asha Rao")
	c.PolicyNumber = strPtr("POL-" + uniqueSuffix())
	c.SettlementDetails = map[string]interface{}{"amount": float64(1200)}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == 0 {
		t.Fatal("expected id to be assigned")
	}

	v, err := repo.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.HospitalName != reg.hospital.Name || v.TPAName != reg.tpa.Name {
		t.Errorf("unexpected joined names: %q / %q", v.HospitalName, v.TPAName)
	}
	if len(v.Documents) != 1 || v.Documents[0] != "a.pdf" {
		t.Errorf("unexpected documents: %v", v.Documents)
	}
	if v.SettlementDetails["amount"] != float64(1200) {
		t.Errorf("unexpected settlement details: %v", v.SettlementDetails)
	}

	if _, err := repo.GetByID(ctx, c.ID+100000); !errors.Is(err, claim.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimRepo_UniqueNumbers(t *testing.T) {
	ctx := context.Background()
	reg := createRegistry(t, ctx)
	repo := claim.NewRepo(globalDB.Handle)

	c := newClaim(reg, "Ravi Menon")
	c.PolicyNumber = strPtr("POL-" + uniqueSuffix())
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	sameNumber := newClaim(reg, "Other")
	sameNumber.ClaimNumber = c.ClaimNumber
	if err := repo.Create(ctx, sameNumber); !errors.Is(err, claim.ErrClaimNumberTaken) {
		t.Errorf("expected ErrClaimNumberTaken, got %v", err)
	}

	samePolicy := newClaim(reg, "Other")
	samePolicy.PolicyNumber = c.PolicyNumber
	if err := repo.Create(ctx, samePolicy); !errors.Is(err, claim.ErrPolicyNumberTaken) {
		t.Errorf("expected ErrPolicyNumberTaken, got %v", err)
	}

	// Claims without a policy number never collide.
	for i := 0; i < 2; i++ {
		if err := repo.Create(ctx, newClaim(reg, "No Policy")); err != nil {
			t.Fatalf("create without policy: %v", err)
		}
	}

	taken, err := repo.PolicyNumberExists(ctx, *c.PolicyNumber, c.ID)
	if err != nil {
		t.Fatalf("policy exists: %v", err)
	}
	if taken {
		t.Error("policy number should not conflict with its own claim")
	}
}

func TestClaimRepo_MissingReferences(t *testing.T) {
	ctx := context.Background()
	reg := createRegistry(t, ctx)
	repo := claim.NewRepo(globalDB.Handle)

	c := newClaim(reg, "Ghost")
	c.HospitalID = reg.hospital.ID + 100000
	if err := repo.Create(ctx, c); !errors.Is(err, claim.ErrHospitalMissing) {
		t.Errorf("expected ErrHospitalMissing, got %v", err)
	}

	c = newClaim(reg, "Ghost")
	c.TPAID = reg.tpa.ID + 100000
	if err := repo.Create(ctx, c); !errors.Is(err, claim.ErrTPAMissing) {
		t.Errorf("expected ErrTPAMissing, got %v", err)
	}
}

func TestClaimRepo_UpdateAppendsDocuments(t *testing.T) {
	ctx := context.Background()
	reg := createRegistry(t, ctx)
	repo := claim.NewRepo(globalDB.Handle)

	c := newClaim(reg, "Meera Iyer")
	c.Documents = []string{"a.pdf", "b.png"}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	discharge := c.AdmissionDate.Add(72 * time.Hour)
	c.DischargeDate = &discharge
	c.PatientName = "Meera S. Iyer"
	if err := repo.Update(ctx, c, []string{"c.jpg"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	want := []string{"a.pdf", "b.png", "c.jpg"}
	if len(c.Documents) != len(want) {
		t.Fatalf("expected %v, got %v", want, c.Documents)
	}
	for i := range want {
		if c.Documents[i] != want[i] {
			t.Errorf("documents[%d]: expected %q, got %q", i, want[i], c.Documents[i])
		}
	}

	v, err := repo.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.PatientName != "Meera S. Iyer" || v.DischargeDate == nil || !v.DischargeDate.Equal(discharge) {
		t.Errorf("update not persisted: %+v", v.Claim)
	}

	missing := *c
	missing.ID = c.ID + 100000
	if err := repo.Update(ctx, &missing, nil); !errors.Is(err, claim.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimRepo_SetStatusReturnsPrevious(t *testing.T) {
	ctx := context.Background()
	reg := createRegistry(t, ctx)
	repo := claim.NewRepo(globalDB.Handle)

	c := newClaim(reg, "Kiran Das")
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	summary, prev, err := repo.SetStatus(ctx, c.ID, claim.StatusSettled)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if prev != claim.StatusAdmitted {
		t.Errorf("expected previous Admitted, got %q", prev)
	}
	if summary.Status != claim.StatusSettled || summary.ClaimNumber != c.ClaimNumber {
		t.Errorf("unexpected summary: %+v", summary)
	}

	if _, _, err := repo.SetStatus(ctx, c.ID+100000, claim.StatusSettled); !errors.Is(err, claim.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimRepo_ListAndLookup(t *testing.T) {
	ctx := context.Background()
	reg := createRegistry(t, ctx)
	other := createRegistry(t, ctx)
	repo := claim.NewRepo(globalDB.Handle)
	sfx := uniqueSuffix()

	a := newClaim(reg, "Lookup Anand "+sfx)
	a.PolicyNumber = strPtr("POL-" + sfx)
	b := newClaim(reg, "Lookup Bela "+sfx)
	elsewhere := newClaim(other, "Lookup Anand "+sfx)
	for _, c := range []*claim.Claim{a, b, elsewhere} {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, _, err := repo.SetStatus(ctx, b.ID, claim.StatusDischarged); err != nil {
		t.Fatalf("set status: %v", err)
	}

	got, total, err := repo.List(ctx, claim.ListFilter{PatientName: "lookup", Status: claim.StatusDischarged}, 50, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, v := range got {
		if v.Status != claim.StatusDischarged {
			t.Errorf("status filter leaked %q", v.Status)
		}
		if v.ID == b.ID {
			found = true
		}
	}
	if total < 1 || !found {
		t.Errorf("expected discharged claim in listing, total=%d", total)
	}

	// Identifiers are OR-combined but scoped to the hospital.
	items, total, err := repo.Lookup(ctx, claim.LookupQuery{
		HospitalID:   reg.hospital.ID,
		ClaimNumber:  b.ClaimNumber,
		PolicyNumber: *a.PolicyNumber,
	}, 10, 0)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 matches, got %d", total)
	}
	if items[0].HospitalName != reg.hospital.Name {
		t.Errorf("unexpected hospital name %q", items[0].HospitalName)
	}

	items, total, err = repo.Lookup(ctx, claim.LookupQuery{HospitalID: reg.hospital.ID, PatientName: "anand " + sfx}, 10, 0)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if total != 1 || items[0].ClaimNumber != a.ClaimNumber {
		t.Errorf("expected only the claim at this hospital, got %d", total)
	}
}

func TestRegistryDelete_BlockedByClaims(t *testing.T) {
	ctx := context.Background()
	reg := createRegistry(t, ctx)
	claims := claim.NewRepo(globalDB.Handle)

	if err := claims.Create(ctx, newClaim(reg, "Blocker")); err != nil {
		t.Fatalf("create claim: %v", err)
	}

	n, err := claims.CountByHospital(ctx, reg.hospital.ID)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 claim for hospital, got %d (%v)", n, err)
	}
	if err := admin.NewHospitalRepo(globalDB.Handle).Delete(ctx, reg.hospital.ID); !errors.Is(err, admin.ErrInUse) {
		t.Errorf("expected ErrInUse deleting hospital, got %v", err)
	}
	if err := admin.NewTPARepo(globalDB.Handle).Delete(ctx, reg.tpa.ID); !errors.Is(err, admin.ErrInUse) {
		t.Errorf("expected ErrInUse deleting tpa, got %v", err)
	}

	free := createRegistry(t, ctx)
	if err := admin.NewTPARepo(globalDB.Handle).Delete(ctx, free.tpa.ID); err != nil {
		t.Errorf("delete unreferenced tpa: %v", err)
	}
	if err := admin.NewTPARepo(globalDB.Handle).Delete(ctx, free.tpa.ID); !errors.Is(err, admin.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
