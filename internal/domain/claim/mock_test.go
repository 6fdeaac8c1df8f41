package claim

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/claimtrack/claimtrack/internal/platform/blobstore"
)

// -- Mock Repository --

type mockRepo struct {
	mu     sync.Mutex
	claims map[int64]*Claim
	nextID int64
	names  *mockDirectory

	// createErr, when set, is returned by Create after the checks pass.
	createErr error
}

func newMockRepo(dir *mockDirectory) *mockRepo {
	return &mockRepo{claims: make(map[int64]*Claim), names: dir}
}

func (m *mockRepo) Create(_ context.Context, c *Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.claims {
		if existing.ClaimNumber == c.ClaimNumber {
			return ErrClaimNumberTaken
		}
	}
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	cp.Documents = append([]string{}, c.Documents...)
	m.claims[c.ID] = &cp
	return nil
}

func (m *mockRepo) view(c *Claim) *View {
	cp := *c
	cp.Documents = append([]string{}, c.Documents...)
	return &View{Claim: cp, HospitalName: m.names.hospitals[c.HospitalID], TPAName: m.names.tpas[c.TPAID]}
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.view(c), nil
}

func (m *mockRepo) Update(_ context.Context, c *Claim, newDocs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.claims[c.ID]
	if !ok {
		return ErrNotFound
	}
	docs := append(append([]string{}, stored.Documents...), newDocs...)
	cp := *c
	cp.Documents = docs
	cp.Status = stored.Status
	cp.UpdatedAt = time.Now()
	m.claims[c.ID] = &cp

	c.Documents = append([]string{}, docs...)
	c.Status = cp.Status
	c.UpdatedAt = cp.UpdatedAt
	return nil
}

func (m *mockRepo) SetStatus(_ context.Context, id int64, status Status) (*StatusSummary, Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, "", ErrNotFound
	}
	prev := c.Status
	c.Status = status
	c.UpdatedAt = time.Now()
	return &StatusSummary{ID: c.ID, ClaimNumber: c.ClaimNumber, PatientName: c.PatientName, Status: c.Status, UpdatedAt: c.UpdatedAt}, prev, nil
}

func (m *mockRepo) sorted() []*Claim {
	out := make([]*Claim, 0, len(m.claims))
	for _, c := range m.claims {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func window(total, limit, offset int) (int, int) {
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return offset, end
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*View, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*View
	for _, c := range m.sorted() {
		if f.PatientName != "" && !strings.Contains(strings.ToLower(c.PatientName), strings.ToLower(f.PatientName)) {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, m.view(c))
	}
	lo, hi := window(len(out), limit, offset)
	return append([]*View{}, out[lo:hi]...), len(out), nil
}

func (m *mockRepo) Lookup(_ context.Context, q LookupQuery, limit, offset int) ([]*PublicSummary, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*PublicSummary
	for _, c := range m.sorted() {
		if c.HospitalID != q.HospitalID {
			continue
		}
		match := (q.ClaimNumber != "" && c.ClaimNumber == q.ClaimNumber) ||
			(q.PolicyNumber != "" && c.PolicyNumber != nil && *c.PolicyNumber == q.PolicyNumber) ||
			(q.PatientName != "" && strings.Contains(strings.ToLower(c.PatientName), strings.ToLower(q.PatientName)))
		if !match {
			continue
		}
		out = append(out, &PublicSummary{
			ClaimNumber:  c.ClaimNumber,
			PatientName:  c.PatientName,
			Status:       c.Status,
			HospitalName: m.names.hospitals[c.HospitalID],
			TPAName:      m.names.tpas[c.TPAID],
			LastUpdated:  c.UpdatedAt,
		})
	}
	lo, hi := window(len(out), limit, offset)
	return append([]*PublicSummary{}, out[lo:hi]...), len(out), nil
}

func (m *mockRepo) ClaimNumberExists(_ context.Context, number string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims {
		if c.ClaimNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) PolicyNumberExists(_ context.Context, policy string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims {
		if c.ID != excludeID && c.PolicyNumber != nil && *c.PolicyNumber == policy {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) CountByHospital(_ context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.claims {
		if c.HospitalID == id {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) CountByTPA(_ context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.claims {
		if c.TPAID == id {
			n++
		}
	}
	return n, nil
}

// -- Mock Directory --

type mockDirectory struct {
	hospitals map[int64]string
	tpas      map[int64]string
}

func (d *mockDirectory) HospitalExists(_ context.Context, id int64) (bool, error) {
	_, ok := d.hospitals[id]
	return ok, nil
}

func (d *mockDirectory) TPAExists(_ context.Context, id int64) (bool, error) {
	_, ok := d.tpas[id]
	return ok, nil
}

type testFixture struct {
	svc  *Service
	repo *mockRepo
	docs *blobstore.InMemoryStore
}

func newFixture(initial Status) *testFixture {
	dir := &mockDirectory{
		hospitals: map[int64]string{1: "City Hospital", 2: "Lakeside Clinic"},
		tpas:      map[int64]string{1: "MediAssist", 2: "Paramount"},
	}
	lc, err := NewLifecycle(string(initial))
	if err != nil {
		panic(err)
	}
	f := &testFixture{repo: newMockRepo(dir), docs: blobstore.NewInMemoryStore()}
	f.svc = NewService(f.repo, dir, f.docs, lc, zerolog.Nop())
	return f
}
