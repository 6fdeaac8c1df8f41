package claim

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
	"github.com/claimtrack/claimtrack/pkg/nullable"
)

const (
	maxClaimNumberLen  = 50
	maxPolicyNumberLen = 100
	maxPatientNameLen  = 255
)

// Claim is the persisted claim record.
type Claim struct {
	ID                int64                  `json:"id"`
	ClaimNumber       string                 `json:"claimNumber"`
	PolicyNumber      *string                `json:"policyNumber"`
	PatientName       string                 `json:"patientName"`
	AdmissionDate     time.Time              `json:"admissionDate"`
	DischargeDate     *time.Time             `json:"dischargeDate"`
	HospitalID        int64                  `json:"hospitalId"`
	TPAID             int64                  `json:"tpaId"`
	CreatorID         int64                  `json:"creatorId"`
	Status            Status                 `json:"status"`
	Documents         []string               `json:"documents"`
	SettlementDetails map[string]interface{} `json:"settlementDetails"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
}

// View is a claim joined with the names of its hospital and TPA.
type View struct {
	Claim
	HospitalName string `json:"hospitalName"`
	TPAName      string `json:"tpaName"`
}

// StatusSummary is returned after a status change.
type StatusSummary struct {
	ID          int64     `json:"id"`
	ClaimNumber string    `json:"claimNumber"`
	PatientName string    `json:"patientName"`
	Status      Status    `json:"status"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PublicSummary is what unauthenticated lookups may see.
type PublicSummary struct {
	ClaimNumber  string    `json:"claimNumber"`
	PatientName  string    `json:"patientName"`
	Status       Status    `json:"status"`
	HospitalName string    `json:"hospitalName"`
	TPAName      string    `json:"tpaName"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

type ListFilter struct {
	PatientName string
	Status      Status
}

// LookupQuery scopes a public lookup to one hospital. Non-empty identifiers
// are OR-combined.
type LookupQuery struct {
	HospitalID   int64
	ClaimNumber  string
	PolicyNumber string
	PatientName  string
}

func (q LookupQuery) validate() error {
	var f apperr.Fields
	if q.HospitalID == 0 {
		f.Add("hospitalId", "Hospital ID is required")
	} else if q.HospitalID < 0 {
		f.Add("hospitalId", "Invalid hospital ID")
	}
	f.Text("claimNumber", q.ClaimNumber, maxClaimNumberLen, "Claim number must be less than 50 characters")
	f.Text("policyNumber", q.PolicyNumber, maxPolicyNumberLen, "Policy number must be less than 100 characters")
	f.Text("patientName", q.PatientName, maxPatientNameLen, "Patient name must be less than 255 characters")
	if q.ClaimNumber == "" && q.PolicyNumber == "" && q.PatientName == "" {
		f.Add("identifier", "At least one of claimNumber, policyNumber, or patientName is required")
	}
	return f.Err()
}

// RefID is an entity id that accepts a JSON number or a numeric string.
// Anything unparseable becomes -1 so validation reports it as invalid.
type RefID int64

func (r *RefID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = parseRefID(s)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		*r = -1
		return nil
	}
	*r = RefID(n)
	return nil
}

func parseRefID(s string) RefID {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return -1
	}
	return RefID(n)
}

// Input carries the writable claim fields from a create or update request.
// On update, empty strings and zero ids mean "unchanged"; dischargeDate and
// settlementDetails distinguish absent from explicit null.
type Input struct {
	ClaimNumber       string                          `json:"claimNumber"`
	PolicyNumber      string                          `json:"policyNumber"`
	PatientName       string                          `json:"patientName"`
	AdmissionDate     string                          `json:"admissionDate"`
	DischargeDate     nullable.Value[string]          `json:"dischargeDate"`
	HospitalID        RefID                           `json:"hospitalId"`
	TPAID             RefID                           `json:"tpaId"`
	SettlementDetails nullable.Value[json.RawMessage] `json:"settlementDetails"`
}

// fields is Input after parsing.
type fields struct {
	admission  *time.Time
	discharge  nullable.Value[time.Time]
	settlement nullable.Value[map[string]interface{}]
}

func (in *Input) normalize() {
	in.ClaimNumber = strings.TrimSpace(in.ClaimNumber)
	in.PolicyNumber = strings.TrimSpace(in.PolicyNumber)
	in.PatientName = strings.TrimSpace(in.PatientName)
	in.AdmissionDate = strings.TrimSpace(in.AdmissionDate)
}

// parse validates the input, collecting every field error. creating makes
// the required fields mandatory.
func (in *Input) parse(creating bool) (fields, error) {
	var out fields
	var f apperr.Fields

	if creating && in.PatientName == "" {
		f.Add("patientName", "Patient name is required")
	} else {
		f.Text("patientName", in.PatientName, maxPatientNameLen, "Patient name must be less than 255 characters")
	}
	f.Text("claimNumber", in.ClaimNumber, maxClaimNumberLen, "Claim number must be less than 50 characters")
	f.Text("policyNumber", in.PolicyNumber, maxPolicyNumberLen, "Policy number must be less than 100 characters")

	switch {
	case in.AdmissionDate == "":
		if creating {
			f.Add("admissionDate", "Admission date is required")
		}
	default:
		if t, ok := parseDate(in.AdmissionDate); ok {
			out.admission = &t
		} else {
			f.Add("admissionDate", "Invalid admission date format")
		}
	}

	if in.DischargeDate.Set {
		if p := in.DischargeDate.Ptr(); p == nil || strings.TrimSpace(*p) == "" {
			out.discharge = nullable.Null[time.Time]()
		} else if t, ok := parseDate(*p); ok {
			out.discharge = nullable.Of(t)
		} else {
			f.Add("dischargeDate", "Invalid discharge date format")
		}
	}

	checkRef(&f, "hospitalId", "Hospital ID is required", "Invalid hospital ID", in.HospitalID, creating)
	checkRef(&f, "tpaId", "TPA ID is required", "Invalid TPA ID", in.TPAID, creating)

	if in.SettlementDetails.Set {
		if in.SettlementDetails.Null {
			out.settlement = nullable.Null[map[string]interface{}]()
		} else {
			var m map[string]interface{}
			raw := bytes.TrimSpace(in.SettlementDetails.V)
			if len(raw) == 0 || raw[0] != '{' || json.Unmarshal(raw, &m) != nil {
				f.Add("settlementDetails", "Settlement details must be a valid JSON object")
			} else {
				out.settlement = nullable.Of(m)
			}
		}
	}

	return out, f.Err()
}

func checkRef(f *apperr.Fields, field, required, invalid string, id RefID, creating bool) {
	switch {
	case id == 0 && creating:
		f.Add(field, required)
	case id < 0:
		f.Add(field, invalid)
	}
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// checkDates enforces discharge on or after admission for the resulting
// record.
func checkDates(admission time.Time, discharge *time.Time) error {
	if discharge != nil && discharge.Before(admission) {
		return apperr.Validation("Discharge date cannot be before admission date",
			apperr.FieldError{Field: "dischargeDate", Message: "Discharge date cannot be before admission date"})
	}
	return nil
}
