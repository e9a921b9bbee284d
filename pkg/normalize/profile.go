package normalize

import (
	"strings"

	"github.com/Ramsey-B/banksia/pkg/models"
)

// Patient field names as they appear on incoming records.
const (
	FieldMRN              = "medical_record_num"
	FieldName             = "patient_name"
	FieldDOB              = "date_of_birth"
	FieldMedicare         = "medicare_number"
	FieldPhone            = "phone"
	FieldEmail            = "email"
	FieldAddress          = "address"
	FieldSuburb           = "suburb"
	FieldState            = "state"
	FieldPostcode         = "postcode"
	FieldHealthFund       = "private_health_fund"
	FieldMembershipNumber = "membership_number"
	FieldEmergencyContact = "emergency_contact"
	FieldGPName           = "gp_name"
	FieldBloodType        = "blood_type"
	FieldGender           = "gender"
)

// Profile maps each field to its normalizer chain. Fields not listed pass
// through with whitespace trimmed.
type Profile map[string][]string

// PatientProfile returns the normalizer chains for Australian patient
// records.
func PatientProfile() Profile {
	return Profile{
		FieldMRN:              {"alnum_upper"},
		FieldName:             {"nname"},
		FieldDOB:              {"ndate"},
		FieldMedicare:         {"digits_only"},
		FieldPhone:            {"nphone"},
		FieldEmail:            {"nemail"},
		FieldAddress:          {"naddress"},
		FieldSuburb:           {"naddress"},
		FieldState:            {"nstate"},
		FieldPostcode:         {"npostcode"},
		FieldHealthFund:       {"trim", "lowercase"},
		FieldMembershipNumber: {"digits_only"},
		FieldEmergencyContact: {"nname"},
		FieldGPName:           {"nname"},
		FieldBloodType:        {"nblood"},
		FieldGender:           {"trim", "lowercase"},
	}
}

// Record normalizes every field of a record. It is pure and total: each raw
// field maps to a canonical value or becomes absent, and a value the chain
// rejects is recorded as a recovered issue, never an error.
func (p Profile) Record(rec *models.Record) *models.NormalizedRecord {
	norm := &models.NormalizedRecord{
		RecordID:   rec.RecordID,
		Raw:        rec.Fields,
		Normalized: make(map[string]string, len(rec.Fields)),
	}

	for field, raw := range rec.Fields {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue // absent
		}

		chain, ok := p[field]
		if !ok {
			norm.Normalized[field] = trimmed
			continue
		}

		value := ApplyChain(trimmed, chain...)
		if value == "" {
			// Malformed input for a typed field: treated as absent,
			// flagged, never fatal to the record.
			norm.Issues = append(norm.Issues, models.FieldIssue{
				Field:    field,
				RawValue: raw,
				Reason:   "value rejected by normalizer chain " + strings.Join(chain, ","),
			})
			continue
		}
		norm.Normalized[field] = value
	}

	return norm
}

// Records normalizes a batch, preserving input order.
func (p Profile) Records(recs []*models.Record) []*models.NormalizedRecord {
	out := make([]*models.NormalizedRecord, len(recs))
	for i, rec := range recs {
		out[i] = p.Record(rec)
	}
	return out
}
