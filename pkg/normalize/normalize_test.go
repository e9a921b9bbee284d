package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/banksia/pkg/models"
)

func TestNormalizeDate(t *testing.T) {
	t.Run("iso passes through", func(t *testing.T) {
		assert.Equal(t, "1985-03-15", NormalizeDate("1985-03-15"))
	})

	t.Run("day-first formats", func(t *testing.T) {
		assert.Equal(t, "1985-03-15", NormalizeDate("15/03/1985"))
		assert.Equal(t, "1985-03-15", NormalizeDate("15-03-1985"))
		assert.Equal(t, "1985-03-05", NormalizeDate("5/3/1985"))
	})

	t.Run("garbage becomes absent", func(t *testing.T) {
		assert.Equal(t, "", NormalizeDate("not a date"))
		assert.Equal(t, "", NormalizeDate("99/99/9999"))
	})
}

func TestMedicareNormalization(t *testing.T) {
	// The same Medicare number with and without grouping spaces must
	// canonicalize identically.
	assert.Equal(t, "2428912345678", DigitsOnly("2428 9123 4567 8"))
	assert.Equal(t, "2428912345678", DigitsOnly("2428912345678"))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "john smith", NormalizeName("John  Smith Jr."))
	assert.Equal(t, "mary oconnor", NormalizeName("Mary O'Connor"))
}

func TestNormalizeState(t *testing.T) {
	assert.Equal(t, "NSW", NormalizeState("New South Wales"))
	assert.Equal(t, "NSW", NormalizeState("nsw"))
	assert.Equal(t, "VIC", NormalizeState("Victoria"))
}

func TestNormalizePostcode(t *testing.T) {
	assert.Equal(t, "2000", NormalizePostcode("2000"))
	assert.Equal(t, "", NormalizePostcode("200"))
	assert.Equal(t, "", NormalizePostcode("abcd"))
}

func TestProfileRecord(t *testing.T) {
	profile := PatientProfile()

	rec := &models.Record{
		RecordID:     "1",
		SourceSystem: "hospital_a",
		IngestedAt:   time.Now(),
		Fields: map[string]string{
			FieldMRN:      "MRN001234",
			FieldName:     "John Smith",
			FieldDOB:      "15/03/1985",
			FieldMedicare: "2428 9123 4567 8",
			FieldPhone:    "(02) 9999 1234",
			FieldEmail:    " John.Smith@Example.COM ",
			FieldPostcode: "2000",
			FieldGender:   "Male",
		},
	}

	norm := profile.Record(rec)
	require.NotNil(t, norm)
	assert.Equal(t, "1", norm.RecordID)
	assert.Equal(t, "MRN001234", norm.Normalized[FieldMRN])
	assert.Equal(t, "john smith", norm.Normalized[FieldName])
	assert.Equal(t, "1985-03-15", norm.Normalized[FieldDOB])
	assert.Equal(t, "2428912345678", norm.Normalized[FieldMedicare])
	assert.Equal(t, "0299991234", norm.Normalized[FieldPhone])
	assert.Equal(t, "john.smith@example.com", norm.Normalized[FieldEmail])
	assert.Equal(t, "male", norm.Normalized[FieldGender])
	assert.Empty(t, norm.Issues)
}

func TestProfileRecord_MalformedFieldRecovered(t *testing.T) {
	profile := PatientProfile()

	rec := &models.Record{
		RecordID: "2",
		Fields: map[string]string{
			FieldDOB:  "yesterday",
			FieldName: "Jane Doe",
		},
	}

	norm := profile.Record(rec)
	_, ok := norm.Value(FieldDOB)
	assert.False(t, ok, "malformed date should be absent")
	assert.Equal(t, "jane doe", norm.Normalized[FieldName])
	require.Len(t, norm.Issues, 1)
	assert.Equal(t, FieldDOB, norm.Issues[0].Field)
}

func TestProfileRecord_Idempotent(t *testing.T) {
	profile := PatientProfile()

	rec := &models.Record{
		RecordID: "3",
		Fields: map[string]string{
			FieldMRN:      "mr-00 1234",
			FieldName:     "Robert  Brown III",
			FieldDOB:      "01/12/1990",
			FieldMedicare: "2987 6543 2109 8",
			FieldAddress:  "42 George Street",
			FieldState:    "Queensland",
		},
	}

	once := profile.Record(rec)

	// Re-normalizing the normalized values must be a no-op.
	again := profile.Record(&models.Record{
		RecordID: "3",
		Fields:   once.Normalized,
	})

	assert.Equal(t, once.Normalized, again.Normalized)
	assert.Empty(t, again.Issues)
}

func TestProfileRecord_Total(t *testing.T) {
	profile := PatientProfile()

	// Fuzz-ish corpus: none of these may panic or drop the record.
	inputs := []map[string]string{
		{},
		{FieldDOB: "", FieldName: "   "},
		{FieldMedicare: "!!!", FieldPostcode: "POST"},
		{FieldName: "亜衣", FieldEmail: "@", FieldState: "zzz"},
		{"unknown_field": "kept as-is"},
	}

	for _, fields := range inputs {
		norm := profile.Record(&models.Record{RecordID: "x", Fields: fields})
		require.NotNil(t, norm)
	}

	norm := profile.Record(&models.Record{RecordID: "x", Fields: map[string]string{"unknown_field": "kept as-is"}})
	assert.Equal(t, "kept as-is", norm.Normalized["unknown_field"])
}
