package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/normalize"
)

func TestParseComparison(t *testing.T) {
	t.Run("valid response", func(t *testing.T) {
		raw := json.RawMessage(`{"similarity_score": 0.93, "is_match": true, "confidence": "high", "match_reason": "medicare and dob agree"}`)

		verdict, err := ParseComparison(raw)
		require.NoError(t, err)
		assert.Equal(t, 0.93, verdict.SimilarityScore)
		assert.True(t, verdict.IsMatch)
		assert.Equal(t, models.ConfidenceHigh, verdict.Confidence)
	})

	t.Run("missing key", func(t *testing.T) {
		raw := json.RawMessage(`{"similarity_score": 0.93, "is_match": true, "confidence": "high"}`)

		_, err := ParseComparison(raw)
		var schemaErr *SchemaViolationError
		require.ErrorAs(t, err, &schemaErr)
		assert.Contains(t, schemaErr.Reason, "match_reason")
	})

	t.Run("score out of range", func(t *testing.T) {
		raw := json.RawMessage(`{"similarity_score": 1.4, "is_match": true, "confidence": "high", "match_reason": "x"}`)

		_, err := ParseComparison(raw)
		var schemaErr *SchemaViolationError
		require.ErrorAs(t, err, &schemaErr)
	})

	t.Run("unknown confidence band", func(t *testing.T) {
		raw := json.RawMessage(`{"similarity_score": 0.5, "is_match": false, "confidence": "maybe", "match_reason": "x"}`)

		_, err := ParseComparison(raw)
		var schemaErr *SchemaViolationError
		require.ErrorAs(t, err, &schemaErr)
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := ParseComparison(json.RawMessage(`"definitely a match"`))
		var schemaErr *SchemaViolationError
		require.ErrorAs(t, err, &schemaErr)
	})

	t.Run("wrong type", func(t *testing.T) {
		raw := json.RawMessage(`{"similarity_score": "high", "is_match": true, "confidence": "high", "match_reason": "x"}`)

		_, err := ParseComparison(raw)
		var schemaErr *SchemaViolationError
		require.ErrorAs(t, err, &schemaErr)
	})
}

func TestParseQuality(t *testing.T) {
	t.Run("valid response", func(t *testing.T) {
		raw := json.RawMessage(`{"quality_score": 85, "completeness": 0.9, "issues": ["missing phone"]}`)

		verdict, err := ParseQuality(raw)
		require.NoError(t, err)
		assert.Equal(t, 85, verdict.QualityScore)
		assert.Equal(t, 0.9, verdict.Completeness)
		assert.Equal(t, []string{"missing phone"}, verdict.Issues)
	})

	t.Run("null issues becomes empty slice", func(t *testing.T) {
		raw := json.RawMessage(`{"quality_score": 85, "completeness": 0.9, "issues": null}`)

		verdict, err := ParseQuality(raw)
		require.NoError(t, err)
		assert.NotNil(t, verdict.Issues)
		assert.Empty(t, verdict.Issues)
	})

	t.Run("score out of range", func(t *testing.T) {
		raw := json.RawMessage(`{"quality_score": 120, "completeness": 0.9, "issues": []}`)

		_, err := ParseQuality(raw)
		var schemaErr *SchemaViolationError
		require.ErrorAs(t, err, &schemaErr)
	})

	t.Run("missing completeness", func(t *testing.T) {
		raw := json.RawMessage(`{"quality_score": 85, "issues": []}`)

		_, err := ParseQuality(raw)
		var schemaErr *SchemaViolationError
		require.ErrorAs(t, err, &schemaErr)
	})
}

func TestClassifyFailure(t *testing.T) {
	assert.Equal(t, models.FailureOracleTimeout, ClassifyFailure(ErrTimeout))
	assert.Equal(t, models.FailureOracleTimeout, ClassifyFailure(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.Equal(t, models.FailureSchemaViolation, ClassifyFailure(&SchemaViolationError{Reason: "bad"}))
	assert.Equal(t, models.FailureOracleUnavailable, ClassifyFailure(ErrUnavailable))
	assert.Equal(t, models.FailureOracleUnavailable, ClassifyFailure(errors.New("connection refused")))
}

func TestRuleOracle_Compare(t *testing.T) {
	o := NewRuleOracle(RuleConfig{})
	ctx := context.Background()

	t.Run("identical identifiers score high", func(t *testing.T) {
		a := &models.NormalizedRecord{RecordID: "1", Normalized: map[string]string{
			normalize.FieldMedicare: "2428912345678",
			normalize.FieldName:     "john smith",
			normalize.FieldDOB:      "1985-03-15",
		}}
		b := &models.NormalizedRecord{RecordID: "2", Normalized: map[string]string{
			normalize.FieldMedicare: "2428912345678",
			normalize.FieldName:     "jon smith",
			normalize.FieldDOB:      "1985-03-15",
		}}

		verdict, err := o.Compare(ctx, a, b)
		require.NoError(t, err)
		assert.True(t, verdict.IsMatch)
		assert.Greater(t, verdict.SimilarityScore, 0.9)
		assert.Equal(t, models.ConfidenceHigh, verdict.Confidence)
		assert.Contains(t, verdict.MatchReason, "medicare_number exact")
	})

	t.Run("different people do not match", func(t *testing.T) {
		a := &models.NormalizedRecord{RecordID: "1", Normalized: map[string]string{
			normalize.FieldMedicare: "1111111111111",
			normalize.FieldName:     "john smith",
			normalize.FieldDOB:      "1985-03-15",
		}}
		b := &models.NormalizedRecord{RecordID: "2", Normalized: map[string]string{
			normalize.FieldMedicare: "9999999999999",
			normalize.FieldName:     "mary jones",
			normalize.FieldDOB:      "1962-11-02",
		}}

		verdict, err := o.Compare(ctx, a, b)
		require.NoError(t, err)
		assert.False(t, verdict.IsMatch)
	})

	t.Run("no overlapping fields", func(t *testing.T) {
		a := &models.NormalizedRecord{RecordID: "1", Normalized: map[string]string{
			normalize.FieldMedicare: "1111111111111",
		}}
		b := &models.NormalizedRecord{RecordID: "2", Normalized: map[string]string{
			normalize.FieldPhone: "0412345678",
		}}

		verdict, err := o.Compare(ctx, a, b)
		require.NoError(t, err)
		assert.False(t, verdict.IsMatch)
		assert.Zero(t, verdict.SimilarityScore)
		assert.Equal(t, models.ConfidenceLow, verdict.Confidence)
	})

	t.Run("deterministic", func(t *testing.T) {
		a := &models.NormalizedRecord{RecordID: "1", Normalized: map[string]string{
			normalize.FieldName: "john smith",
			normalize.FieldDOB:  "1985-03-15",
		}}
		b := &models.NormalizedRecord{RecordID: "2", Normalized: map[string]string{
			normalize.FieldName: "jon smyth",
			normalize.FieldDOB:  "1985-03-15",
		}}

		first, err := o.Compare(ctx, a, b)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := o.Compare(ctx, a, b)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := o.Compare(cancelled, &models.NormalizedRecord{}, &models.NormalizedRecord{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRuleOracle_AssessQuality(t *testing.T) {
	o := NewRuleOracle(RuleConfig{})
	ctx := context.Background()

	t.Run("complete record scores well", func(t *testing.T) {
		rec := &models.NormalizedRecord{RecordID: "1", Normalized: map[string]string{
			normalize.FieldMRN:        "MRN001234",
			normalize.FieldName:       "john smith",
			normalize.FieldDOB:        "1985-03-15",
			normalize.FieldMedicare:   "2428912345678",
			normalize.FieldPhone:      "0412345678",
			normalize.FieldEmail:      "john@example.com",
			normalize.FieldAddress:    "12 george street",
			normalize.FieldSuburb:     "sydney",
			normalize.FieldState:      "NSW",
			normalize.FieldPostcode:   "2000",
			normalize.FieldHealthFund: "medibank",
			normalize.FieldBloodType:  "O+",
			normalize.FieldGender:     "male",
		}}

		verdict, err := o.AssessQuality(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, 100, verdict.QualityScore)
		assert.Equal(t, 1.0, verdict.Completeness)
		assert.Empty(t, verdict.Issues)
	})

	t.Run("missing critical fields raise issues", func(t *testing.T) {
		rec := &models.NormalizedRecord{RecordID: "2", Normalized: map[string]string{
			normalize.FieldName: "john smith",
		}}

		verdict, err := o.AssessQuality(ctx, rec)
		require.NoError(t, err)
		assert.Less(t, verdict.Completeness, 0.2)
		assert.Contains(t, verdict.Issues, "missing medicare number")
		assert.Contains(t, verdict.Issues, "missing date of birth")
	})

	t.Run("normalization issues surface", func(t *testing.T) {
		rec := &models.NormalizedRecord{
			RecordID:   "3",
			Normalized: map[string]string{normalize.FieldName: "john smith"},
			Issues: []models.FieldIssue{
				{Field: normalize.FieldDOB, RawValue: "not-a-date", Reason: "unparseable date"},
			},
		}

		verdict, err := o.AssessQuality(ctx, rec)
		require.NoError(t, err)
		assert.Contains(t, verdict.Issues, `malformed date_of_birth: "not-a-date"`)
	})
}

func TestExtractJSON(t *testing.T) {
	t.Run("bare object", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, extractJSON(`{"a":1}`))
	})

	t.Run("fenced code block", func(t *testing.T) {
		input := "```json\n{\"a\":1}\n```"
		assert.Equal(t, `{"a":1}`, extractJSON(input))
	})

	t.Run("surrounding prose", func(t *testing.T) {
		input := `Here is my assessment: {"a":{"b":2}} hope that helps`
		assert.Equal(t, `{"a":{"b":2}}`, extractJSON(input))
	})

	t.Run("braces inside strings", func(t *testing.T) {
		input := `{"reason":"uses } inside"}`
		assert.Equal(t, input, extractJSON(input))
	})
}
