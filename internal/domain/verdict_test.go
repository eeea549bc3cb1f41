package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityJSONRoundTrip(t *testing.T) {
	for _, s := range []Severity{SeverityInfo, SeverityCaution, SeverityDanger} {
		data, err := json.Marshal(s)
		require.NoError(t, err)

		var got Severity
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, s, got)
	}

	var bad Severity
	assert.Error(t, json.Unmarshal([]byte(`"catastrophic"`), &bad))
}

func TestSafetyLevelStricter(t *testing.T) {
	tests := []struct {
		name  string
		a, b  SafetyLevel
		want  SafetyLevel
	}{
		{name: "avoid beats safe", a: SafetySafe, b: SafetyAvoid, want: SafetyAvoid},
		{name: "avoid beats caution", a: SafetyAvoid, b: SafetyCaution, want: SafetyAvoid},
		{name: "caution beats safe", a: SafetyCaution, b: SafetySafe, want: SafetyCaution},
		{name: "equal levels", a: SafetyCaution, b: SafetyCaution, want: SafetyCaution},
		{name: "unknown level never relaxes", a: SafetyAvoid, b: SafetyLevel("fine"), want: SafetyAvoid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Stricter(tt.b))
		})
	}
}

func TestSafetyLevelValid(t *testing.T) {
	assert.True(t, SafetySafe.Valid())
	assert.True(t, SafetyCaution.Valid())
	assert.True(t, SafetyAvoid.Valid())
	assert.False(t, SafetyLevel("").Valid())
	assert.False(t, SafetyLevel("fine").Valid())
}

func TestSafetyFromSeverity(t *testing.T) {
	assert.Equal(t, SafetySafe, SafetyFromSeverity(0))
	assert.Equal(t, SafetySafe, SafetyFromSeverity(SeverityInfo))
	assert.Equal(t, SafetyCaution, SafetyFromSeverity(SeverityCaution))
	assert.Equal(t, SafetyAvoid, SafetyFromSeverity(SeverityDanger))
}

func TestSortFlagsStable(t *testing.T) {
	flags := []Flag{
		{NutrientKey: "a", Severity: SeverityInfo},
		{NutrientKey: "b", Severity: SeverityDanger},
		{NutrientKey: "c", Severity: SeverityCaution},
		{NutrientKey: "d", Severity: SeverityDanger},
	}

	sorted := SortFlags(flags)
	require.Len(t, sorted, 4)
	assert.Equal(t, "b", sorted[0].NutrientKey)
	assert.Equal(t, "d", sorted[1].NutrientKey, "equal severities keep evaluation order")
	assert.Equal(t, "c", sorted[2].NutrientKey)
	assert.Equal(t, "a", sorted[3].NutrientKey)

	// Input untouched.
	assert.Equal(t, "a", flags[0].NutrientKey)
}

func TestMaxSeverity(t *testing.T) {
	assert.Equal(t, Severity(0), MaxSeverity(nil))
	assert.Equal(t, SeverityDanger, MaxSeverity([]Flag{
		{Severity: SeverityCaution},
		{Severity: SeverityDanger},
		{Severity: SeverityInfo},
	}))
}

func TestFallbackRationale(t *testing.T) {
	flags := []Flag{
		{NutrientKey: "sodium_mg", Severity: SeverityDanger, Reason: "sodium is 600 mg per serving, above the 400 mg limit monitored for hypertension"},
		{NutrientKey: "sugars_g", Severity: SeverityCaution, Reason: "sugars reading is low confidence; it is monitored for diabetes."},
	}

	text := FallbackRationale(SafetyAvoid, flags)
	assert.Contains(t, text, "conflicts with your health profile")
	assert.Contains(t, text, "DANGER: sodium is 600 mg")
	assert.Contains(t, text, "CAUTION: sugars reading")

	safe := FallbackRationale(SafetySafe, nil)
	assert.Contains(t, safe, "No conflicts")

	caution := FallbackRationale(SafetyCaution, flags[1:])
	assert.Contains(t, caution, "warrants caution")
}
