package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	policy := Policy{SoftNodeLimit: 80, HardNodeLimit: 100, SoftSizeLimit: 1000, HardSizeLimit: 5000}

	tests := []struct {
		name         string
		nodes        int
		size         int
		want         Decision
		wantWarnings int
		wantContains string
	}{
		{name: "hard node limit blocks regardless of size", nodes: 150, size: 10, want: Block, wantWarnings: 1, wantContains: "hard limit 100"},
		{name: "small request allowed", nodes: 50, size: 200, want: Allow},
		{name: "at limits allowed", nodes: 80, size: 1000, want: Allow},
		{name: "soft node limit warns", nodes: 90, size: 200, want: Warn, wantWarnings: 1, wantContains: "soft limit 80"},
		{name: "both soft limits accumulate", nodes: 90, size: 2000, want: Warn, wantWarnings: 2},
		{name: "hard size blocks", nodes: 10, size: 6000, want: Block, wantWarnings: 1, wantContains: "bytes"},
		{name: "hard size plus soft nodes", nodes: 90, size: 6000, want: Block, wantWarnings: 2},
		{name: "both hard", nodes: 200, size: 6000, want: Block, wantWarnings: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warnings := Check(policy, tt.nodes, tt.size)
			assert.Equal(t, tt.want, got)
			assert.Len(t, warnings, tt.wantWarnings)
			if tt.wantContains != "" {
				assert.Contains(t, warnings[0], tt.wantContains)
			}
		})
	}
}

func TestCheck_ZeroLimitsDisabled(t *testing.T) {
	got, warnings := Check(Policy{}, 1_000_000, 1_000_000)
	assert.Equal(t, Allow, got)
	assert.Empty(t, warnings)
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.NoError(t, Policy{}.Validate())
	assert.Error(t, Policy{SoftNodeLimit: 10, HardNodeLimit: 5}.Validate())
	assert.Error(t, Policy{SoftSizeLimit: 10, HardSizeLimit: 5}.Validate())
	assert.Error(t, Policy{HardNodeLimit: -1}.Validate())
}

func TestEstimateSize(t *testing.T) {
	assert.Equal(t, 0, EstimateSize())
	assert.Equal(t, 0, EstimateSize(nil))
	assert.Equal(t, len(`{"a":1}`), EstimateSize(map[string]int{"a": 1}))
	assert.Equal(t, len(`"xy"`)+len(`[1,2]`), EstimateSize("xy", []int{1, 2}))
	assert.Equal(t, 0, EstimateSize(make(chan int)))
}
