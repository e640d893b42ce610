package bid

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sjsage522/bidsniper/internal/model"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		latest  int64
		ceiling int64
		noPrice bool
		noCeil  bool
		want    Decision
	}{
		{name: "above ceiling", latest: 120, ceiling: 100, want: Abort},
		{name: "below ceiling", latest: 80, ceiling: 100, want: Proceed},
		{name: "equal to ceiling", latest: 100, ceiling: 100, want: Proceed},
		{name: "unknown price", noPrice: true, ceiling: 100, want: Proceed},
		{name: "no ceiling", latest: 80, noCeil: true, want: Proceed},
		{name: "neither", noPrice: true, noCeil: true, want: Proceed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			latest := model.Price(tt.latest)
			if tt.noPrice {
				latest = nil
			}
			ceiling := model.Price(tt.ceiling)
			if tt.noCeil {
				ceiling = nil
			}
			assert.Equal(t, tt.want, Decide(latest, ceiling))
		})
	}
}

func TestResultOutcomeStatus(t *testing.T) {
	assert.Equal(t, model.StatusSubmitted, Result{Status: Submitted}.OutcomeStatus())
	assert.Equal(t, model.StatusAborted, Result{Status: Aborted}.OutcomeStatus())
	assert.Equal(t, model.StatusFailed, Result{Status: Failed}.OutcomeStatus())
	assert.Equal(t, "aborted", Aborted.String())
	assert.Equal(t, "abort", Abort.String())
}
