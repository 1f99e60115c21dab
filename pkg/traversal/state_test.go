package traversal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStateDone(t *testing.T) {
	tests := []struct {
		reason DoneReason
		want   bool
	}{
		{"", false},
		{DoneExhausted, true},
		{DoneExpansionExhausted, true},
		{DoneCancelled, false},
		{DoneAborted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			s := NewRunState()
			s.DoneReason = tt.reason
			assert.Equal(t, tt.want, s.Done())
		})
	}
}
