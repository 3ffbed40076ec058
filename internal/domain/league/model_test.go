package league

import (
	"testing"
	"time"
)

func TestLeague_Validate(t *testing.T) {
	valid := League{ID: "l1", Name: "Sunday Skate", RosterLimit: 2, WaiverPolicy: WaiverPolicyRolling, WaiverPeriod: 48 * time.Hour}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid league, got %v", err)
	}

	tests := map[string]func(l *League){
		"missing id":     func(l *League) { l.ID = "" },
		"zero limit":     func(l *League) { l.RosterLimit = 0 },
		"unknown policy": func(l *League) { l.WaiverPolicy = "lottery" },
		"neg period":     func(l *League) { l.WaiverPeriod = -time.Hour },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			l := valid
			mutate(&l)
			if err := l.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
