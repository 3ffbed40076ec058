package league

import (
	"fmt"
	"time"
)

type WaiverPolicy string

const (
	WaiverPolicyRolling          WaiverPolicy = "rolling"
	WaiverPolicyReverseStandings WaiverPolicy = "reverse_standings"
)

func (p WaiverPolicy) Valid() bool {
	return p == WaiverPolicyRolling || p == WaiverPolicyReverseStandings
}

// League holds the roster and waiver rules every team in it plays under.
type League struct {
	ID           string
	Name         string
	Season       string
	RosterLimit  int
	WaiverPolicy WaiverPolicy
	// WaiverPeriod is how long a dropped player stays on the waiver wire.
	WaiverPeriod time.Duration
	CreatedAt    time.Time
}

func (l League) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("league id is required")
	}
	if l.Name == "" {
		return fmt.Errorf("league name is required")
	}
	if l.RosterLimit <= 0 {
		return fmt.Errorf("league roster limit must be > 0")
	}
	if !l.WaiverPolicy.Valid() {
		return fmt.Errorf("league waiver policy %q is not supported", l.WaiverPolicy)
	}
	if l.WaiverPeriod < 0 {
		return fmt.Errorf("league waiver period must be >= 0")
	}

	return nil
}
