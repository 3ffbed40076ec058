package waiver

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrDuplicateClaim  = errors.New("identical pending claim exists")
	ErrClaimNotFound   = errors.New("waiver claim not found")
	ErrClaimNotPending = errors.New("waiver claim already processed")
	ErrPlayerOnWaivers = errors.New("player is on waivers")
	ErrInvalidPriority = errors.New("waiver priorities are not contiguous")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

func (s Status) Terminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

// Claim is a request to add a player through the waiver wire. A claim leaves
// pending exactly once and is immutable afterwards.
type Claim struct {
	ID            string
	LeagueID      string
	TeamID        string
	AddPlayerID   string
	DropPlayerID  string
	Status        Status
	FailureReason string
	// Priority is the team's rank at read time. Not persisted on the claim.
	Priority    int
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

func (c Claim) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("claim id is required")
	}
	if c.LeagueID == "" || c.TeamID == "" {
		return fmt.Errorf("claim league and team are required")
	}
	if c.AddPlayerID == "" {
		return fmt.Errorf("claim add player is required")
	}
	if c.AddPlayerID == c.DropPlayerID {
		return fmt.Errorf("claim cannot add and drop the same player")
	}
	return nil
}

// SameRequest reports whether two claims ask for the same transaction.
func (c Claim) SameRequest(other Claim) bool {
	return c.LeagueID == other.LeagueID &&
		c.TeamID == other.TeamID &&
		c.AddPlayerID == other.AddPlayerID &&
		c.DropPlayerID == other.DropPlayerID
}

// Resolve moves a pending claim to its terminal state. A nil engineErr
// succeeds; otherwise the error text becomes the failure reason.
func (c Claim) Resolve(engineErr error, at time.Time) (Claim, error) {
	if c.Status != StatusPending {
		return Claim{}, fmt.Errorf("%w: %s is %s", ErrClaimNotPending, c.ID, c.Status)
	}
	processed := at
	c.ProcessedAt = &processed
	if engineErr == nil {
		c.Status = StatusSuccessful
		c.FailureReason = ""
		return c, nil
	}
	c.Status = StatusFailed
	c.FailureReason = engineErr.Error()
	return c, nil
}

// LedgerReason tags the ledger entry written when the claim's move is
// applied. A batch that finds it knows the move already committed.
func (c Claim) LedgerReason() string {
	return "waiver claim " + c.ID
}

// Priority is a team's place in the waiver order of its league.
type Priority struct {
	LeagueID string
	TeamID   string
	Rank     int
}

// WireEntry marks a recently dropped player who can only be added by claim
// until ClearsAt.
type WireEntry struct {
	LeagueID        string
	PlayerID        string
	DroppedByTeamID string
	ClearsAt        time.Time
}

func (w WireEntry) Active(now time.Time) bool {
	return now.Before(w.ClearsAt)
}

// Outcome is the per-claim result of a batch run.
type Outcome struct {
	ClaimID       string
	TeamID        string
	AddPlayerID   string
	DropPlayerID  string
	Status        Status
	FailureReason string
}

type ClaimFilter struct {
	LeagueID string
	TeamID   string
	Status   Status
	Limit    int
}
