package rosterevent

import (
	"context"
	"time"

	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
)

const TopicRosterChanged = "roster.changed"

// RosterChanged is emitted after a roster mutation commits. Consumers must
// tolerate duplicates.
type RosterChanged struct {
	EventID         string        `json:"event_id"`
	LeagueID        string        `json:"league_id"`
	TeamID          string        `json:"team_id"`
	Action          ledger.Action `json:"action"`
	Source          ledger.Source `json:"source"`
	AddedPlayerID   string        `json:"added_player_id,omitempty"`
	DroppedPlayerID string        `json:"dropped_player_id,omitempty"`
	ActorUserID     string        `json:"actor_user_id,omitempty"`
	LedgerEntryID   string        `json:"ledger_entry_id"`
	OccurredAt      time.Time     `json:"occurred_at"`
}

type Publisher interface {
	PublishRosterChanged(ctx context.Context, event RosterChanged) error
}
