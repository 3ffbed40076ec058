package httpapi

import (
	"sort"
	"time"

	"github.com/riskibarqy/fantasy-roster/internal/domain/jobscheduler"
	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/domain/snapshot"
	"github.com/riskibarqy/fantasy-roster/internal/domain/waiver"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

type rosterPlayerDTO struct {
	PlayerID string `json:"player_id"`
	Status   string `json:"status"`
	Slot     string `json:"slot,omitempty"`
}

type rosterDTO struct {
	LeagueID  string            `json:"league_id"`
	TeamID    string            `json:"team_id"`
	Occupancy int               `json:"occupancy"`
	Players   []rosterPlayerDTO `json:"players"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

type rosterMoveDTO struct {
	AppliedAdd    string    `json:"applied_add"`
	AppliedDrop   string    `json:"applied_drop,omitempty"`
	LedgerEntryID string    `json:"ledger_entry_id"`
	Roster        rosterDTO `json:"roster"`
}

type ledgerEntryDTO struct {
	ID              string `json:"id"`
	Seq             int64  `json:"seq"`
	Action          string `json:"action"`
	Source          string `json:"source"`
	AddedPlayerID   string `json:"added_player_id,omitempty"`
	AddedStatus     string `json:"added_status,omitempty"`
	AddedSlot       string `json:"added_slot,omitempty"`
	DroppedPlayerID string `json:"dropped_player_id,omitempty"`
	ActorUserID     string `json:"actor_user_id,omitempty"`
	Reason          string `json:"reason,omitempty"`
	MatchupID       string `json:"matchup_id,omitempty"`
	Day             string `json:"day,omitempty"`
	CreatedAt       string `json:"created_at"`
}

type waiverClaimDTO struct {
	ID            string `json:"id"`
	LeagueID      string `json:"league_id"`
	TeamID        string `json:"team_id"`
	AddPlayerID   string `json:"add_player_id"`
	DropPlayerID  string `json:"drop_player_id,omitempty"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	Priority      int    `json:"priority,omitempty"`
	CreatedAt     string `json:"created_at"`
	ProcessedAt   string `json:"processed_at,omitempty"`
}

type waiverPriorityDTO struct {
	TeamID string `json:"team_id"`
	Rank   int    `json:"rank"`
}

type snapshotRowDTO struct {
	PlayerID string `json:"player_id"`
	Status   string `json:"status"`
	Slot     string `json:"slot,omitempty"`
	Locked   bool   `json:"locked"`
}

type dailySnapshotDTO struct {
	LeagueID  string           `json:"league_id"`
	TeamID    string           `json:"team_id"`
	MatchupID string           `json:"matchup_id"`
	Day       string           `json:"day"`
	Locked    bool             `json:"locked"`
	Rows      []snapshotRowDTO `json:"rows"`
}

type rosterChangeDTO struct {
	PlayerID string           `json:"player_id"`
	Before   *rosterPlayerDTO `json:"before,omitempty"`
	After    *rosterPlayerDTO `json:"after,omitempty"`
}

type reconcileDTO struct {
	LeagueID string            `json:"league_id"`
	TeamID   string            `json:"team_id"`
	DryRun   bool              `json:"dry_run"`
	Applied  bool              `json:"applied"`
	Changes  []rosterChangeDTO `json:"changes"`
}

type dispatchDTO struct {
	DispatchID   string `json:"dispatch_id"`
	JobName      string `json:"job_name"`
	LeagueID     string `json:"league_id,omitempty"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	OccurredAt   string `json:"occurred_at"`
	TraceID      string `json:"trace_id,omitempty"`
}

func formatTime(v time.Time) string {
	if v.IsZero() {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}

func rosterToDTO(entry roster.Entry) rosterDTO {
	players := make([]rosterPlayerDTO, 0, len(entry.Players))
	for playerID, assignment := range entry.Players {
		players = append(players, rosterPlayerDTO{
			PlayerID: playerID,
			Status:   string(assignment.Status),
			Slot:     string(assignment.Slot),
		})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].PlayerID < players[j].PlayerID })

	return rosterDTO{
		LeagueID:  entry.LeagueID,
		TeamID:    entry.TeamID,
		Occupancy: entry.Occupancy(),
		Players:   players,
		UpdatedAt: formatTime(entry.UpdatedAt),
	}
}

func rosterMoveToDTO(result usecase.RosterMoveResult) rosterMoveDTO {
	return rosterMoveDTO{
		AppliedAdd:    result.AppliedAdd,
		AppliedDrop:   result.AppliedDrop,
		LedgerEntryID: result.LedgerEntry.ID,
		Roster:        rosterToDTO(result.Entry),
	}
}

func ledgerEntriesToDTO(items []ledger.Entry) []ledgerEntryDTO {
	out := make([]ledgerEntryDTO, 0, len(items))
	for _, item := range items {
		dto := ledgerEntryDTO{
			ID:              item.ID,
			Seq:             item.Seq,
			Action:          string(item.Action),
			Source:          string(item.Source),
			AddedPlayerID:   item.AddedPlayerID,
			AddedStatus:     item.AddedStatus,
			AddedSlot:       item.AddedSlot,
			DroppedPlayerID: item.DroppedPlayerID,
			ActorUserID:     item.ActorUserID,
			Reason:          item.Reason,
			MatchupID:       item.MatchupID,
			CreatedAt:       formatTime(item.CreatedAt),
		}
		if item.Day != nil {
			dto.Day = item.Day.UTC().Format(time.DateOnly)
		}
		out = append(out, dto)
	}
	return out
}

func waiverClaimToDTO(item waiver.Claim) waiverClaimDTO {
	dto := waiverClaimDTO{
		ID:            item.ID,
		LeagueID:      item.LeagueID,
		TeamID:        item.TeamID,
		AddPlayerID:   item.AddPlayerID,
		DropPlayerID:  item.DropPlayerID,
		Status:        string(item.Status),
		FailureReason: item.FailureReason,
		Priority:      item.Priority,
		CreatedAt:     formatTime(item.CreatedAt),
	}
	if item.ProcessedAt != nil {
		dto.ProcessedAt = formatTime(*item.ProcessedAt)
	}
	return dto
}

func waiverClaimsToDTO(items []waiver.Claim) []waiverClaimDTO {
	out := make([]waiverClaimDTO, 0, len(items))
	for _, item := range items {
		out = append(out, waiverClaimToDTO(item))
	}
	return out
}

func waiverPrioritiesToDTO(items []waiver.Priority) []waiverPriorityDTO {
	out := make([]waiverPriorityDTO, 0, len(items))
	for _, item := range items {
		out = append(out, waiverPriorityDTO{TeamID: item.TeamID, Rank: item.Rank})
	}
	return out
}

func dailySnapshotToDTO(item usecase.DailySnapshot) dailySnapshotDTO {
	rows := make([]snapshotRowDTO, 0, len(item.Rows))
	for _, row := range item.Rows {
		rows = append(rows, snapshotRowToDTO(row))
	}
	return dailySnapshotDTO{
		LeagueID:  item.LeagueID,
		TeamID:    item.TeamID,
		MatchupID: item.MatchupID,
		Day:       item.Day.UTC().Format(time.DateOnly),
		Locked:    item.Locked,
		Rows:      rows,
	}
}

func snapshotRowToDTO(row snapshot.Row) snapshotRowDTO {
	return snapshotRowDTO{
		PlayerID: row.PlayerID,
		Status:   string(row.Status),
		Slot:     string(row.Slot),
		Locked:   row.Locked,
	}
}

func assignmentToDTO(playerID string, a *roster.Assignment) *rosterPlayerDTO {
	if a == nil {
		return nil
	}
	return &rosterPlayerDTO{PlayerID: playerID, Status: string(a.Status), Slot: string(a.Slot)}
}

func reconcileToDTO(result usecase.ReconcileRosterResult) reconcileDTO {
	changes := make([]rosterChangeDTO, 0, len(result.Changes))
	for _, change := range result.Changes {
		changes = append(changes, rosterChangeDTO{
			PlayerID: change.PlayerID,
			Before:   assignmentToDTO(change.PlayerID, change.Before),
			After:    assignmentToDTO(change.PlayerID, change.After),
		})
	}
	return reconcileDTO{
		LeagueID: result.LeagueID,
		TeamID:   result.TeamID,
		DryRun:   result.DryRun,
		Applied:  result.Applied,
		Changes:  changes,
	}
}

func dispatchesToDTO(items []jobscheduler.DispatchEvent) []dispatchDTO {
	out := make([]dispatchDTO, 0, len(items))
	for _, item := range items {
		out = append(out, dispatchDTO{
			DispatchID:   item.DispatchID,
			JobName:      item.JobName,
			LeagueID:     item.LeagueID,
			Status:       string(item.Status),
			ErrorMessage: item.ErrorMessage,
			OccurredAt:   formatTime(item.OccurredAt),
			TraceID:      item.TraceID,
		})
	}
	return out
}
