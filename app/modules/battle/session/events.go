package battlesession

import (
	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

// EventType tags the kind of session event delivered to listeners.
type EventType string

const (
	EventBattleUpdated     EventType = "battle.updated"
	EventPhaseChanged      EventType = "phase.changed"
	EventRoundUpdated      EventType = "round.updated"
	EventSubmissionUpdated EventType = "submission.updated"
	EventVoteReceived      EventType = "vote.received"
	EventReactionReceived  EventType = "reaction.received"
	EventCommentReceived   EventType = "comment.received"
	EventPresenceChanged   EventType = "presence.changed"
	EventTimerTick         EventType = "timer.tick"
)

// PhaseChange carries the old and new phase for a phase.changed event.
type PhaseChange struct {
	Old battletypes.Phase `json:"old"`
	New battletypes.Phase `json:"new"`
}

// Event is the tagged union handed to session listeners. Exactly the fields
// implied by Type are set; Aggregate is additionally set whenever the event
// caused a full reload.
type Event struct {
	Type     EventType
	BattleID battletypes.BattleID

	Battle      *battletypes.Battle
	Phase       *PhaseChange
	Round       *battletypes.Round
	Submission  *battletypes.Submission
	Vote        *battletypes.Vote
	Reaction    *battletypes.Reaction
	Comment     *battletypes.Comment
	Presence    *battleevents.PresencePayload
	Tick        *TimerTick
	Aggregate   *battletypes.Aggregate
}
