package battlehandlers

import (
	"github.com/ThreeDotsLabs/watermill/message"
)

// Handlers consume lifecycle and change-feed events off the bus. They back
// the server-side half of deadline enforcement and the audit trail.
type Handlers interface {
	HandleBattleAccepted(msg *message.Message) error
	HandleRoundChanged(msg *message.Message) error
	HandleBattleCompleted(msg *message.Message) error
	HandleRoundTimedOut(msg *message.Message) error
}
