package playback

import (
	"fmt"

	"github.com/desertthunder/hitster/internal/models"
)

// Update is a progress event of one playback attempt.
type Update struct {
	RequestID string
	Phase     Phase
	Ref       models.TrackRef
	Message   string
	Err       error // set on [Failed]
}

// Phase is a step of a playback attempt.
type Phase int

const (
	Queued Phase = iota
	Activate
	Transfer
	Start
	Playing
	Failed
)

func (p Phase) String() string {
	switch p {
	case Queued:
		return "queued"
	case Activate:
		return "activate"
	case Transfer:
		return "transfer"
	case Start:
		return "start"
	case Playing:
		return "playing"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

func queuedUpdate(t *Ticket, depth int) Update {
	return Update{
		RequestID: t.ID,
		Phase:     Queued,
		Ref:       t.Ref,
		Message:   fmt.Sprintf("Queued %s (%d ahead)", t.Ref.ID(), depth),
	}
}

func activateUpdate(t *Ticket) Update {
	return Update{RequestID: t.ID, Phase: Activate, Ref: t.Ref, Message: "Activating player..."}
}

func transferUpdate(t *Ticket, deviceID string) Update {
	return Update{
		RequestID: t.ID,
		Phase:     Transfer,
		Ref:       t.Ref,
		Message:   fmt.Sprintf("Transferring playback to %s...", deviceID),
	}
}

func startUpdate(t *Ticket) Update {
	return Update{
		RequestID: t.ID,
		Phase:     Start,
		Ref:       t.Ref,
		Message:   fmt.Sprintf("Starting %s...", t.Ref),
	}
}

func playingUpdate(t *Ticket) Update {
	return Update{RequestID: t.ID, Phase: Playing, Ref: t.Ref, Message: StatusPlaying}
}

func failedUpdate(t *Ticket, msg string, err error) Update {
	return Update{RequestID: t.ID, Phase: Failed, Ref: t.Ref, Message: msg, Err: err}
}
