package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/JTTrickZ/hexgame-main/internal/game"
)

// replayDrainDelay is how long an empty replay room lingers before it
// is disposed.
const replayDrainDelay = 60 * time.Second

// ReplayRoom replays a finished game's event log in real time. Viewers
// are anonymous: membership is keyed by session, no token is checked,
// and nothing a viewer sends mutates state.
type ReplayRoom struct {
	actor

	id        string
	gameID    string
	events    []game.Event
	logger    *slog.Logger
	onDispose func(roomID string)

	drainDelay time.Duration

	// Actor-owned state.
	viewers map[string]Sender
	playing bool
	stepC   chan int

	drainTimer *time.Timer
	drainC     <-chan time.Time
}

// NewReplayRoom normalizes the event log so the first event sits at
// offset zero; playback is scheduled against those offsets.
func NewReplayRoom(id, gameID string, events []game.Event, onDispose func(string)) *ReplayRoom {
	normalized := make([]game.Event, len(events))
	copy(normalized, events)
	if len(normalized) > 0 {
		base := normalized[0].Timestamp
		for i := range normalized {
			normalized[i].Timestamp -= base
		}
	}

	return &ReplayRoom{
		actor:      newActor(),
		id:         id,
		gameID:     gameID,
		events:     normalized,
		logger:     slog.With("component", "replay_room", "room_id", id, "game_id", gameID),
		onDispose:  onDispose,
		drainDelay: replayDrainDelay,
		viewers:    make(map[string]Sender),
	}
}

func (r *ReplayRoom) ID() string { return r.id }

func (r *ReplayRoom) Kind() Kind { return KindReplay }

func (r *ReplayRoom) Run(ctx context.Context) {
	defer close(r.done)
	defer r.stopTimers()
	if r.onDispose != nil {
		defer r.onDispose(r.id)
	}

	r.armDrain()
	r.logger.Info("Replay room running", "events", len(r.events))

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case ev := <-r.inbox:
			switch {
			case ev.join != nil:
				ev.join.reply <- r.admit(ctx, ev.join.sender)
			case ev.leave != nil:
				r.handleLeave(ev.leave)
			case ev.msg != nil:
				// Replays are one-way; nothing a viewer sends matters.
				r.logger.Debug("Ignoring viewer message", "type", ev.msg.env.Type)
			}
		case i, ok := <-r.stepC:
			if !ok {
				r.stepC = nil
				r.playing = false
				r.broadcast(newEnvelope(msgReplayEnd, nil))
				r.logger.Info("Replay finished")
				continue
			}
			r.broadcast(newEnvelope(msgReplayEvent, r.events[i]))
		case <-r.drainC:
			r.logger.Info("Replay room drained")
			return
		}
	}
}

func (r *ReplayRoom) admit(ctx context.Context, s Sender) error {
	r.viewers[s.SessionID()] = s
	r.cancelDrain()

	s.Send(newEnvelope(msgReplayInfo, replayInfoData{
		GameID:      r.gameID,
		TotalEvents: len(r.events),
	}))

	if len(r.events) > 0 && !r.playing {
		r.playing = true
		r.stepC = make(chan int)
		go r.playback(ctx, r.stepC)
		r.logger.Info("Playback started", "viewers", len(r.viewers))
	}
	return nil
}

func (r *ReplayRoom) handleLeave(s Sender) {
	if _, ok := r.viewers[s.SessionID()]; !ok {
		return
	}
	delete(r.viewers, s.SessionID())
	if len(r.viewers) == 0 {
		r.armDrain()
	}
}

// playback walks the normalized offsets in real time, handing each event
// index back to the room loop. The channel close is the end-of-replay
// signal.
func (r *ReplayRoom) playback(ctx context.Context, stepC chan<- int) {
	defer close(stepC)

	elapsed := int64(0)
	for i := range r.events {
		wait := time.Duration(r.events[i].Timestamp-elapsed) * time.Millisecond
		elapsed = r.events[i].Timestamp
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			case <-r.done:
				return
			}
		}
		select {
		case stepC <- i:
		case <-ctx.Done():
			return
		case <-r.done:
			return
		}
	}
}

func (r *ReplayRoom) broadcast(env Envelope) {
	for _, s := range r.viewers {
		s.Send(env)
	}
}

func (r *ReplayRoom) armDrain() {
	if r.drainC != nil {
		return
	}
	r.drainTimer = time.NewTimer(r.drainDelay)
	r.drainC = r.drainTimer.C
}

func (r *ReplayRoom) cancelDrain() {
	if r.drainTimer == nil {
		return
	}
	r.drainTimer.Stop()
	r.drainTimer = nil
	r.drainC = nil
}

func (r *ReplayRoom) stopTimers() {
	if r.drainTimer != nil {
		r.drainTimer.Stop()
	}
}
