// Package room implements the realtime layer: the websocket hub, the
// connection pumps, and the three room kinds (lobby, game, replay).
// Every room is a single-writer actor. One goroutine owns its state and
// consumes joins, leaves, client messages and timer firings in order, so
// room logic never needs locks. Two rooms progress independently.
package room

import (
	"context"
	"sync"

	"github.com/JTTrickZ/hexgame-main/internal/shared/errors"
)

// Kind distinguishes the three room behaviors behind one registry.
type Kind string

const (
	KindLobby  Kind = "lobby"
	KindGame   Kind = "game"
	KindReplay Kind = "replay"
)

// Room is one addressable actor in the hub registry.
type Room interface {
	ID() string
	Kind() Kind

	// Join admits a connection, synchronously: the actor processes the
	// request and the error (nil on success) reports the admission
	// decision. Join must not be called again for the same Sender.
	Join(s Sender) error

	// HandleMessage forwards one decoded frame into the actor's inbox,
	// preserving per-connection order.
	HandleMessage(s Sender, env Envelope)

	// HandleDisconnect reports that the sender's connection is gone.
	// Stale calls (an evicted session) are ignored by the actor.
	HandleDisconnect(s Sender)

	// Run executes the actor loop until the context ends or the room
	// disposes itself.
	Run(ctx context.Context)

	// Close asks the actor to shut down. It does not wait.
	Close()
}

// inboxSize bounds how many pending events a room can hold before
// producers block. Rooms drain quickly, so backpressure here is rare and
// harmless: it only slows the offending connection's read loop.
const inboxSize = 256

// roomEvent is one unit of work for a room actor.
type roomEvent struct {
	join  *joinRequest
	leave Sender
	msg   *clientMessage
}

type joinRequest struct {
	sender Sender
	reply  chan error
}

type clientMessage struct {
	sender Sender
	env    Envelope
}

// actor is the inbox plumbing every room kind embeds. The embedding room
// runs the loop that consumes inbox and must close done when it exits.
type actor struct {
	inbox chan roomEvent
	stop  chan struct{}
	done  chan struct{}

	stopOnce sync.Once
}

func newActor() actor {
	return actor{
		inbox: make(chan roomEvent, inboxSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Join posts an admission request and waits for the actor's verdict.
func (a *actor) Join(s Sender) error {
	req := &joinRequest{sender: s, reply: make(chan error, 1)}
	select {
	case a.inbox <- roomEvent{join: req}:
	case <-a.done:
		return errors.Gone("room closed")
	}
	select {
	case err := <-req.reply:
		return err
	case <-a.done:
		return errors.Gone("room closed")
	}
}

func (a *actor) HandleMessage(s Sender, env Envelope) {
	select {
	case a.inbox <- roomEvent{msg: &clientMessage{sender: s, env: env}}:
	case <-a.done:
	}
}

func (a *actor) HandleDisconnect(s Sender) {
	select {
	case a.inbox <- roomEvent{leave: s}:
	case <-a.done:
	}
}

func (a *actor) Close() {
	a.stopOnce.Do(func() {
		close(a.stop)
	})
}
