// Package room hosts the single shared dice room: one goroutine owns the
// game state and every mutation flows through its mailbox.
package room

import (
	"cmp"
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"rollroom/internal/game"
	"rollroom/internal/protocol"
)

type Msg interface{ isRoomMsg() }

// Connect registers a connection's outbox. It causes no game-state change;
// the player only exists once a join command arrives.
type Connect struct {
	ConnID game.PlayerID
	Outbox chan protocol.ServerMessage
}

func (Connect) isRoomMsg() {}

// Disconnect unregisters the connection and removes its player, if any.
type Disconnect struct{ ConnID game.PlayerID }

func (Disconnect) isRoomMsg() {}

type FromClient struct {
	ConnID game.PlayerID
	Cmd    game.Command
}

func (FromClient) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// GetView reflects internal state without data races; test-only.
type GetView struct {
	Reply chan View
}

func (GetView) isRoomMsg() {}

type View struct {
	NumClients int
	State      game.State
}

// revealFired is the deferred round-reveal timer going off. Stale
// generations are dropped.
type revealFired struct{ gen int }

func (revealFired) isRoomMsg() {}

type Options struct {
	// RevealDelay is the pause between "all rolled" and the round:complete
	// broadcast, so client animations can finish. Zero reveals immediately.
	RevealDelay time.Duration

	// ChatLimit caps relayed chat messages, in runes.
	ChatLimit int

	Logger *zap.SugaredLogger
}

type Room struct {
	inbox   chan Msg
	state   game.State
	clients map[game.PlayerID]chan protocol.ServerMessage
	opts    Options

	revealGen     int
	pendingReveal *protocol.ServerMessage

	lastGM game.PlayerID

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, initial game.State, opts Options) *Room {
	ctx, cancel := context.WithCancel(parent)

	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	r := &Room{
		inbox:   make(chan Msg, 64),
		state:   initial,
		clients: make(map[game.PlayerID]chan protocol.ServerMessage),
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
	}

	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done is closed once the room loop has stopped. Senders select on it so a
// mailbox send cannot block forever during shutdown.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Connect:
				r.clients[msg.ConnID] = msg.Outbox
				// Seed the new connection with the current snapshot so the
				// lobby renders before the player joins.
				r.sendTo(msg.ConnID, r.playersMessage())
				r.sendTo(msg.ConnID, r.turnMessage())

			case Disconnect:
				delete(r.clients, msg.ConnID)
				r.apply(game.Command{Type: game.CmdLeave, Actor: msg.ConnID})

			case FromClient:
				cmd := msg.Cmd
				cmd.Actor = msg.ConnID
				if cmd.Type == game.CmdChat {
					cmd.Text = clampRunes(cmd.Text, r.opts.ChatLimit)
				}
				r.apply(cmd)

			case revealFired:
				if r.pendingReveal != nil && msg.gen == r.revealGen {
					out := *r.pendingReveal
					r.pendingReveal = nil
					r.broadcast(out)
				}

			case GetView:
				msg.Reply <- View{NumClients: len(r.clients), State: r.state}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

// apply runs one command, sends a typed error back to the acting connection
// on rejection, and fans accepted events out to their audiences.
func (r *Room) apply(cmd game.Command) {
	events, newState, err := game.Apply(r.state, cmd)
	if err != nil {
		r.sendTo(cmd.Actor, protocol.ServerMessage{
			Type:  protocol.MsgError,
			Error: err.Error(),
		})
		return
	}
	r.state = newState

	if len(events) > 0 {
		r.logTransition(cmd)
	}

	// Anything that changes the turn, or empties the room, invalidates a
	// deferred reveal for the previous turn.
	if cmd.Type == game.CmdToggleSync || cmd.Type == game.CmdNextTurn || len(r.state.Players) == 0 {
		r.pendingReveal = nil
	}

	for _, ev := range events {
		r.dispatch(cmd, ev)
	}
}

func (r *Room) dispatch(cmd game.Command, ev game.Event) {
	switch ev.Type {
	case game.EvtPlayersUpdated:
		r.broadcast(r.playersMessage())

	case game.EvtTurnState:
		r.broadcast(r.turnMessage())

	case game.EvtPlayerRolling:
		r.broadcastExcept(ev.Actor, protocol.ServerMessage{
			Type: protocol.MsgPlayerRolling,
			Roll: &protocol.RollInfo{
				PlayerID:   string(ev.Actor),
				PlayerName: ev.Name,
			},
		})

	case game.EvtRollAccepted:
		r.opts.Logger.Infof("%s rolled %dd%d = %d", ev.Name, ev.Quantity, ev.DiceType, ev.Result)
		r.broadcastExcept(ev.Actor, protocol.ServerMessage{
			Type: protocol.MsgRollBroadcast,
			Roll: &protocol.RollInfo{
				PlayerID:   string(ev.Actor),
				PlayerName: ev.Name,
				Result:     ev.Result,
				DiceType:   ev.DiceType,
				Quantity:   ev.Quantity,
			},
		})

	case game.EvtRoundComplete:
		r.scheduleReveal(ev.Round)

	case game.EvtChatMessage:
		r.broadcast(protocol.ServerMessage{
			Type: protocol.MsgChatMessage,
			Chat: &protocol.ChatInfo{
				PlayerID:   string(ev.Actor),
				PlayerName: ev.Name,
				Message:    ev.Text,
			},
		})
	}
}

// scheduleReveal emits the round outcome, deferred by the configured delay.
// The timer posts back into the mailbox rather than touching state from its
// own goroutine, and carries a generation so stale fires are ignored.
func (r *Room) scheduleReveal(res *game.RoundResult) {
	if res == nil {
		return
	}
	msg := roundMessage(res)
	r.opts.Logger.Infof("turn %d complete, winners: %v", res.Turn, res.Winners)

	if r.opts.RevealDelay <= 0 {
		r.broadcast(msg)
		return
	}

	r.revealGen++
	gen := r.revealGen
	r.pendingReveal = &msg

	time.AfterFunc(r.opts.RevealDelay, func() {
		select {
		case r.inbox <- revealFired{gen: gen}:
		case <-r.ctx.Done():
		}
	})
}

func (r *Room) logTransition(cmd game.Command) {
	log := r.opts.Logger

	switch cmd.Type {
	case game.CmdJoin:
		if p, ok := r.state.Players[cmd.Actor]; ok {
			log.Infof("%s joined (%d players)", p.Name, len(r.state.Players))
		}
	case game.CmdLeave:
		log.Infof("player left (%d players)", len(r.state.Players))
	case game.CmdToggleSync:
		if r.state.SyncMode {
			log.Infof("sync mode on (%dd%d)", r.state.SyncDiceQuantity, r.state.SyncDiceType)
		} else {
			log.Info("sync mode off")
		}
	case game.CmdNextTurn:
		log.Infof("turn %d started", r.state.Turn)
	}

	gm := game.GameMaster(r.state)
	switch {
	case gm == nil:
		r.lastGM = ""
	case gm.ID != r.lastGM:
		r.lastGM = gm.ID
		log.Infof("%s is now the game master", gm.Name)
	}
}

func (r *Room) playersMessage() protocol.ServerMessage {
	players := make([]*game.Player, 0, len(r.state.Players))
	for _, p := range r.state.Players {
		players = append(players, p)
	}
	slices.SortFunc(players, func(a, b *game.Player) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	infos := make([]protocol.PlayerInfo, 0, len(players))
	for _, p := range players {
		infos = append(infos, protocol.PlayerInfo{
			ID:           string(p.ID),
			Name:         p.Name,
			IsRolling:    p.IsRolling,
			LastResult:   p.LastResult,
			DiceType:     p.DiceType,
			DiceQuantity: p.DiceQuantity,
			IsGM:         p.IsGM,
		})
	}
	return protocol.ServerMessage{Type: protocol.MsgPlayersUpdate, Players: infos}
}

func (r *Room) turnMessage() protocol.ServerMessage {
	return protocol.ServerMessage{
		Type: protocol.MsgTurnState,
		Turn: &protocol.TurnState{
			SyncMode:         r.state.SyncMode,
			SyncDiceType:     r.state.SyncDiceType,
			SyncDiceQuantity: r.state.SyncDiceQuantity,
			Turn:             r.state.Turn,
		},
	}
}

func roundMessage(res *game.RoundResult) protocol.ServerMessage {
	out := protocol.RoundResult{
		Winners: make([]string, 0, len(res.Winners)),
		Losers:  make([]string, 0, len(res.Losers)),
		Scores:  make(map[string]protocol.Score, len(res.Scores)),
	}
	for _, id := range res.Winners {
		out.Winners = append(out.Winners, string(id))
	}
	for _, id := range res.Losers {
		out.Losers = append(out.Losers, string(id))
	}
	for id, sc := range res.Scores {
		out.Scores[string(id)] = protocol.Score{Name: sc.Name, Score: sc.Score}
	}
	return protocol.ServerMessage{Type: protocol.MsgRoundComplete, Round: &out}
}

func (r *Room) sendTo(id game.PlayerID, msg protocol.ServerMessage) {
	ch, ok := r.clients[id]
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		// Slow or full client; drop it.
		close(ch)
		delete(r.clients, id)
	}
}

func (r *Room) broadcast(msg protocol.ServerMessage) {
	for id, ch := range r.clients {
		select {
		case ch <- msg:
		default:
			close(ch)
			delete(r.clients, id)
		}
	}
}

func (r *Room) broadcastExcept(skip game.PlayerID, msg protocol.ServerMessage) {
	for id, ch := range r.clients {
		if id == skip {
			continue
		}
		select {
		case ch <- msg:
		default:
			close(ch)
			delete(r.clients, id)
		}
	}
}

func (r *Room) shutdown() {
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.cancel()
}

func clampRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
