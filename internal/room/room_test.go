package room

import (
	"context"
	"testing"
	"time"

	"rollroom/internal/game"
	"rollroom/internal/protocol"
)

// recvType drains msgs until one with the wanted type arrives, so tests
// don't depend on the exact interleaving of snapshot broadcasts.
func recvType(t *testing.T, ch <-chan protocol.ServerMessage, msgType string, within time.Duration) protocol.ServerMessage {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %q", msgType)
			}
			if msg.Type == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", msgType)
			return protocol.ServerMessage{} // unreachable
		}
	}
}

func recvNoType(t *testing.T, ch <-chan protocol.ServerMessage, msgType string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Type == msgType {
				t.Fatalf("expected no %q within %v, but got: %+v", msgType, within, msg)
			}
		case <-deadline:
			return
		}
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func newTestRoom(t *testing.T, opts Options) *Room {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, game.NewState(), opts)
}

func connect(r *Room, id game.PlayerID, buf int) chan protocol.ServerMessage {
	out := make(chan protocol.ServerMessage, buf)
	r.Inbox() <- Connect{ConnID: id, Outbox: out}
	return out
}

func TestRoom_ConnectSeedsSnapshot(t *testing.T) {
	r := newTestRoom(t, Options{})

	out := connect(r, "c1", 4)

	players := recvType(t, out, protocol.MsgPlayersUpdate, 100*time.Millisecond)
	if len(players.Players) != 0 {
		t.Fatalf("expected empty lobby snapshot, got %+v", players.Players)
	}
	turn := recvType(t, out, protocol.MsgTurnState, 100*time.Millisecond)
	if turn.Turn == nil || turn.Turn.SyncMode {
		t.Fatalf("expected sync off in initial turn state, got %+v", turn.Turn)
	}
}

func TestRoom_JoinBroadcastsToEveryone(t *testing.T) {
	r := newTestRoom(t, Options{})

	out1 := connect(r, "c1", 8)
	out2 := connect(r, "c2", 8)

	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdJoin, Name: "ann"}}

	for _, out := range []chan protocol.ServerMessage{out1, out2} {
		msg := recvType(t, out, protocol.MsgPlayersUpdate, 100*time.Millisecond)
		for len(msg.Players) == 0 {
			msg = recvType(t, out, protocol.MsgPlayersUpdate, 100*time.Millisecond)
		}
		if len(msg.Players) != 1 || msg.Players[0].Name != "ann" || !msg.Players[0].IsGM {
			t.Fatalf("expected ann as sole GM in snapshot, got %+v", msg.Players)
		}
	}
}

func TestRoom_ErrorGoesToSenderOnly(t *testing.T) {
	r := newTestRoom(t, Options{})

	out1 := connect(r, "c1", 8)
	out2 := connect(r, "c2", 8)

	// c2 never joined, so turn:next is rejected.
	r.Inbox() <- FromClient{ConnID: "c2", Cmd: game.Command{Type: game.CmdNextTurn}}

	errMsg := recvType(t, out2, protocol.MsgError, 100*time.Millisecond)
	if errMsg.Error == "" {
		t.Fatalf("expected an error payload, got %+v", errMsg)
	}
	recvNoType(t, out1, protocol.MsgError, 100*time.Millisecond)
}

func TestRoom_ChatIsBounded(t *testing.T) {
	r := newTestRoom(t, Options{ChatLimit: 5})

	out := connect(r, "c1", 8)
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdJoin, Name: "ann"}}
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdChat, Text: "0123456789"}}

	msg := recvType(t, out, protocol.MsgChatMessage, 100*time.Millisecond)
	if msg.Chat == nil || msg.Chat.Message != "01234" {
		t.Fatalf("expected truncated chat message, got %+v", msg.Chat)
	}
}

func TestRoom_RevealIsDeferred(t *testing.T) {
	r := newTestRoom(t, Options{RevealDelay: 150 * time.Millisecond})

	out := connect(r, "c1", 16)
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdJoin, Name: "ann"}}
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdToggleSync}}
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdSubmitRoll, Result: 17, DiceType: 20, Quantity: 1}}

	// Nothing during the animation window, then the result.
	recvNoType(t, out, protocol.MsgRoundComplete, 75*time.Millisecond)
	msg := recvType(t, out, protocol.MsgRoundComplete, 500*time.Millisecond)
	if msg.Round == nil || len(msg.Round.Winners) != 1 || msg.Round.Winners[0] != "c1" {
		t.Fatalf("expected c1 as sole winner, got %+v", msg.Round)
	}
	if got := msg.Round.Scores["c1"]; got.Name != "ann" || got.Score != 17 {
		t.Fatalf("unexpected score entry: %+v", got)
	}
}

func TestRoom_RevealImmediateWithoutDelay(t *testing.T) {
	r := newTestRoom(t, Options{})

	out := connect(r, "c1", 16)
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdJoin, Name: "ann"}}
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdToggleSync}}
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdSubmitRoll, Result: 3, DiceType: 20, Quantity: 1}}

	recvType(t, out, protocol.MsgRoundComplete, 100*time.Millisecond)
}

func TestRoom_RevealDiscardedWhenRoomEmpties(t *testing.T) {
	r := newTestRoom(t, Options{RevealDelay: 100 * time.Millisecond})

	// A spectator connection that never joins sticks around to observe.
	spectator := connect(r, "watch", 16)

	out := connect(r, "c1", 16)
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdJoin, Name: "ann"}}
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdToggleSync}}
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdSubmitRoll, Result: 17, DiceType: 20, Quantity: 1}}

	// The only player leaves before the timer fires; the deferred reveal
	// must be discarded.
	r.Inbox() <- Disconnect{ConnID: "c1"}
	_ = out

	recvNoType(t, spectator, protocol.MsgRoundComplete, 300*time.Millisecond)
}

func TestRoom_RevealDiscardedOnNextTurn(t *testing.T) {
	r := newTestRoom(t, Options{RevealDelay: 100 * time.Millisecond})

	out := connect(r, "c1", 32)
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdJoin, Name: "ann"}}
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdToggleSync}}
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdSubmitRoll, Result: 17, DiceType: 20, Quantity: 1}}

	// The GM advances the turn before the reveal fires.
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdNextTurn}}

	recvNoType(t, out, protocol.MsgRoundComplete, 300*time.Millisecond)
}

func TestRoom_DropSlowClient(t *testing.T) {
	r := newTestRoom(t, Options{})

	// Tiny buffer: the two-message snapshot seed overflows it.
	out := connect(r, "c1", 1)
	_ = out
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdJoin, Name: "ann"}}

	reply := make(chan View, 1)
	r.Inbox() <- GetView{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)

	if view.NumClients != 0 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", view.NumClients)
	}
	if len(view.State.Players) != 1 {
		t.Fatalf("dropping the connection must not remove the player yet; players=%d", len(view.State.Players))
	}
}

func TestRoom_DisconnectReassignsGM(t *testing.T) {
	r := newTestRoom(t, Options{})

	out1 := connect(r, "c1", 32)
	out2 := connect(r, "c2", 32)
	_ = out1

	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdJoin, Name: "ann"}}
	r.Inbox() <- FromClient{ConnID: "c2", Cmd: game.Command{Type: game.CmdJoin, Name: "ben"}}

	r.Inbox() <- Disconnect{ConnID: "c1"}

	// Drain snapshots until ben is alone and holds GM.
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		if time.Now().After(deadline) {
			t.Fatal("never saw ben promoted to GM")
		}
		msg := recvType(t, out2, protocol.MsgPlayersUpdate, 200*time.Millisecond)
		if len(msg.Players) == 1 && msg.Players[0].Name == "ben" && msg.Players[0].IsGM {
			return
		}
	}
}

func TestRoom_NoSecondRevealAfterWinnerLeaves(t *testing.T) {
	r := newTestRoom(t, Options{})

	out1 := connect(r, "c1", 32)
	out2 := connect(r, "c2", 32)
	_ = out2

	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdJoin, Name: "ann"}}
	r.Inbox() <- FromClient{ConnID: "c2", Cmd: game.Command{Type: game.CmdJoin, Name: "ben"}}
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdToggleSync}}
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdSubmitRoll, Result: 12, DiceType: 20, Quantity: 1}}
	r.Inbox() <- FromClient{ConnID: "c2", Cmd: game.Command{Type: game.CmdSubmitRoll, Result: 20, DiceType: 20, Quantity: 1}}

	msg := recvType(t, out1, protocol.MsgRoundComplete, 200*time.Millisecond)
	if len(msg.Round.Winners) != 1 || msg.Round.Winners[0] != "c2" {
		t.Fatalf("expected c2 as winner, got %+v", msg.Round)
	}

	// The winner leaving after the reveal must not re-announce the round
	// with the remaining player promoted to winner.
	r.Inbox() <- Disconnect{ConnID: "c2"}
	recvNoType(t, out1, protocol.MsgRoundComplete, 200*time.Millisecond)
}

func TestRoom_SnapshotOrderedByJoinOrder(t *testing.T) {
	r := newTestRoom(t, Options{})

	out := connect(r, "c1", 64)
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdJoin, Name: "ann"}}
	r.Inbox() <- FromClient{ConnID: "c2", Cmd: game.Command{Type: game.CmdJoin, Name: "ben"}}
	r.Inbox() <- FromClient{ConnID: "c3", Cmd: game.Command{Type: game.CmdJoin, Name: "cam"}}

	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		if time.Now().After(deadline) {
			t.Fatal("never saw the three-player snapshot")
		}
		msg := recvType(t, out, protocol.MsgPlayersUpdate, 200*time.Millisecond)
		if len(msg.Players) != 3 {
			continue
		}
		for i, want := range []string{"ann", "ben", "cam"} {
			if msg.Players[i].Name != want {
				t.Fatalf("snapshot out of join order: %+v", msg.Players)
			}
		}
		return
	}
}

func TestRoom_DoneClosesAfterShutdown(t *testing.T) {
	r := newTestRoom(t, Options{})

	r.Inbox() <- Shutdown{}

	select {
	case <-r.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Done was not closed after shutdown")
	}

	// A post-shutdown send must not block when guarded by Done.
	select {
	case r.Inbox() <- Disconnect{ConnID: "c1"}:
	case <-r.Done():
	}
}

func TestRoom_ShutdownClosesOutboxes(t *testing.T) {
	r := newTestRoom(t, Options{})

	out := connect(r, "c1", 4)
	r.Inbox() <- Shutdown{}

	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("outbox was not closed on shutdown")
		}
	}
}
