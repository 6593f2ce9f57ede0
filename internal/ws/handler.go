package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rollroom/internal/game"
	"rollroom/internal/protocol"
	"rollroom/internal/room"
)

const writeTimeout = 3 * time.Second

// Handler upgrades the connection and bridges it to the room: a writer
// goroutine drains the outbox the room writes to, the reader loop turns
// inbound frames into commands. Closing the socket is an implicit leave.
func Handler(rm *room.Room, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debugf("ws accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := game.PlayerID(uuid.NewString())
		out := make(chan protocol.ServerMessage, 16)

		select {
		case rm.Inbox() <- room.Connect{ConnID: connID, Outbox: out}:
		case <-rm.Done():
			return
		}
		defer func() {
			select {
			case rm.Inbox() <- room.Disconnect{ConnID: connID}:
			case <-rm.Done():
			}
		}()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				payload, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm protocol.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			cmd, ok := toCommand(cm)
			if !ok {
				writeError(r.Context(), conn, "unknown type")
				continue
			}

			select {
			case rm.Inbox() <- room.FromClient{ConnID: connID, Cmd: cmd}:
			case <-rm.Done():
				return
			}
		}
	}
}

func toCommand(m protocol.ClientMessage) (game.Command, bool) {
	switch m.Type {
	case protocol.MsgJoin:
		return game.Command{Type: game.CmdJoin, Name: m.Name}, true
	case protocol.MsgRollSubmit:
		return game.Command{
			Type:     game.CmdSubmitRoll,
			Result:   m.Result,
			DiceType: m.DiceType,
			Quantity: m.Quantity,
		}, true
	case protocol.MsgRollBegin:
		return game.Command{Type: game.CmdBeginRoll}, true
	case protocol.MsgRollAnimDone:
		return game.Command{Type: game.CmdAnimationDone}, true
	case protocol.MsgDiceType:
		return game.Command{Type: game.CmdChangeDiceType, DiceType: m.DiceType}, true
	case protocol.MsgDiceQuantity:
		return game.Command{Type: game.CmdChangeDiceQuantity, Quantity: m.Quantity}, true
	case protocol.MsgSyncToggle:
		return game.Command{Type: game.CmdToggleSync}, true
	case protocol.MsgTurnNext:
		return game.Command{Type: game.CmdNextTurn}, true
	case protocol.MsgChatSend:
		return game.Command{Type: game.CmdChat, Text: m.Message}, true
	default:
		return game.Command{}, false
	}
}

// writeError answers a malformed frame directly on the socket; the room's
// outbox is reserved for the room goroutine.
func writeError(ctx context.Context, conn *websocket.Conn, reason string) {
	payload, _ := json.Marshal(protocol.ServerMessage{
		Type:  protocol.MsgError,
		Error: reason,
	})
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}
