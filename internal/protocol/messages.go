// Package protocol defines the JSON messages exchanged over the room
// WebSocket. One object per text frame, discriminated by "type".
//
// Client -> Server:
//
//	join                 { name }
//	roll:submit          { result, diceType, quantity }
//	roll:begin           {}
//	roll:animationDone   {}
//	dice:typeChanged     { diceType }
//	dice:quantityChanged { quantity }
//	sync:toggle          {}
//	turn:next            {}
//	chat:send            { message }
//
// Server -> Client:
//
//	players:update  { players }   full snapshot, replace wholesale
//	turn:state      { turn }
//	player:rolling  { roll }      everyone except the roller
//	roll:broadcast  { roll }      everyone except the submitter
//	round:complete  { round }
//	chat:message    { chat }
//	error           { error }     originating connection only
package protocol

// Client message types.
const (
	MsgJoin         = "join"
	MsgRollSubmit   = "roll:submit"
	MsgRollBegin    = "roll:begin"
	MsgRollAnimDone = "roll:animationDone"
	MsgDiceType     = "dice:typeChanged"
	MsgDiceQuantity = "dice:quantityChanged"
	MsgSyncToggle   = "sync:toggle"
	MsgTurnNext     = "turn:next"
	MsgChatSend     = "chat:send"
)

// Server message types.
const (
	MsgPlayersUpdate = "players:update"
	MsgTurnState     = "turn:state"
	MsgPlayerRolling = "player:rolling"
	MsgRollBroadcast = "roll:broadcast"
	MsgRoundComplete = "round:complete"
	MsgChatMessage   = "chat:message"
	MsgError         = "error"
)

type ClientMessage struct {
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	Result   int    `json:"result,omitempty"`
	DiceType int    `json:"diceType,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
	Message  string `json:"message,omitempty"`
}

type PlayerInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsRolling    bool   `json:"isRolling"`
	LastResult   int    `json:"lastResult,omitempty"`
	DiceType     int    `json:"diceType"`
	DiceQuantity int    `json:"diceQuantity"`
	IsGM         bool   `json:"isGM"`
}

type TurnState struct {
	SyncMode         bool `json:"syncMode"`
	SyncDiceType     int  `json:"syncDiceType"`
	SyncDiceQuantity int  `json:"syncDiceQuantity"`
	Turn             int  `json:"turn,omitempty"`
}

type RollInfo struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Result     int    `json:"result,omitempty"`
	DiceType   int    `json:"diceType,omitempty"`
	Quantity   int    `json:"quantity,omitempty"`
}

type Score struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type RoundResult struct {
	Winners []string         `json:"winners"`
	Losers  []string         `json:"losers"`
	Scores  map[string]Score `json:"scores"`
}

type ChatInfo struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
}

type ServerMessage struct {
	Type    string       `json:"type"`
	Players []PlayerInfo `json:"players,omitempty"`
	Turn    *TurnState   `json:"turn,omitempty"`
	Roll    *RollInfo    `json:"roll,omitempty"`
	Round   *RoundResult `json:"round,omitempty"`
	Chat    *ChatInfo    `json:"chat,omitempty"`
	Error   string       `json:"error,omitempty"`
}
