package game

import "time"

type PlayerID string

const (
	DefaultDiceType     = 20
	DefaultDiceQuantity = 1

	// MaxNameLength is the cap on player names, in runes. Longer names are
	// truncated, not rejected.
	MaxNameLength = 20
)

// ValidDiceTypes and ValidDiceQuantities are the only values accepted from
// clients, whether per-player or as shared sync settings.
var (
	ValidDiceTypes      = []int{4, 6, 8, 10, 12, 20}
	ValidDiceQuantities = []int{1, 2, 3, 4}
)

type Player struct {
	ID   PlayerID
	Name string

	// IsRolling is true between an accepted roll:begin and the matching
	// animation-complete acknowledgment.
	IsRolling bool

	// LastResult is the most recent roll total; zero before any roll and
	// after a new turn starts.
	LastResult int

	DiceType     int
	DiceQuantity int

	// Seq is a monotonic counter assigned at join. GM succession is ordered
	// by Seq alone; JoinedAt is informational.
	Seq      int64
	JoinedAt time.Time

	IsGM bool
}

// State is the whole room: the player registry plus the turn coordinator
// singleton. A single goroutine owns it; Apply is the only mutator.
type State struct {
	Players map[PlayerID]*Player
	NextSeq int64

	SyncMode         bool
	SyncDiceType     int
	SyncDiceQuantity int

	// TurnRolls holds submitted results for the current turn only, keyed by
	// player id. Entries for disconnected players are removed immediately.
	TurnRolls map[PlayerID]int

	// RoundDone is set once the current turn's results have been emitted,
	// so membership changes afterwards cannot re-announce the round.
	RoundDone bool

	Turn          int
	TurnStartedAt time.Time
}

func NewState() State {
	return State{
		Players:          make(map[PlayerID]*Player),
		SyncDiceType:     DefaultDiceType,
		SyncDiceQuantity: DefaultDiceQuantity,
		TurnRolls:        make(map[PlayerID]int),
	}
}

type CommandType string

const (
	CmdJoin               CommandType = "Join"
	CmdLeave              CommandType = "Leave"
	CmdSubmitRoll         CommandType = "SubmitRoll"
	CmdBeginRoll          CommandType = "BeginRoll"
	CmdAnimationDone      CommandType = "AnimationDone"
	CmdChangeDiceType     CommandType = "ChangeDiceType"
	CmdChangeDiceQuantity CommandType = "ChangeDiceQuantity"
	CmdToggleSync         CommandType = "ToggleSync"
	CmdNextTurn           CommandType = "NextTurn"
	CmdChat               CommandType = "Chat"
)

type Command struct {
	Type  CommandType
	Actor PlayerID

	Name     string // Join
	Result   int    // SubmitRoll
	DiceType int    // SubmitRoll, ChangeDiceType
	Quantity int    // SubmitRoll, ChangeDiceQuantity
	Text     string // Chat
}

type EventType string

const (
	EvtPlayersUpdated EventType = "PlayersUpdated"
	EvtTurnState      EventType = "TurnState"
	EvtPlayerRolling  EventType = "PlayerRolling"
	EvtRollAccepted   EventType = "RollAccepted"
	EvtRoundComplete  EventType = "RoundComplete"
	EvtChatMessage    EventType = "ChatMessage"
)

// Audience tells the broadcast layer who should receive an event. Errors
// never become events; they go back to the caller alone.
type Audience int

const (
	ToAll Audience = iota
	ToOthers // everyone except the acting connection
)

type Event struct {
	Type     EventType
	Audience Audience
	Actor    PlayerID

	Name     string
	Result   int
	DiceType int
	Quantity int
	Text     string

	Round *RoundResult
}

type Score struct {
	Name  string
	Score int
}

// RoundResult is the outcome of a completed sync turn. Winners are every
// player tied at the maximum; losers everyone strictly below it.
type RoundResult struct {
	Turn    int
	Winners []PlayerID
	Losers  []PlayerID
	Scores  map[PlayerID]Score
}
