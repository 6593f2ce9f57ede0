package game

import (
	"slices"
	"strings"
	"time"
)

// applyToggleSync flips sync mode. Entering sync snapshots the GM's dice
// settings as the shared settings and pushes them onto every seat; leaving
// sync discards pending rolls but lets players keep their settings.
func applyToggleSync(s State, cmd Command) ([]Event, State, error) {
	p, ok := s.Players[cmd.Actor]
	if !ok || !p.IsGM {
		return nil, s, ErrUnauthorized
	}

	s.SyncMode = !s.SyncMode
	clear(s.TurnRolls)
	s.RoundDone = false

	if s.SyncMode {
		s.SyncDiceType = p.DiceType
		s.SyncDiceQuantity = p.DiceQuantity
		s.Turn = 1
		s.TurnStartedAt = time.Now()
		for _, other := range s.Players {
			other.DiceType = s.SyncDiceType
			other.DiceQuantity = s.SyncDiceQuantity
		}
	} else {
		s.Turn = 0
		s.TurnStartedAt = time.Time{}
	}

	events := []Event{
		{Type: EvtTurnState, Audience: ToAll},
		{Type: EvtPlayersUpdated, Audience: ToAll},
	}
	return events, s, nil
}

// applySubmitRoll records a client-reported roll outcome. The total is
// trusted as long as it is a positive integer; the server never re-derives
// it from the dice settings.
func applySubmitRoll(s State, cmd Command) ([]Event, State, error) {
	p, ok := s.Players[cmd.Actor]
	if !ok {
		return nil, s, ErrPlayerNotFound
	}
	if cmd.Result <= 0 {
		return nil, s, ErrInvalidResult
	}
	if s.SyncMode {
		if _, rolled := s.TurnRolls[cmd.Actor]; rolled {
			return nil, s, ErrAlreadyRolled
		}
	}

	// Out-of-set dice values in the report don't fail the roll; the
	// player's current settings stand instead.
	diceType := p.DiceType
	if slices.Contains(ValidDiceTypes, cmd.DiceType) {
		diceType = cmd.DiceType
	}
	quantity := p.DiceQuantity
	if slices.Contains(ValidDiceQuantities, cmd.Quantity) {
		quantity = cmd.Quantity
	}

	p.IsRolling = false
	p.LastResult = cmd.Result
	p.DiceType = diceType
	p.DiceQuantity = quantity

	if s.SyncMode {
		s.TurnRolls[cmd.Actor] = cmd.Result
	}

	events := []Event{
		{
			Type:     EvtRollAccepted,
			Audience: ToOthers, // the submitter already shows it locally
			Actor:    cmd.Actor,
			Name:     p.Name,
			Result:   cmd.Result,
			DiceType: diceType,
			Quantity: quantity,
		},
		{Type: EvtPlayersUpdated, Audience: ToAll},
	}

	if s.SyncMode && !s.RoundDone && allPlayersRolled(s) {
		s.RoundDone = true
		events = append(events, Event{
			Type:     EvtRoundComplete,
			Audience: ToAll,
			Round:    roundResults(s),
		})
	}
	return events, s, nil
}

func applyBeginRoll(s State, cmd Command) ([]Event, State, error) {
	p, ok := s.Players[cmd.Actor]
	if !ok {
		return nil, s, nil
	}

	p.IsRolling = true

	events := []Event{
		{Type: EvtPlayerRolling, Audience: ToOthers, Actor: cmd.Actor, Name: p.Name},
		{Type: EvtPlayersUpdated, Audience: ToAll},
	}
	return events, s, nil
}

func applyAnimationDone(s State, cmd Command) ([]Event, State, error) {
	if p, ok := s.Players[cmd.Actor]; ok {
		p.IsRolling = false
	}
	return nil, s, nil
}

// applyNextTurn starts a fresh sync turn: pending rolls and per-player
// results are wiped so everyone may roll again.
func applyNextTurn(s State, cmd Command) ([]Event, State, error) {
	p, ok := s.Players[cmd.Actor]
	if !ok || !p.IsGM {
		return nil, s, ErrUnauthorized
	}
	if !s.SyncMode {
		return nil, s, ErrNotInSync
	}

	clear(s.TurnRolls)
	s.RoundDone = false
	s.Turn++
	s.TurnStartedAt = time.Now()
	for _, other := range s.Players {
		other.LastResult = 0
		other.IsRolling = false
	}

	events := []Event{
		{Type: EvtTurnState, Audience: ToAll},
		{Type: EvtPlayersUpdated, Audience: ToAll},
	}
	return events, s, nil
}

func applyChat(s State, cmd Command) ([]Event, State, error) {
	p, ok := s.Players[cmd.Actor]
	if !ok {
		return nil, s, ErrPlayerNotFound
	}

	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return nil, s, nil
	}

	events := []Event{
		{Type: EvtChatMessage, Audience: ToAll, Actor: cmd.Actor, Name: p.Name, Text: text},
	}
	return events, s, nil
}

// allPlayersRolled reports whether every currently-registered player has
// submitted for the current turn.
func allPlayersRolled(s State) bool {
	if len(s.Players) == 0 {
		return false
	}
	for id := range s.Players {
		if _, ok := s.TurnRolls[id]; !ok {
			return false
		}
	}
	return true
}

// roundResults scores the finished turn. Ordering inside the winner and
// loser slices is score-descending, then id, so payloads are deterministic.
func roundResults(s State) *RoundResult {
	ids := make([]PlayerID, 0, len(s.TurnRolls))
	for id := range s.TurnRolls {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}

	slices.SortFunc(ids, func(a, b PlayerID) int {
		if d := s.TurnRolls[b] - s.TurnRolls[a]; d != 0 {
			return d
		}
		return strings.Compare(string(a), string(b))
	})

	max := s.TurnRolls[ids[0]]
	res := &RoundResult{
		Turn:   s.Turn,
		Scores: make(map[PlayerID]Score, len(ids)),
	}
	for _, id := range ids {
		score := s.TurnRolls[id]
		name := string(id)
		if p, ok := s.Players[id]; ok {
			name = p.Name
		}
		res.Scores[id] = Score{Name: name, Score: score}
		if score == max {
			res.Winners = append(res.Winners, id)
		} else {
			res.Losers = append(res.Losers, id)
		}
	}
	return res
}

// resetTurnState returns the turn coordinator to its initial values. Used
// when the last player leaves.
func resetTurnState(s State) State {
	s.SyncMode = false
	s.SyncDiceType = DefaultDiceType
	s.SyncDiceQuantity = DefaultDiceQuantity
	clear(s.TurnRolls)
	s.RoundDone = false
	s.Turn = 0
	s.TurnStartedAt = time.Time{}
	return s
}
