package game

import (
	"slices"
	"strings"
	"time"
)

// applyJoin registers a player for the acting connection. A repeated join
// from the same connection replaces the record with a fresh seat.
func applyJoin(s State, cmd Command) ([]Event, State, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, s, ErrInvalidName
	}
	if runes := []rune(name); len(runes) > MaxNameLength {
		name = string(runes[:MaxNameLength])
	}

	p := &Player{
		ID:           cmd.Actor,
		Name:         name,
		DiceType:     DefaultDiceType,
		DiceQuantity: DefaultDiceQuantity,
		Seq:          s.NextSeq,
		JoinedAt:     time.Now(),
	}
	// A mid-sync joiner adopts the shared settings straight away so the
	// identical-settings rule holds for every seat.
	if s.SyncMode {
		p.DiceType = s.SyncDiceType
		p.DiceQuantity = s.SyncDiceQuantity
	}

	s.NextSeq++
	s.Players[cmd.Actor] = p
	reassignGameMaster(s)

	events := []Event{
		{Type: EvtPlayersUpdated, Audience: ToAll},
		{Type: EvtTurnState, Audience: ToAll},
	}
	return events, s, nil
}

// applyLeave removes the player for a closed connection. Leaving must never
// wedge a sync round, so the departed player's pending roll is dropped and
// completion is re-evaluated; an empty registry resets the turn state
// entirely.
func applyLeave(s State, cmd Command) ([]Event, State, error) {
	if _, ok := s.Players[cmd.Actor]; !ok {
		return nil, s, nil
	}

	delete(s.Players, cmd.Actor)
	delete(s.TurnRolls, cmd.Actor)
	reassignGameMaster(s)

	events := []Event{
		{Type: EvtPlayersUpdated, Audience: ToAll},
		{Type: EvtTurnState, Audience: ToAll},
	}

	if len(s.Players) == 0 {
		s = resetTurnState(s)
		return events, s, nil
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

func applyChangeDiceType(s State, cmd Command) ([]Event, State, error) {
	p, ok := s.Players[cmd.Actor]
	if !ok {
		return nil, s, ErrPlayerNotFound
	}
	if !slices.Contains(ValidDiceTypes, cmd.DiceType) {
		return nil, s, ErrInvalidValue
	}
	if s.SyncMode && !p.IsGM {
		return nil, s, ErrUnauthorized
	}

	p.DiceType = cmd.DiceType

	events := []Event{{Type: EvtPlayersUpdated, Audience: ToAll}}
	if s.SyncMode {
		// GM change while synced becomes the shared setting for everyone.
		s.SyncDiceType = cmd.DiceType
		for _, other := range s.Players {
			other.DiceType = cmd.DiceType
		}
		events = append(events, Event{Type: EvtTurnState, Audience: ToAll})
	}
	return events, s, nil
}

func applyChangeDiceQuantity(s State, cmd Command) ([]Event, State, error) {
	p, ok := s.Players[cmd.Actor]
	if !ok {
		return nil, s, ErrPlayerNotFound
	}
	if !slices.Contains(ValidDiceQuantities, cmd.Quantity) {
		return nil, s, ErrInvalidValue
	}
	if s.SyncMode && !p.IsGM {
		return nil, s, ErrUnauthorized
	}

	p.DiceQuantity = cmd.Quantity

	events := []Event{{Type: EvtPlayersUpdated, Audience: ToAll}}
	if s.SyncMode {
		s.SyncDiceQuantity = cmd.Quantity
		for _, other := range s.Players {
			other.DiceQuantity = cmd.Quantity
		}
		events = append(events, Event{Type: EvtTurnState, Audience: ToAll})
	}
	return events, s, nil
}

// GameMaster returns the current GM, or nil when the room is empty.
func GameMaster(s State) *Player {
	var gm *Player
	for _, p := range s.Players {
		if gm == nil || p.Seq < gm.Seq {
			gm = p
		}
	}
	return gm
}

// reassignGameMaster recomputes the GM flag as a pure function of the
// current membership: the surviving player with the smallest Seq holds it.
func reassignGameMaster(s State) {
	gm := GameMaster(s)
	for _, p := range s.Players {
		p.IsGM = p == gm
	}
}
