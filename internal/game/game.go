package game

// Apply runs one command against the room state and returns the events to
// broadcast. Commands either fully apply or fully no-op: on error the
// returned state is unchanged and no events are produced.
//
// Apply is only safe under a single writer; the room actor serializes all
// calls.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdJoin:
		return applyJoin(s, cmd)
	case CmdLeave:
		return applyLeave(s, cmd)
	case CmdSubmitRoll:
		return applySubmitRoll(s, cmd)
	case CmdBeginRoll:
		return applyBeginRoll(s, cmd)
	case CmdAnimationDone:
		return applyAnimationDone(s, cmd)
	case CmdChangeDiceType:
		return applyChangeDiceType(s, cmd)
	case CmdChangeDiceQuantity:
		return applyChangeDiceQuantity(s, cmd)
	case CmdToggleSync:
		return applyToggleSync(s, cmd)
	case CmdNextTurn:
		return applyNextTurn(s, cmd)
	case CmdChat:
		return applyChat(s, cmd)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}
