package game

import "errors"

var ErrInvalidName = errors.New("invalid player name")
var ErrInvalidValue = errors.New("invalid dice value")
var ErrUnauthorized = errors.New("game master only")
var ErrAlreadyRolled = errors.New("already rolled this turn")
var ErrPlayerNotFound = errors.New("player not found")
var ErrInvalidResult = errors.New("invalid roll result")
var ErrNotInSync = errors.New("sync mode is not active")
var ErrUnsupportedCommand = errors.New("unsupported command")
