package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

type Config struct {
	Bind string
	Port int

	// RevealDelay is the pause between the last roll of a sync turn and the
	// round:complete broadcast. Zero reveals immediately.
	RevealDelay time.Duration

	// ChatLimit caps relayed chat messages, in runes.
	ChatLimit int

	// LogFile, when set, routes logs to a rotating file instead of stderr.
	LogFile string
	Verbose bool
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.RevealDelay < 0 {
		return errors.New("reveal-delay must not be negative")
	}
	if c.ChatLimit < 1 {
		return errors.New("chat-limit must be at least 1")
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}
