package session

import (
	"context"
	"encoding/json"

	"github.com/kilianp07/flipnotify/core/logger"
	"github.com/kilianp07/flipnotify/core/model"
)

// Conn is the outbound side of a client connection. Implementations return
// flip.ErrConnectionClosed once the client is gone.
type Conn interface {
	SendFlip(ctx context.Context, f *model.FlipInstance) error
	SendMessage(ctx context.Context, text string) error
	SendCountdown(ctx context.Context, c model.Countdown) error
	PlaySound(ctx context.Context, name string) error
	// Ping sends a neutral keepalive.
	Ping(ctx context.Context) error
	Close() error
}

// Challenger asks the user to prove they are not a macro.
type Challenger interface {
	Challenge(ctx context.Context, account model.AccountInfo) error
}

// LogConn is a Conn that writes everything to a logger. It backs the
// replay command.
type LogConn struct {
	Log logger.Logger
}

func (c LogConn) SendFlip(_ context.Context, f *model.FlipInstance) error {
	b, _ := json.Marshal(f)
	c.Log.Infof("flip %s", b)
	return nil
}

func (c LogConn) SendMessage(_ context.Context, text string) error {
	c.Log.Infof("message %q", text)
	return nil
}

func (c LogConn) SendCountdown(_ context.Context, cd model.Countdown) error {
	c.Log.Infof("countdown %s%.1fs", cd.Prefix, cd.Seconds)
	return nil
}

func (c LogConn) PlaySound(_ context.Context, name string) error {
	c.Log.Debugf("sound %s", name)
	return nil
}

func (c LogConn) Ping(context.Context) error { return nil }
func (c LogConn) Close() error               { return nil }
