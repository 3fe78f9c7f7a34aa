package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"firestige.xyz/grbr/internal/core"
)

// Tail is a file that is still growing. Short reads are retried after a
// fixed backoff until the bytes exist or the context is done.
type Tail struct {
	*File
	poll time.Duration
}

// OpenTail opens path as a live source polled every poll.
func OpenTail(path string, poll time.Duration) (*Tail, error) {
	f, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Tail{File: f, poll: poll}, nil
}

func (t *Tail) ReadFull(ctx context.Context, off int64, n int) ([]byte, error) {
	waited := false
	for {
		buf, err := t.File.ReadFull(ctx, off, n)
		if err == nil {
			if waited {
				slog.Debug("live source caught up", "source", t.name, "offset", off)
			}
			return buf, nil
		}
		if !errors.Is(err, core.ErrShortRead) {
			return nil, err
		}
		if !waited {
			slog.Debug("waiting for live source", "source", t.name, "offset", off, "need", n)
			waited = true
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.poll):
		}
	}
}
