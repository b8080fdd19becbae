package main

import (
	"context"
	"encoding/json"
	"sync"

	"favorsweb/internal/domain"
	"favorsweb/internal/poll"
)

// emit writes one compact JSON value per line; used by streaming commands.
func (a *app) emit(v any) error {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	return json.NewEncoder(a.stdout).Encode(v)
}

// stdinLineChan feeds stdin lines to a channel until EOF.
func (a *app) stdinLineChan() <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		for {
			line, err := a.readLine("")
			if err != nil {
				return
			}
			ch <- line
		}
	}()
	return ch
}

// watchMessages streams a conversation's new messages. Lines typed on stdin
// are sent to it. It ends when ctx is done, after -for elapses, or on stdin
// EOF when no -for was given.
func watchMessages(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "messages watch")
	forDur := fs.Duration("for", 0, "stop after this long (0 runs until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := idArg(fs.Args(), 0, "conversation id")
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		seen = map[int64]bool{}
	)
	thread := poll.Messages(a.client.Messaging, id, a.cfg.PollInterval, func(msgs []domain.Message) {
		mu.Lock()
		defer mu.Unlock()
		for _, m := range msgs {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			_ = a.emit(m)
		}
	})
	thread.Logger = a.logger

	if err := thread.Start(ctx); err != nil {
		thread.Stop()
		return err
	}
	defer thread.Stop()

	done := untilDone(ctx, *forDur)
	input := a.stdinLineChan()
	for {
		select {
		case <-done:
			return nil
		case line, ok := <-input:
			if !ok {
				if *forDur <= 0 {
					return nil
				}
				input = nil
				continue
			}
			if _, err := thread.SendAndRefresh(ctx, line); err != nil {
				a.logger.Warn("send failed", "conversation_id", id, "err", err)
			}
		}
	}
}

type unreadEvent struct {
	Unread int `json:"unread"`
}

// watchNotifications prints the unread count each time it changes.
func watchNotifications(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "notifications watch")
	forDur := fs.Duration("for", 0, "stop after this long (0 runs until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	last := -1
	p := poll.Notifications(a.client.Notifications, a.cfg.PollInterval, func(ns []domain.Notification) {
		if n := domain.UnreadCount(ns); n != last {
			last = n
			_ = a.emit(unreadEvent{Unread: n})
		}
	})
	p.Logger = a.logger

	if err := p.Start(ctx); err != nil {
		p.Stop()
		return err
	}
	defer p.Stop()

	<-untilDone(ctx, *forDur)
	return nil
}
