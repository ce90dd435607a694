package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sealbot/sealbot/internal/cursor"
	"github.com/sealbot/sealbot/internal/playerok"
)

// Gateway is the slice of the remote API the diff engine reads from.
// *playerok.Client satisfies it.
type Gateway interface {
	Chats(ctx context.Context, count int, filter playerok.ChatsFilter, afterCursor string) (*playerok.ChatList, error)
	ChatMessages(ctx context.Context, chatID string, count int) (*playerok.MessageList, error)
}

// Options tunes the polling loop. Zero values get the defaults the remote
// tolerates.
type Options struct {
	PollInterval   time.Duration // between ticks; keep >= ~4s to avoid rate limiting
	PageSize       int           // chats and messages per page
	NewChatDelay   time.Duration // settle delay before first history fetch of an unseen chat
	RepollAttempts int           // bounded re-polls for the new-chat consistency gap
	RepollDelay    time.Duration // base re-poll delay, +1s per extra attempt
}

func (o *Options) fill() {
	if o.PollInterval <= 0 {
		o.PollInterval = 4 * time.Second
	}
	if o.PageSize <= 0 {
		o.PageSize = 24
	}
	if o.NewChatDelay < 0 {
		o.NewChatDelay = 0
	} else if o.NewChatDelay == 0 {
		o.NewChatDelay = 3 * time.Second
	}
	if o.RepollAttempts <= 0 {
		o.RepollAttempts = 3
	}
	if o.RepollDelay <= 0 {
		o.RepollDelay = 4 * time.Second
	}
}

// ErrAlreadyRunning is returned by Run when the listener was started twice.
var ErrAlreadyRunning = errors.New("listener: already running")

// Listener is the polling diff engine. One cooperative loop, one tick at a
// time; events are handed to the consumer through an unbuffered channel, so
// consumption blocks the tick and ordering is preserved.
type Listener struct {
	gateway Gateway
	cursors cursor.Store
	opts    Options
	log     *slog.Logger

	events  chan Event
	running bool

	startup  time.Time
	prev     *playerok.ChatList
	failures int

	// replaceable in tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a listener over the given gateway and cursor store.
func New(gateway Gateway, store cursor.Store, opts Options) *Listener {
	opts.fill()
	return &Listener{
		gateway: gateway,
		cursors: store,
		opts:    opts,
		log:     slog.Default().With("component", "listener"),
		events:  make(chan Event),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Events is the ordered stream of domain events. Closed when Run returns.
func (l *Listener) Events() <-chan Event { return l.events }

// Run polls until ctx is cancelled. The first tick only acknowledges the
// existing chat set; later ticks diff snapshots and emit classified events.
// Errors inside a tick are logged and absorbed; Run only returns on
// cancellation or a second Run call.
func (l *Listener) Run(ctx context.Context) error {
	if l.running {
		return ErrAlreadyRunning
	}
	l.running = true
	defer close(l.events)

	l.startup = l.now().UTC()
	l.log.Info("event listener started", "startup", l.startup.Format(time.RFC3339))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if l.failures >= 3 {
			pause := time.Duration(l.failures-2) * 10 * time.Second
			l.log.Warn("consecutive tick failures, pausing", "failures", l.failures, "pause", pause)
			if l.failures > 7 {
				l.log.Warn("check the account token and proxy, a restart may be needed")
			}
			if err := l.sleep(ctx, pause); err != nil {
				return err
			}
		}

		if err := l.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.failures++
			l.log.Warn("tick failed", "err", err, "failures", l.failures)
		} else {
			l.failures = 0
		}

		if err := l.sleep(ctx, l.opts.PollInterval); err != nil {
			return err
		}
	}
}

func (l *Listener) tick(ctx context.Context) error {
	snapshot, err := l.gateway.Chats(ctx, l.opts.PageSize, playerok.ChatsFilter{}, "")
	if err != nil {
		return fmt.Errorf("fetch chat snapshot: %w", err)
	}

	switch {
	case l.prev == nil:
		// First tick: acknowledge the existing chat set, no history walk.
		for i := range snapshot.Chats {
			if err := l.emit(ctx, NewChatInitialized(&snapshot.Chats[i])); err != nil {
				return err
			}
		}
		l.log.Info("chats initialized", "count", len(snapshot.Chats))
	case !snapshot.Equal(l.prev):
		if err := l.processChats(ctx, snapshot); err != nil {
			return err
		}
	}

	l.prev = snapshot
	return nil
}

// processChats walks the changed snapshot. A failure on one chat is logged
// and does not stop the others; only cancellation propagates.
func (l *Listener) processChats(ctx context.Context, snapshot *playerok.ChatList) error {
	for i := range snapshot.Chats {
		chat := &snapshot.Chats[i]
		if chat.LastMessage == nil {
			continue
		}
		if err := l.processChat(ctx, chat); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.log.Warn("chat processing failed", "chat", chat.ID, "err", err)
		}
	}
	return nil
}

func (l *Listener) processChat(ctx context.Context, chat *playerok.Chat) error {
	cur, ok := l.cursors.Get(chat.ID)
	if !ok {
		return l.processUnseenChat(ctx, chat)
	}
	if chat.LastMessage.ID == cur.MessageID {
		return nil // no new activity
	}

	page, err := l.gateway.ChatMessages(ctx, chat.ID, l.opts.PageSize)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}

	// Collect newest-first until the known message or, defensively, until a
	// timestamp older than the cursor (remote ordering anomalies).
	var fresh []playerok.Message
	for _, msg := range page.Messages {
		if msg.ID == cur.MessageID {
			break
		}
		if msg.CreatedAt.Before(cur.MessageTime) {
			break
		}
		fresh = append(fresh, msg)
	}
	if len(fresh) == 0 {
		return nil
	}

	// Chronological re-emission, oldest first.
	for i := len(fresh) - 1; i >= 0; i-- {
		msg := &fresh[i]
		if msg.CreatedAt.Before(l.startup) {
			l.log.Debug("skipping pre-startup message", "chat", chat.ID, "message", msg.ID)
			continue
		}
		if err := l.emitAll(ctx, Classify(msg, chat)); err != nil {
			return err
		}
	}

	newest := fresh[0]
	l.setCursor(chat.ID, newest.ID, newest.CreatedAt)
	l.log.Debug("chat processed", "chat", chat.ID, "messages", len(fresh), "cursor", newest.ID)
	return nil
}

// processUnseenChat handles a chat with no cursor: either a chat that
// existed before startup (seed the cursor, emit nothing) or a genuinely new
// chat, which must contain a deal-opened notice — when it does not, the
// remote is still settling and we re-poll a bounded number of times.
func (l *Listener) processUnseenChat(ctx context.Context, chat *playerok.Chat) error {
	if err := l.sleep(ctx, l.opts.NewChatDelay); err != nil {
		return err
	}

	page, err := l.gateway.ChatMessages(ctx, chat.ID, l.opts.PageSize)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}

	var fresh []playerok.Message
	hasHistory := false
	dealOpened := false
	for _, msg := range page.Messages {
		if msg.CreatedAt.Before(l.startup) {
			hasHistory = true
			continue
		}
		if opensDeal(&msg) {
			dealOpened = true
		}
		fresh = append(fresh, msg)
	}

	// Pre-existing chat with only ordinary new messages: the cursor seeds
	// silently and the next snapshot diff picks up from here.
	if !dealOpened && hasHistory {
		l.seedCursor(chat)
		return nil
	}

	if !dealOpened {
		// A brand-new chat without a deal notice is a remote consistency
		// gap; the deal usually resolves within a few seconds.
		l.log.Info("new chat has no deal notice yet, re-polling", "chat", chat.ID)
		for attempt := 0; attempt < l.opts.RepollAttempts && !dealOpened; attempt++ {
			delay := l.opts.RepollDelay + time.Duration(attempt)*time.Second
			if err := l.sleep(ctx, delay); err != nil {
				return err
			}
			page, err = l.gateway.ChatMessages(ctx, chat.ID, 10)
			if err != nil {
				return fmt.Errorf("re-poll messages: %w", err)
			}
			fresh = fresh[:0]
			for _, msg := range page.Messages {
				if msg.CreatedAt.Before(l.startup) {
					continue
				}
				if opensDeal(&msg) {
					dealOpened = true
					l.log.Info("deal notice resolved after re-poll", "chat", chat.ID, "attempt", attempt+1)
				}
				fresh = append(fresh, msg)
			}
		}
		if !dealOpened {
			l.log.Error("no deal notice found for new chat", "chat", chat.ID, "attempts", l.opts.RepollAttempts)
		}
	}

	for i := len(fresh) - 1; i >= 0; i-- {
		if err := l.emitAll(ctx, Classify(&fresh[i], chat)); err != nil {
			return err
		}
	}

	l.seedCursor(chat)
	return nil
}

func (l *Listener) seedCursor(chat *playerok.Chat) {
	l.setCursor(chat.ID, chat.LastMessage.ID, chat.LastMessage.CreatedAt)
}

func (l *Listener) setCursor(chatID, messageID string, messageTime time.Time) {
	err := l.cursors.Set(chatID, cursor.Cursor{MessageID: messageID, MessageTime: messageTime})
	if err != nil {
		l.log.Warn("cursor write failed", "chat", chatID, "err", err)
	}
}

func (l *Listener) emitAll(ctx context.Context, events []Event) error {
	for _, ev := range events {
		if err := l.emit(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (l *Listener) emit(ctx context.Context, ev Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case l.events <- ev:
		return nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
