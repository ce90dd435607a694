package listener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sealbot/sealbot/internal/cursor"
	"github.com/sealbot/sealbot/internal/playerok"
)

var startupAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// at offsets the fixed startup instant; negative offsets are history.
func at(sec int) time.Time { return startupAt.Add(time.Duration(sec) * time.Second) }

func message(id string, created time.Time, text string) playerok.Message {
	return playerok.Message{ID: id, Text: text, CreatedAt: created}
}

func chatWith(id string, last playerok.Message) playerok.Chat {
	return playerok.Chat{ID: id, LastMessage: &last}
}

func snapshot(chats ...playerok.Chat) *playerok.ChatList {
	return &playerok.ChatList{Chats: chats}
}

// fakeGateway replays scripted snapshots and message pages. The last entry
// of each script repeats once exhausted. failChats makes the next N Chats
// calls error; msgErrs fails ChatMessages for specific chats.
type fakeGateway struct {
	snapshots []*playerok.ChatList
	snapIdx   int
	failChats int

	pages   map[string][]*playerok.MessageList
	pageIdx map[string]int
	msgErrs map[string]error

	chatCalls int
	msgCalls  map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		pages:    make(map[string][]*playerok.MessageList),
		pageIdx:  make(map[string]int),
		msgErrs:  make(map[string]error),
		msgCalls: make(map[string]int),
	}
}

func (g *fakeGateway) Chats(ctx context.Context, count int, filter playerok.ChatsFilter, after string) (*playerok.ChatList, error) {
	g.chatCalls++
	if g.failChats > 0 {
		g.failChats--
		return nil, errors.New("remote unavailable")
	}
	if len(g.snapshots) == 0 {
		return snapshot(), nil
	}
	snap := g.snapshots[g.snapIdx]
	if g.snapIdx < len(g.snapshots)-1 {
		g.snapIdx++
	}
	return snap, nil
}

func (g *fakeGateway) ChatMessages(ctx context.Context, chatID string, count int) (*playerok.MessageList, error) {
	g.msgCalls[chatID]++
	if err := g.msgErrs[chatID]; err != nil {
		return nil, err
	}
	script := g.pages[chatID]
	if len(script) == 0 {
		return &playerok.MessageList{}, nil
	}
	idx := g.pageIdx[chatID]
	if idx < len(script)-1 {
		g.pageIdx[chatID] = idx + 1
	}
	return script[idx], nil
}

func newTestListener(g Gateway, store cursor.Store) *Listener {
	l := New(g, store, Options{
		NewChatDelay:   -1,
		RepollAttempts: 2,
		RepollDelay:    time.Millisecond,
	})
	l.now = func() time.Time { return startupAt }
	l.startup = startupAt
	l.sleep = func(context.Context, time.Duration) error { return nil }
	l.events = make(chan Event, 64)
	return l
}

func drainEvents(l *Listener) []Event {
	var out []Event
	for {
		select {
		case ev := <-l.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestFirstTickInitializesChats(t *testing.T) {
	g := newFakeGateway()
	g.snapshots = []*playerok.ChatList{
		snapshot(
			chatWith("c1", message("m1", at(-60), "old")),
			chatWith("c2", message("m2", at(-30), "older")),
		),
	}

	l := newTestListener(g, cursor.NewMemoryStore())
	ctx := context.Background()

	if err := l.tick(ctx); err != nil {
		t.Fatal(err)
	}
	events := drainEvents(l)
	if got := eventKinds(events); !kindsEqual(got, []Kind{KindChatInitialized, KindChatInitialized}) {
		t.Fatalf("first tick events = %v", got)
	}
	if events[0].ChatID() != "c1" || events[1].ChatID() != "c2" {
		t.Errorf("chat order = %q, %q", events[0].ChatID(), events[1].ChatID())
	}

	// Unchanged snapshot: nothing new and no history fetch.
	if err := l.tick(ctx); err != nil {
		t.Fatal(err)
	}
	if events := drainEvents(l); len(events) != 0 {
		t.Errorf("unchanged snapshot produced %v", eventKinds(events))
	}
	if g.msgCalls["c1"] != 0 || g.msgCalls["c2"] != 0 {
		t.Error("unchanged snapshot must not fetch chat history")
	}
}

func TestKnownChatEmitsChronologically(t *testing.T) {
	g := newFakeGateway()
	g.snapshots = []*playerok.ChatList{
		snapshot(chatWith("c1", message("m1", at(5), "one"))),
		snapshot(chatWith("c1", message("m3", at(15), "three"))),
	}
	// Newest-first page: m3, m2, then the known m1.
	g.pages["c1"] = []*playerok.MessageList{{Messages: []playerok.Message{
		message("m3", at(15), "three"),
		message("m2", at(10), "two"),
		message("m1", at(5), "one"),
	}}}

	store := cursor.NewMemoryStore()
	store.Set("c1", cursor.Cursor{MessageID: "m1", MessageTime: at(5)})

	l := newTestListener(g, store)
	ctx := context.Background()

	if err := l.tick(ctx); err != nil { // first tick, seeds prev
		t.Fatal(err)
	}
	drainEvents(l)

	if err := l.tick(ctx); err != nil {
		t.Fatal(err)
	}
	events := drainEvents(l)
	if got := eventKinds(events); !kindsEqual(got, []Kind{KindNewMessage, KindNewMessage}) {
		t.Fatalf("events = %v", got)
	}
	first := events[0].(NewMessage)
	second := events[1].(NewMessage)
	if first.Message.ID != "m2" || second.Message.ID != "m3" {
		t.Errorf("order = %q, %q, want m2 then m3", first.Message.ID, second.Message.ID)
	}

	cur, ok := store.Get("c1")
	if !ok || cur.MessageID != "m3" || !cur.MessageTime.Equal(at(15)) {
		t.Errorf("cursor = %+v, want m3 at %v", cur, at(15))
	}
}

func TestKnownChatSkipsWhenCursorCurrent(t *testing.T) {
	g := newFakeGateway()
	g.snapshots = []*playerok.ChatList{
		snapshot(chatWith("c1", message("m1", at(5), "one"))),
		snapshot(playerok.Chat{ID: "c1", LastMessage: &playerok.Message{ID: "m1", CreatedAt: at(5)}, Unread: 1}),
	}

	store := cursor.NewMemoryStore()
	store.Set("c1", cursor.Cursor{MessageID: "m1", MessageTime: at(5)})

	l := newTestListener(g, store)
	ctx := context.Background()
	l.tick(ctx)
	drainEvents(l)

	// Snapshot changed (unread counter) but the last message is the cursor.
	if err := l.tick(ctx); err != nil {
		t.Fatal(err)
	}
	if events := drainEvents(l); len(events) != 0 {
		t.Errorf("unexpected events: %v", eventKinds(events))
	}
	if g.msgCalls["c1"] != 0 {
		t.Error("must not fetch history when the cursor matches the last message")
	}
}

func TestStartupFiltering(t *testing.T) {
	g := newFakeGateway()
	g.snapshots = []*playerok.ChatList{
		snapshot(chatWith("c1", message("m0", at(-100), "ancient"))),
		snapshot(chatWith("c1", message("m2", at(10), "fresh"))),
	}
	g.pages["c1"] = []*playerok.MessageList{{Messages: []playerok.Message{
		message("m2", at(10), "fresh"),
		message("m1", at(-50), "stale"),
		message("m0", at(-100), "ancient"),
	}}}

	store := cursor.NewMemoryStore()
	store.Set("c1", cursor.Cursor{MessageID: "m0", MessageTime: at(-100)})

	l := newTestListener(g, store)
	ctx := context.Background()
	l.tick(ctx)
	drainEvents(l)

	if err := l.tick(ctx); err != nil {
		t.Fatal(err)
	}
	events := drainEvents(l)
	if len(events) != 1 {
		t.Fatalf("expected only the post-startup message, got %v", eventKinds(events))
	}
	if nm := events[0].(NewMessage); nm.Message.ID != "m2" {
		t.Errorf("emitted %q, want m2", nm.Message.ID)
	}
}

func TestNewChatWithDealNotice(t *testing.T) {
	deal := &playerok.Deal{ID: "d1", Status: playerok.DealPaid}
	paid := message("m1", at(10), sentinelItemPaid)
	paid.Deal = deal

	g := newFakeGateway()
	g.snapshots = []*playerok.ChatList{
		snapshot(),
		snapshot(chatWith("c1", paid)),
	}
	g.pages["c1"] = []*playerok.MessageList{{Messages: []playerok.Message{paid}}}

	store := cursor.NewMemoryStore()
	l := newTestListener(g, store)
	ctx := context.Background()
	l.tick(ctx)
	drainEvents(l)

	if err := l.tick(ctx); err != nil {
		t.Fatal(err)
	}
	events := drainEvents(l)
	if got := eventKinds(events); !kindsEqual(got, []Kind{KindNewDeal, KindItemPaid}) {
		t.Fatalf("events = %v, want [new_deal item_paid]", got)
	}
	nd := events[0].(NewDeal)
	if nd.Deal.ID != "d1" || nd.ChatID() != "c1" {
		t.Errorf("payload: deal=%q chat=%q", nd.Deal.ID, nd.ChatID())
	}

	cur, ok := store.Get("c1")
	if !ok || cur.MessageID != "m1" {
		t.Errorf("cursor not seeded: %+v", cur)
	}
}

func TestPreexistingChatSeedsSilently(t *testing.T) {
	g := newFakeGateway()
	g.snapshots = []*playerok.ChatList{
		snapshot(),
		snapshot(chatWith("c1", message("m2", at(10), "hello"))),
	}
	g.pages["c1"] = []*playerok.MessageList{{Messages: []playerok.Message{
		message("m2", at(10), "hello"),
		message("m1", at(-300), "from before"),
	}}}

	store := cursor.NewMemoryStore()
	l := newTestListener(g, store)
	ctx := context.Background()
	l.tick(ctx)
	drainEvents(l)

	if err := l.tick(ctx); err != nil {
		t.Fatal(err)
	}
	if events := drainEvents(l); len(events) != 0 {
		t.Errorf("pre-existing chat emitted %v, want nothing", eventKinds(events))
	}
	cur, ok := store.Get("c1")
	if !ok || cur.MessageID != "m2" {
		t.Errorf("cursor = %+v, want seeded to m2", cur)
	}
}

func TestNewChatRepollsForDealNotice(t *testing.T) {
	deal := &playerok.Deal{ID: "d1", Status: playerok.DealPaid}
	paid := message("m2", at(12), sentinelItemPaid)
	paid.Deal = deal
	greeting := message("m1", at(10), "hi, just bought this")

	g := newFakeGateway()
	g.snapshots = []*playerok.ChatList{
		snapshot(),
		snapshot(chatWith("c1", greeting)),
	}
	// First fetch sees only the greeting; the re-poll resolves the notice.
	g.pages["c1"] = []*playerok.MessageList{
		{Messages: []playerok.Message{greeting}},
		{Messages: []playerok.Message{paid, greeting}},
	}

	store := cursor.NewMemoryStore()
	l := newTestListener(g, store)
	ctx := context.Background()
	l.tick(ctx)
	drainEvents(l)

	if err := l.tick(ctx); err != nil {
		t.Fatal(err)
	}
	events := drainEvents(l)
	if got := eventKinds(events); !kindsEqual(got, []Kind{KindNewMessage, KindNewDeal, KindItemPaid}) {
		t.Fatalf("events = %v, want greeting then deal events", got)
	}
	if g.msgCalls["c1"] != 2 {
		t.Errorf("expected exactly one re-poll, got %d fetches", g.msgCalls["c1"])
	}
}

func TestCursorMonotonic(t *testing.T) {
	g := newFakeGateway()
	g.snapshots = []*playerok.ChatList{
		snapshot(chatWith("c1", message("m1", at(5), "one"))),
		snapshot(chatWith("c1", message("m2", at(10), "two"))),
		snapshot(chatWith("c1", message("m3", at(20), "three"))),
	}
	g.pages["c1"] = []*playerok.MessageList{
		{Messages: []playerok.Message{
			message("m2", at(10), "two"),
			message("m1", at(5), "one"),
		}},
		{Messages: []playerok.Message{
			message("m3", at(20), "three"),
			message("m2", at(10), "two"),
			message("m1", at(5), "one"),
		}},
	}

	store := cursor.NewMemoryStore()
	store.Set("c1", cursor.Cursor{MessageID: "m1", MessageTime: at(5)})

	l := newTestListener(g, store)
	ctx := context.Background()
	l.tick(ctx)
	drainEvents(l)

	var times []time.Time
	for i := 0; i < 2; i++ {
		if err := l.tick(ctx); err != nil {
			t.Fatal(err)
		}
		drainEvents(l)
		cur, _ := store.Get("c1")
		times = append(times, cur.MessageTime)
	}
	if times[1].Before(times[0]) {
		t.Errorf("cursor time went backwards: %v then %v", times[0], times[1])
	}
	cur, _ := store.Get("c1")
	if cur.MessageID != "m3" {
		t.Errorf("final cursor = %q, want m3", cur.MessageID)
	}
}

func TestTickIsolatesFailingChat(t *testing.T) {
	g := newFakeGateway()
	g.snapshots = []*playerok.ChatList{
		snapshot(
			chatWith("c1", message("m1", at(5), "one")),
			chatWith("c2", message("mA", at(6), "a")),
		),
		snapshot(
			chatWith("c1", message("m2", at(10), "two")),
			chatWith("c2", message("mB", at(12), "b")),
		),
	}
	g.msgErrs["c1"] = errors.New("boom")
	g.pages["c2"] = []*playerok.MessageList{{Messages: []playerok.Message{
		message("mB", at(12), "b"),
		message("mA", at(6), "a"),
	}}}

	store := cursor.NewMemoryStore()
	store.Set("c1", cursor.Cursor{MessageID: "m1", MessageTime: at(5)})
	store.Set("c2", cursor.Cursor{MessageID: "mA", MessageTime: at(6)})

	l := newTestListener(g, store)
	ctx := context.Background()
	l.tick(ctx)
	drainEvents(l)

	// The failing chat is logged and skipped; the tick itself succeeds and
	// the remaining chats still get processed.
	if err := l.tick(ctx); err != nil {
		t.Fatalf("tick must absorb per-chat errors, got %v", err)
	}
	events := drainEvents(l)
	if len(events) != 1 {
		t.Fatalf("events = %v, want just c2's message", eventKinds(events))
	}
	if nm := events[0].(NewMessage); nm.ChatID() != "c2" || nm.Message.ID != "mB" {
		t.Errorf("emitted %q in chat %q, want mB in c2", nm.Message.ID, nm.ChatID())
	}

	if cur, _ := store.Get("c1"); cur.MessageID != "m1" {
		t.Errorf("failing chat's cursor moved to %q", cur.MessageID)
	}
	if cur, _ := store.Get("c2"); cur.MessageID != "mB" {
		t.Errorf("c2 cursor = %q, want mB", cur.MessageID)
	}
}

func TestRunBacksOffAfterRepeatedFailures(t *testing.T) {
	g := newFakeGateway()
	g.snapshots = []*playerok.ChatList{snapshot()}
	g.failChats = 4

	l := New(g, cursor.NewMemoryStore(), Options{NewChatDelay: -1})
	l.now = func() time.Time { return startupAt }

	ctx, cancel := context.WithCancel(context.Background())
	var sleeps []time.Duration
	l.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		if len(sleeps) >= 8 {
			cancel()
		}
		return ctx.Err()
	}

	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}

	// Three straight failures trigger the pause before the fourth tick, and
	// the pause grows by 10s per further failure: 10s, then 20s.
	var pauses []time.Duration
	for _, d := range sleeps {
		if d >= 10*time.Second {
			pauses = append(pauses, d)
		}
	}
	if len(pauses) != 2 || pauses[0] != 10*time.Second || pauses[1] != 20*time.Second {
		t.Errorf("pauses = %v, want [10s 20s]", pauses)
	}

	// The first clean tick resets the counter, so no further pauses.
	if l.failures != 0 {
		t.Errorf("failures = %d after a clean tick, want 0", l.failures)
	}
}

func TestNewChatRepollExhaustionStillEmits(t *testing.T) {
	greeting := message("m1", at(10), "hello, I just bought this")

	g := newFakeGateway()
	g.snapshots = []*playerok.ChatList{
		snapshot(),
		snapshot(chatWith("c1", greeting)),
	}
	// No deal notice ever resolves for this chat.
	g.pages["c1"] = []*playerok.MessageList{{Messages: []playerok.Message{greeting}}}

	store := cursor.NewMemoryStore()
	l := newTestListener(g, store)
	ctx := context.Background()
	l.tick(ctx)
	drainEvents(l)

	if err := l.tick(ctx); err != nil {
		t.Fatal(err)
	}

	// Every re-poll attempt was spent before giving up.
	if g.msgCalls["c1"] != 1+l.opts.RepollAttempts {
		t.Errorf("fetches = %d, want %d", g.msgCalls["c1"], 1+l.opts.RepollAttempts)
	}

	// The give-up path still hands out what arrived and seeds the cursor.
	events := drainEvents(l)
	if got := eventKinds(events); !kindsEqual(got, []Kind{KindNewMessage}) {
		t.Fatalf("events = %v, want the plain message", got)
	}
	if cur, ok := store.Get("c1"); !ok || cur.MessageID != "m1" {
		t.Errorf("cursor = %+v, want seeded to m1", cur)
	}
}

func TestRunStopsOnCancelAndClosesStream(t *testing.T) {
	g := newFakeGateway()
	g.snapshots = []*playerok.ChatList{
		snapshot(chatWith("c1", message("m1", at(-10), "old"))),
	}

	store := cursor.NewMemoryStore()
	l := New(g, store, Options{NewChatDelay: -1})
	l.now = func() time.Time { return startupAt }

	ctx, cancel := context.WithCancel(context.Background())
	ticks := 0
	l.sleep = func(ctx context.Context, d time.Duration) error {
		ticks++
		if ticks >= 2 {
			cancel()
		}
		return ctx.Err()
	}

	var events []Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range l.Events() {
			events = append(events, ev)
		}
	}()

	err := l.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	<-done

	if len(events) != 1 || events[0].Kind() != KindChatInitialized {
		t.Errorf("events = %v, want one chat_initialized", eventKinds(events))
	}

	if err := l.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run = %v, want ErrAlreadyRunning", err)
	}
}
