package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"rentline/internal/domain/inbox"
	"rentline/internal/infra/relay"
)

// Session is one inbox mount: a fresh conversation store and a fresh
// relay connection, wired together for one user. Nothing survives a
// session; tearing it down cancels the reconnect timer and any
// in-flight fetches, and events arriving afterwards are no-ops.
type Session struct {
	userID  string
	store   *inbox.Store
	manager *relay.Manager
	fetcher *Fetcher
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	metaMu        sync.Mutex
	metaRequested map[string]bool
}

// New builds an unstarted session. relayCfg.Handler is overwritten;
// frames always route through the session so teardown can fence them.
func New(userID string, fetcher *Fetcher, relayCfg relay.Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		userID:        userID,
		store:         inbox.NewStore(userID, logger),
		fetcher:       fetcher,
		logger:        logger,
		metaRequested: make(map[string]bool),
	}
	relayCfg.Handler = s.handleFrames
	relayCfg.Logger = logger
	s.manager = relay.NewManager(relayCfg)
	return s
}

// UserID returns the local identity this session compares senders and
// owners against.
func (s *Session) UserID() string { return s.userID }

// Start seeds the store from the REST bootstrap and brings the relay
// connection up. A bootstrap failure is returned for display but does
// not prevent the live stream: the store then builds up from live
// events alone.
func (s *Session) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	boot, err := s.fetcher.Load(s.ctx, s.userID)
	if err != nil {
		s.logger.Error("inbox bootstrap failed", "user_id", s.userID, "error", err)
	} else if !s.closed.Load() {
		s.store.Seed(boot.Mine, boot.Others, boot.Items)
		s.metaMu.Lock()
		for id := range boot.Items {
			s.metaRequested[id] = true
		}
		s.metaMu.Unlock()
		s.logger.Info("inbox seeded", "user_id", s.userID, "mine_items", len(boot.Mine), "others", len(boot.Others))
	}
	if s.closed.Load() {
		return err
	}
	s.manager.Connect(s.ctx)
	return err
}

// Focus marks the active conversation; its history is requested now
// and again after every reconnect.
func (s *Session) Focus(itemID, renterID string) {
	s.manager.SetFocus(itemID, renterID)
}

// Send delivers one chat message through the relay. While disconnected
// the frame is dropped and ErrNotOpen returned; there is no outbound
// queue.
func (s *Session) Send(itemID, ownerID, renterID, body string) error {
	frame := relay.NewSendMessage(body, itemID, ownerID, renterID, s.userID, time.Now())
	return s.manager.Send(frame)
}

// MarkRead clears the unread flag for one conversation.
func (s *Session) MarkRead(key inbox.ConversationKey) {
	s.store.MarkRead(key)
}

// SnapshotMine returns the current MINE view.
func (s *Session) SnapshotMine() []inbox.ItemSnapshot { return s.store.SnapshotMine() }

// SnapshotOthers returns the current OTHERS view.
func (s *Session) SnapshotOthers() []inbox.GroupSnapshot { return s.store.SnapshotOthers() }

// Status reports the relay connection state.
func (s *Session) Status() relay.Status { return s.manager.Status() }

// Close tears the session down. Safe to call multiple times.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.manager.Close()
	s.logger.Info("inbox session closed", "user_id", s.userID)
}

func (s *Session) handleFrames(msgs []inbox.Message) {
	if s.closed.Load() || (s.ctx != nil && s.ctx.Err() != nil) {
		return
	}
	for _, msg := range msgs {
		if s.store.ApplyMessage(msg) {
			s.ensureItemMeta(msg.ItemID)
		}
	}
}

// ensureItemMeta resolves display metadata for items the bootstrap
// never saw, e.g. a brand-new inbound conversation. The group shows a
// placeholder until the lookup lands.
func (s *Session) ensureItemMeta(itemID string) {
	s.metaMu.Lock()
	if s.metaRequested[itemID] {
		s.metaMu.Unlock()
		return
	}
	s.metaRequested[itemID] = true
	s.metaMu.Unlock()

	go func() {
		meta := s.fetcher.metaForItem(s.ctx, itemID)
		if s.closed.Load() || s.ctx.Err() != nil {
			return
		}
		s.store.SetItemMeta(meta)
	}()
}
