package inbox

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// View names one of the two top-level inbox groupings.
type View string

const (
	// ViewMine holds conversations about items the local user owns,
	// grouped per item.
	ViewMine View = "MINE"
	// ViewOthers holds conversations where the local user is the
	// renter, as a flat list.
	ViewOthers View = "OTHERS"
)

// ItemMeta carries the display metadata resolved for an item.
type ItemMeta struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
}

// CounterpartSeed is one bootstrap summary under an owned item.
type CounterpartSeed struct {
	UserID   string
	LatestAt time.Time
}

// ItemSeed is the bootstrap payload for one owned item. Slice order is
// preserved as the tie-break order for equal activity timestamps.
type ItemSeed struct {
	ItemID       string
	Counterparts []CounterpartSeed
}

// OtherSeed is one bootstrap summary for a conversation where the
// local user is the renter.
type OtherSeed struct {
	ItemID   string
	OwnerID  string
	LatestAt time.Time
}

// GroupSnapshot is a read-only projection of one conversation group.
type GroupSnapshot struct {
	Key              ConversationKey `json:"key"`
	Item             ItemMeta        `json:"item"`
	Messages         []Message       `json:"messages"`
	LatestActivityAt time.Time       `json:"latest_activity_at"`
	HasUnread        bool            `json:"has_unread"`
}

// ItemSnapshot is a read-only projection of one owned item and its
// conversation groups. HasUnread aggregates the child groups.
type ItemSnapshot struct {
	Item             ItemMeta        `json:"item"`
	LatestActivityAt time.Time       `json:"latest_activity_at"`
	HasUnread        bool            `json:"has_unread"`
	Groups           []GroupSnapshot `json:"groups"`
}

type group struct {
	key      ConversationKey
	messages []Message
	latestAt time.Time
	unread   bool
}

type itemThread struct {
	itemID string
	groups []*group
}

func (t *itemThread) latestAt() time.Time {
	var latest time.Time
	for _, g := range t.groups {
		if g.latestAt.After(latest) {
			latest = g.latestAt
		}
	}
	return latest
}

// Store is the single source of truth for both inbox views. It merges
// the REST bootstrap with live relay events, deduplicates messages by
// (OccurredAt, Body), keeps groups ordered by activity and tracks
// unread flags per conversation and per item.
//
// Message ordering within a group follows OccurredAt only; the relay
// provides no sequence numbers, so ordering across frames is
// best-effort and equal timestamps keep acceptance order.
type Store struct {
	mu      sync.Mutex
	localID string
	logger  *slog.Logger

	mine      []*itemThread
	mineIndex map[string]*itemThread
	others    []*group
	groups    map[ConversationKey]*group
	meta      map[string]ItemMeta
}

// NewStore creates an empty store for one local user. localID is the
// stable user ID, the only identity field compared against senders,
// owners and renters.
func NewStore(localID string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		localID:   localID,
		logger:    logger,
		mineIndex: make(map[string]*itemThread),
		groups:    make(map[ConversationKey]*group),
		meta:      make(map[string]ItemMeta),
	}
}

// Seed replaces the store contents wholesale with the bootstrap
// payloads. Group activity timestamps come from the payload's own
// latest-activity fields; ties keep the input slice order.
func (s *Store) Seed(mine []ItemSeed, others []OtherSeed, meta map[string]ItemMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mine = nil
	s.others = nil
	s.mineIndex = make(map[string]*itemThread)
	s.groups = make(map[ConversationKey]*group)
	s.meta = make(map[string]ItemMeta)
	for id, m := range meta {
		s.meta[id] = m
	}

	for _, seed := range mine {
		thread := &itemThread{itemID: seed.ItemID}
		for _, part := range seed.Counterparts {
			key := ConversationKey{ItemID: seed.ItemID, Counterparty: part.UserID, Role: RoleOwner}
			if _, exists := s.groups[key]; exists {
				continue
			}
			g := &group{key: key, latestAt: part.LatestAt}
			s.groups[key] = g
			thread.groups = append(thread.groups, g)
		}
		s.mine = append(s.mine, thread)
		s.mineIndex[seed.ItemID] = thread
		sortGroups(thread.groups)
	}
	for _, seed := range others {
		key := ConversationKey{ItemID: seed.ItemID, Counterparty: seed.OwnerID, Role: RoleRenter}
		if _, exists := s.groups[key]; exists {
			continue
		}
		g := &group{key: key, latestAt: seed.LatestAt}
		s.groups[key] = g
		s.others = append(s.others, g)
	}
	sortThreads(s.mine)
	sortGroups(s.others)
}

// SetItemMeta records display metadata for an item, e.g. when a live
// event creates a group for an item the bootstrap never saw.
func (s *Store) SetItemMeta(meta ItemMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[meta.ID] = meta
}

// ApplyMessage routes a normalized message into the owning view,
// creating the conversation group on first contact. It reports whether
// the message was accepted; duplicates by (OccurredAt, Body) are
// dropped. Accepting a message from a non-local sender marks the group
// unread.
func (s *Store) ApplyMessage(msg Message) bool {
	if msg.ItemID == "" {
		s.logger.Warn("inbox: message without item id dropped", "sender", msg.Sender)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var key ConversationKey
	if msg.OwnerID == s.localID {
		key = ConversationKey{ItemID: msg.ItemID, Counterparty: msg.RenterID, Role: RoleOwner}
	} else {
		key = ConversationKey{ItemID: msg.ItemID, Counterparty: msg.OwnerID, Role: RoleRenter}
	}
	if key.Counterparty == "" {
		s.logger.Warn("inbox: message without counterparty dropped", "itemid", msg.ItemID, "role", key.Role)
		return false
	}

	g, ok := s.groups[key]
	if !ok {
		g = s.createGroupLocked(key)
	}
	for _, existing := range g.messages {
		if existing.OccurredAt.Equal(msg.OccurredAt) && existing.Body == msg.Body {
			s.logger.Debug("inbox: duplicate message dropped", "itemid", msg.ItemID, "counterparty", key.Counterparty)
			return false
		}
	}

	// Keep the group ascending by OccurredAt; equal timestamps keep
	// acceptance order, so the new message lands after its peers.
	idx := sort.Search(len(g.messages), func(i int) bool {
		return g.messages[i].OccurredAt.After(msg.OccurredAt)
	})
	g.messages = append(g.messages, Message{})
	copy(g.messages[idx+1:], g.messages[idx:])
	g.messages[idx] = msg

	g.latestAt = msg.OccurredAt
	if msg.Sender != s.localID {
		g.unread = true
	}

	if key.Role == RoleOwner {
		sortGroups(s.mineIndex[key.ItemID].groups)
		sortThreads(s.mine)
	} else {
		sortGroups(s.others)
	}
	return true
}

// createGroupLocked registers a group for a key neither bootstrap
// produced. The live stream and the bootstrap race by design, so a
// brand-new inbound conversation must materialize instead of being
// dropped. Must be called with mu held.
func (s *Store) createGroupLocked(key ConversationKey) *group {
	g := &group{key: key}
	s.groups[key] = g
	if key.Role == RoleOwner {
		thread, ok := s.mineIndex[key.ItemID]
		if !ok {
			thread = &itemThread{itemID: key.ItemID}
			s.mine = append(s.mine, thread)
			s.mineIndex[key.ItemID] = thread
		}
		thread.groups = append(thread.groups, g)
	} else {
		s.others = append(s.others, g)
	}
	return g
}

// MarkRead clears the unread flag for one conversation. Ordering is
// unaffected.
func (s *Store) MarkRead(key ConversationKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[key]; ok {
		g.unread = false
	}
}

// SnapshotMine returns the current MINE view: items descending by
// latest activity, each with its groups descending by latest activity.
func (s *Store) SnapshotMine() []ItemSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ItemSnapshot, 0, len(s.mine))
	for _, thread := range s.mine {
		snap := ItemSnapshot{
			Item:             s.metaForLocked(thread.itemID),
			LatestActivityAt: thread.latestAt(),
			Groups:           make([]GroupSnapshot, 0, len(thread.groups)),
		}
		for _, g := range thread.groups {
			gs := s.groupSnapshotLocked(g)
			snap.HasUnread = snap.HasUnread || gs.HasUnread
			snap.Groups = append(snap.Groups, gs)
		}
		out = append(out, snap)
	}
	return out
}

// SnapshotOthers returns the current OTHERS view, descending by latest
// activity.
func (s *Store) SnapshotOthers() []GroupSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]GroupSnapshot, 0, len(s.others))
	for _, g := range s.others {
		out = append(out, s.groupSnapshotLocked(g))
	}
	return out
}

// HasUnread reports the unread flag for one conversation key.
func (s *Store) HasUnread(key ConversationKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[key]
	return ok && g.unread
}

func (s *Store) groupSnapshotLocked(g *group) GroupSnapshot {
	return GroupSnapshot{
		Key:              g.key,
		Item:             s.metaForLocked(g.key.ItemID),
		Messages:         append([]Message(nil), g.messages...),
		LatestActivityAt: g.latestAt,
		HasUnread:        g.unread,
	}
}

func (s *Store) metaForLocked(itemID string) ItemMeta {
	if meta, ok := s.meta[itemID]; ok {
		return meta
	}
	// Metadata lookup failed or has not landed yet.
	return ItemMeta{ID: itemID, Title: itemID}
}

func sortGroups(groups []*group) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].latestAt.After(groups[j].latestAt)
	})
}

func sortThreads(threads []*itemThread) {
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].latestAt().After(threads[j].latestAt())
	})
}
