package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	gin "github.com/gin-gonic/gin"

	"rentline/internal/app/dto"
	"rentline/internal/domain/inbox"
	"rentline/internal/infra/relay"
)

// InboxSession is the per-mount inbox engine the handler drives. One
// session exists at a time; opening a new one tears the old one down.
type InboxSession interface {
	UserID() string
	Start(ctx context.Context) error
	Focus(itemID, renterID string)
	Send(itemID, ownerID, renterID, body string) error
	MarkRead(key inbox.ConversationKey)
	SnapshotMine() []inbox.ItemSnapshot
	SnapshotOthers() []inbox.GroupSnapshot
	Status() relay.Status
	Close()
}

// SessionFactory builds a fresh session for one user.
type SessionFactory func(userID string) InboxSession

// InboxHTTP exposes the inbox endpoints.
type InboxHTTP interface {
	Open(c *gin.Context)
	CloseSession(c *gin.Context)
	Status(c *gin.Context)
	Mine(c *gin.Context)
	Others(c *gin.Context)
	MarkRead(c *gin.Context)
	Focus(c *gin.Context)
	Send(c *gin.Context)
}

// InboxHandler bridges HTTP with the inbox session lifecycle.
type InboxHandler struct {
	Factory SessionFactory
	// BaseCtx is the process lifecycle context; sessions must outlive
	// the request that opened them.
	BaseCtx context.Context
	Logger  *slog.Logger

	mu      sync.Mutex
	current InboxSession
}

// Open mounts a fresh inbox session, replacing any existing one. A
// failed bootstrap is reported but leaves the live stream running.
func (h *InboxHandler) Open(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	sess := h.Factory(req.UserID)

	h.mu.Lock()
	previous := h.current
	h.current = sess
	h.mu.Unlock()
	if previous != nil {
		previous.Close()
	}

	ctx := h.BaseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	response := gin.H{"status": "open", "user_id": req.UserID}
	if err := sess.Start(ctx); err != nil {
		// Recoverable: surfaced for a UI banner, live updates continue.
		response["bootstrap_error"] = err.Error()
	}
	c.JSON(http.StatusOK, response)
}

// CloseSession unmounts the current session.
func (h *InboxHandler) CloseSession(c *gin.Context) {
	h.mu.Lock()
	sess := h.current
	h.current = nil
	h.mu.Unlock()
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no open session"})
		return
	}
	sess.Close()
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

// Status reports the session and relay connection state.
func (h *InboxHandler) Status(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": sess.UserID(), "connection": string(sess.Status())})
}

// Mine serves the owned-items view.
func (h *InboxHandler) Mine(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	snaps := sess.SnapshotMine()
	items := make([]dto.InboxItem, 0, len(snaps))
	for _, snap := range snaps {
		items = append(items, dto.ItemFromSnapshot(snap, sess.UserID()))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Others serves the renting view.
func (h *InboxHandler) Others(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	snaps := sess.SnapshotOthers()
	groups := make([]dto.InboxGroup, 0, len(snaps))
	for _, snap := range snaps {
		groups = append(groups, dto.GroupFromSnapshot(snap, sess.UserID()))
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// MarkRead clears the unread flag for one conversation.
func (h *InboxHandler) MarkRead(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req struct {
		ItemID       string `json:"itemid"`
		Counterparty string `json:"counterparty"`
		Role         string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	role := inbox.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if role != inbox.RoleOwner && role != inbox.RoleRenter {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be OWNER or RENTER"})
		return
	}
	if req.ItemID == "" || req.Counterparty == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "itemid and counterparty are required"})
		return
	}
	sess.MarkRead(inbox.ConversationKey{ItemID: req.ItemID, Counterparty: req.Counterparty, Role: role})
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

// Focus selects the active conversation so its history is requested
// on every (re)connect.
func (h *InboxHandler) Focus(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req struct {
		ItemID   string `json:"itemid"`
		RenterID string `json:"renterid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if req.ItemID == "" || req.RenterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "itemid and renterid are required"})
		return
	}
	sess.Focus(req.ItemID, req.RenterID)
	c.JSON(http.StatusOK, gin.H{"status": "focused"})
}

// Send posts one chat message through the relay.
func (h *InboxHandler) Send(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req struct {
		ItemID   string `json:"itemid"`
		OwnerID  string `json:"ownerid"`
		RenterID string `json:"renterid"`
		Message  string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" || req.ItemID == "" || req.OwnerID == "" || req.RenterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "itemid, ownerid, renterid and message are required"})
		return
	}
	if err := sess.Send(req.ItemID, req.OwnerID, req.RenterID, req.Message); err != nil {
		if errors.Is(err, relay.ErrNotOpen) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "relay disconnected, message dropped"})
			return
		}
		if h.Logger != nil {
			h.Logger.Error("send failed", "error", err)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "send failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

// CloseCurrent tears down the mounted session, if any. Used on process
// shutdown.
func (h *InboxHandler) CloseCurrent() {
	h.mu.Lock()
	sess := h.current
	h.current = nil
	h.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
}

// Connected reports whether a session exists and its relay is open.
func (h *InboxHandler) Connected() bool {
	h.mu.Lock()
	sess := h.current
	h.mu.Unlock()
	return sess != nil && sess.Status() == relay.StatusOpen
}

func (h *InboxHandler) session(c *gin.Context) (InboxSession, bool) {
	h.mu.Lock()
	sess := h.current
	h.mu.Unlock()
	if sess == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no open session"})
		return nil, false
	}
	return sess, true
}

var _ InboxHTTP = (*InboxHandler)(nil)
