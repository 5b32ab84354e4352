package ginserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentline/internal/domain/inbox"
	"rentline/internal/infra/relay"
)

type fakeSession struct {
	userID   string
	status   relay.Status
	startErr error
	sendErr  error

	started bool
	closed  bool
	focus   [2]string
	read    []inbox.ConversationKey
	sent    [][4]string

	mine   []inbox.ItemSnapshot
	others []inbox.GroupSnapshot
}

func (f *fakeSession) UserID() string                  { return f.userID }
func (f *fakeSession) Start(context.Context) error     { f.started = true; return f.startErr }
func (f *fakeSession) Focus(itemID, renterID string)   { f.focus = [2]string{itemID, renterID} }
func (f *fakeSession) MarkRead(k inbox.ConversationKey) { f.read = append(f.read, k) }
func (f *fakeSession) SnapshotMine() []inbox.ItemSnapshot    { return f.mine }
func (f *fakeSession) SnapshotOthers() []inbox.GroupSnapshot { return f.others }
func (f *fakeSession) Status() relay.Status                  { return f.status }
func (f *fakeSession) Close()                                { f.closed = true }

func (f *fakeSession) Send(itemID, ownerID, renterID, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, [4]string{itemID, ownerID, renterID, body})
	return nil
}

var _ InboxSession = (*fakeSession)(nil)

func newInboxRouter(h *InboxHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/inbox/session", h.Open)
	r.DELETE("/inbox/session", h.CloseSession)
	r.GET("/inbox/session", h.Status)
	r.GET("/inbox/mine", h.Mine)
	r.GET("/inbox/others", h.Others)
	r.POST("/inbox/read", h.MarkRead)
	r.POST("/inbox/focus", h.Focus)
	r.POST("/inbox/messages", h.Send)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInboxHandler_OpenAndStatus(t *testing.T) {
	var built *fakeSession
	h := &InboxHandler{Factory: func(userID string) InboxSession {
		built = &fakeSession{userID: userID, status: relay.StatusOpen}
		return built
	}}
	r := newInboxRouter(h)

	w := doJSON(t, r, http.MethodPost, "/inbox/session", `{"user_id":"U1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, built)
	assert.True(t, built.started)
	assert.NotContains(t, w.Body.String(), "bootstrap_error")

	w = doJSON(t, r, http.MethodGet, "/inbox/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"connection":"OPEN"`)
	assert.True(t, h.Connected())
}

func TestInboxHandler_OpenReplacesPrevious(t *testing.T) {
	var sessions []*fakeSession
	h := &InboxHandler{Factory: func(userID string) InboxSession {
		s := &fakeSession{userID: userID, status: relay.StatusOpen}
		sessions = append(sessions, s)
		return s
	}}
	r := newInboxRouter(h)

	doJSON(t, r, http.MethodPost, "/inbox/session", `{"user_id":"U1"}`)
	doJSON(t, r, http.MethodPost, "/inbox/session", `{"user_id":"U2"}`)

	require.Len(t, sessions, 2)
	assert.True(t, sessions[0].closed, "first session must be torn down")
	assert.False(t, sessions[1].closed)
}

func TestInboxHandler_OpenReportsBootstrapError(t *testing.T) {
	h := &InboxHandler{Factory: func(userID string) InboxSession {
		return &fakeSession{userID: userID, startErr: assert.AnError}
	}}
	r := newInboxRouter(h)

	w := doJSON(t, r, http.MethodPost, "/inbox/session", `{"user_id":"U1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bootstrap_error")
}

func TestInboxHandler_OpenValidation(t *testing.T) {
	h := &InboxHandler{Factory: func(string) InboxSession { return &fakeSession{} }}
	r := newInboxRouter(h)

	w := doJSON(t, r, http.MethodPost, "/inbox/session", `{"user_id":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/inbox/session", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInboxHandler_NoSessionConflict(t *testing.T) {
	h := &InboxHandler{}
	r := newInboxRouter(h)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/inbox/session"},
		{http.MethodGet, "/inbox/mine"},
		{http.MethodGet, "/inbox/others"},
	} {
		w := doJSON(t, r, req.method, req.path, "")
		assert.Equal(t, http.StatusConflict, w.Code, req.path)
	}

	w := doJSON(t, r, http.MethodDelete, "/inbox/session", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInboxHandler_MarkRead(t *testing.T) {
	sess := &fakeSession{userID: "U1", status: relay.StatusOpen}
	h := &InboxHandler{Factory: func(string) InboxSession { return sess }}
	r := newInboxRouter(h)
	doJSON(t, r, http.MethodPost, "/inbox/session", `{"user_id":"U1"}`)

	w := doJSON(t, r, http.MethodPost, "/inbox/read",
		`{"itemid":"I1","counterparty":"R1","role":"owner"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sess.read, 1)
	assert.Equal(t, inbox.ConversationKey{ItemID: "I1", Counterparty: "R1", Role: inbox.RoleOwner}, sess.read[0])

	w = doJSON(t, r, http.MethodPost, "/inbox/read",
		`{"itemid":"I1","counterparty":"R1","role":"ADMIN"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInboxHandler_FocusAndSend(t *testing.T) {
	sess := &fakeSession{userID: "U1", status: relay.StatusOpen}
	h := &InboxHandler{Factory: func(string) InboxSession { return sess }}
	r := newInboxRouter(h)
	doJSON(t, r, http.MethodPost, "/inbox/session", `{"user_id":"U1"}`)

	w := doJSON(t, r, http.MethodPost, "/inbox/focus", `{"itemid":"I1","renterid":"R1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]string{"I1", "R1"}, sess.focus)

	w = doJSON(t, r, http.MethodPost, "/inbox/messages",
		`{"itemid":"I1","ownerid":"U1","renterid":"R1","message":"  hello  "}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, sess.sent, 1)
	assert.Equal(t, "hello", sess.sent[0][3], "message is trimmed")

	w = doJSON(t, r, http.MethodPost, "/inbox/messages",
		`{"itemid":"I1","ownerid":"U1","renterid":"R1","message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInboxHandler_SendWhileDisconnected(t *testing.T) {
	sess := &fakeSession{userID: "U1", status: relay.StatusDisconnected, sendErr: relay.ErrNotOpen}
	h := &InboxHandler{Factory: func(string) InboxSession { return sess }}
	r := newInboxRouter(h)
	doJSON(t, r, http.MethodPost, "/inbox/session", `{"user_id":"U1"}`)

	w := doJSON(t, r, http.MethodPost, "/inbox/messages",
		`{"itemid":"I1","ownerid":"U1","renterid":"R1","message":"hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, h.Connected())
}

func TestInboxHandler_CloseSession(t *testing.T) {
	sess := &fakeSession{userID: "U1", status: relay.StatusOpen}
	h := &InboxHandler{Factory: func(string) InboxSession { return sess }}
	r := newInboxRouter(h)
	doJSON(t, r, http.MethodPost, "/inbox/session", `{"user_id":"U1"}`)

	w := doJSON(t, r, http.MethodDelete, "/inbox/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, sess.closed)

	w = doJSON(t, r, http.MethodGet, "/inbox/mine", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}
