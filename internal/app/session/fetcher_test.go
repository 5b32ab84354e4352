package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentline/internal/infra/catalog"
	"rentline/internal/infra/messaging"
)

// fakeBackends stands in for the messaging and item collaborators at
// once. Handlers default to a sane happy path and can be replaced per
// test.
type fakeBackends struct {
	messages http.HandlerFunc
	items    http.HandlerFunc
}

func defaultBackends() *fakeBackends {
	return &fakeBackends{
		messages: func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("ownerid") != "" {
				fmt.Fprint(w, `{"chatGroups":{
					"I2":[{"renterid":"R1","latest_datetime":"2024-01-01T10:00:00Z"}],
					"I1":[{"renterid":"R1","latest_datetime":"2024-01-01T10:00:00Z"},
					      {"renterid":"R2","latest_datetime":"2024-01-01T11:00:00Z"}]
				}}`)
				return
			}
			fmt.Fprint(w, `{"chatGroups":[
				{"itemid":"I9","ownerid":"O2","latest_datetime":"2024-01-01T08:00:00Z"}
			]}`)
		},
		items: func(w http.ResponseWriter, r *http.Request) {
			id := r.URL.Path[len("/items/"):]
			fmt.Fprintf(w, `{"id":%q,"title":"Title %s","image":"%s.jpg"}`, id, id, id)
		},
	}
}

func newFetcher(t *testing.T, b *fakeBackends) *Fetcher {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) { b.messages(w, r) })
	mux.HandleFunc("/items/", func(w http.ResponseWriter, r *http.Request) { b.items(w, r) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &Fetcher{
		Messaging: &messaging.Client{BaseURL: srv.URL + "/messages", HTTP: srv.Client()},
		Catalog:   &catalog.Client{BaseURL: srv.URL, HTTP: srv.Client()},
		Images: catalog.ImageResolver{
			BaseURL:     "https://cdn.example",
			Prefix:      "items",
			Placeholder: "https://cdn.example/items/placeholder.png",
		},
	}
}

func TestFetcher_Load(t *testing.T) {
	f := newFetcher(t, defaultBackends())

	boot, err := f.Load(context.Background(), "O1")
	require.NoError(t, err)

	// Owned items enter in ascending item-ID order.
	require.Len(t, boot.Mine, 2)
	assert.Equal(t, "I1", boot.Mine[0].ItemID)
	assert.Equal(t, "I2", boot.Mine[1].ItemID)
	require.Len(t, boot.Mine[0].Counterparts, 2)
	assert.Equal(t, "R1", boot.Mine[0].Counterparts[0].UserID)

	require.Len(t, boot.Others, 1)
	assert.Equal(t, "I9", boot.Others[0].ItemID)
	assert.Equal(t, "O2", boot.Others[0].OwnerID)

	// Metadata resolved for every distinct referenced item.
	require.Len(t, boot.Items, 3)
	assert.Equal(t, "Title I1", boot.Items["I1"].Title)
	assert.Equal(t, "https://cdn.example/items/I9.jpg", boot.Items["I9"].ImageURL)
}

func TestFetcher_Load_BootstrapFailureFailsWholeLoad(t *testing.T) {
	b := defaultBackends()
	b.messages = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	f := newFetcher(t, b)

	_, err := f.Load(context.Background(), "O1")
	assert.ErrorIs(t, err, messaging.ErrBootstrapFailed)
}

func TestFetcher_Load_MetaFailureDegradesToPlaceholder(t *testing.T) {
	b := defaultBackends()
	b.items = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/items/I1" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		id := r.URL.Path[len("/items/"):]
		fmt.Fprintf(w, `{"id":%q,"title":"Title %s","image":"%s.jpg"}`, id, id, id)
	}
	f := newFetcher(t, b)

	boot, err := f.Load(context.Background(), "O1")
	require.NoError(t, err)

	assert.Equal(t, "I1", boot.Items["I1"].Title)
	assert.Equal(t, "https://cdn.example/items/placeholder.png", boot.Items["I1"].ImageURL)
	assert.Equal(t, "Title I2", boot.Items["I2"].Title)
}

func TestFetcher_Load_CancelledContext(t *testing.T) {
	f := newFetcher(t, defaultBackends())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Load(ctx, "O1")
	assert.Error(t, err)
}
