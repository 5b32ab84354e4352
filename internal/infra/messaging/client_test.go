package messaging

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_OwnerGroups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "O1", r.URL.Query().Get("ownerid"))
		fmt.Fprint(w, `{"chatGroups":{
			"I1":[{"renterid":"R1","latest_datetime":"2024-01-01T10:00:00Z"},
			      {"renterid":"R2","latest_datetime":"2024-01-01T11:00:00Z"}],
			"I2":[{"renterid":"R1","latest_datetime":"2024-01-01T09:00:00Z"}]
		}}`)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}
	groups, err := c.OwnerGroups(context.Background(), "O1")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Len(t, groups["I1"], 2)
	assert.Equal(t, "R2", groups["I1"][1].RenterID)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), groups["I1"][1].LatestAt.Time)
}

func TestClient_RenterGroups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "R1", r.URL.Query().Get("renterid"))
		fmt.Fprint(w, `{"chatGroups":[
			{"itemid":"I9","ownerid":"O2","latest_datetime":"2024-01-01T08:00:00Z"}
		]}`)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}
	groups, err := c.RenterGroups(context.Background(), "R1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "I9", groups[0].ItemID)
	assert.Equal(t, "O2", groups[0].OwnerID)
}

func TestClient_BootstrapFailures(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()
		c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}
		_, err := c.OwnerGroups(context.Background(), "O1")
		assert.ErrorIs(t, err, ErrBootstrapFailed)
	})

	t.Run("bad json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"chatGroups":`)
		}))
		defer srv.Close()
		c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}
		_, err := c.RenterGroups(context.Background(), "R1")
		assert.ErrorIs(t, err, ErrBootstrapFailed)
	})

	t.Run("unreachable", func(t *testing.T) {
		c := &Client{BaseURL: "http://127.0.0.1:1/messages"}
		_, err := c.OwnerGroups(context.Background(), "O1")
		assert.ErrorIs(t, err, ErrBootstrapFailed)
	})
}
