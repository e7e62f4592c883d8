package custody

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"arenasettle/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/atomicassets/v1/assets/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/atomicassets/v1/assets/100":
			fmt.Fprint(w, `{"success":true,"data":{"asset_id":"100","owner":"alice","collection":{"collection_name":"alien.worlds"},"template":{"template_id":"19552"}}}`)
		case "/atomicassets/v1/assets/101":
			fmt.Fprint(w, `{"success":true,"data":{"asset_id":"101","owner":"alice","collection":{"collection_name":"other.col"},"template":{"template_id":"1"}}}`)
		case "/atomicassets/v1/assets/500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"success":false,"message":"Asset not found"}`)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientLookup(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(&config.CustodyConfig{BaseURL: srv.URL + "/", Collection: "alien.worlds", TimeoutSeconds: 5}, nil)
	ctx := context.Background()

	templateID, found, err := c.Lookup(ctx, "alice", 100)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(19552), templateID)

	_, found, err = c.Lookup(ctx, "bob", 100)
	require.NoError(t, err)
	assert.False(t, found, "asset owned by someone else")

	_, found, err = c.Lookup(ctx, "alice", 101)
	require.NoError(t, err)
	assert.False(t, found, "asset outside the collection")

	_, found, err = c.Lookup(ctx, "alice", 404)
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = c.Lookup(ctx, "alice", 500)
	assert.Error(t, err)
}
