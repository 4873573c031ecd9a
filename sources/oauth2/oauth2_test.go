package oauth2

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/transport"
)

func newTokenServer(t *testing.T, expiresIn int) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "id", r.Form.Get("client_id"))
		assert.Equal(t, "secret", r.Form.Get("client_secret"))
		calls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"bearer","expires_in":%d}`, calls, expiresIn)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newDirect(t *testing.T) *transport.Direct {
	t.Helper()
	d, err := transport.NewDirect(transport.DirectOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)
	return d
}

func TestTokenIsCached(t *testing.T) {
	srv, calls := newTokenServer(t, 3600)
	ts := New(newDirect(t), srv.URL, "id", "secret")

	ctx := context.Background()
	tok1, err := ts.Token(ctx)
	require.NoError(t, err)
	tok2, err := ts.Token(ctx)
	require.NoError(t, err)

	assert.Equal(t, "tok-1", tok1)
	assert.Equal(t, tok1, tok2)
	assert.Equal(t, 1, *calls)
}

func TestTokenRefreshesNearExpiry(t *testing.T) {
	// expires_in of 60s minus the early-refresh window leaves nothing,
	// so every call fetches fresh.
	srv, calls := newTokenServer(t, 60)
	ts := New(newDirect(t), srv.URL, "id", "secret")

	ctx := context.Background()
	_, err := ts.Token(ctx)
	require.NoError(t, err)
	_, err = ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)
}

func TestInvalidateForcesReauth(t *testing.T) {
	srv, calls := newTokenServer(t, 3600)
	ts := New(newDirect(t), srv.URL, "id", "secret")

	ctx := context.Background()
	tok1, err := ts.Token(ctx)
	require.NoError(t, err)

	ts.Invalidate()

	tok2, err := ts.Token(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, tok1, tok2)
	assert.Equal(t, 2, *calls)
}

func TestMissingAccessTokenIsBadShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer srv.Close()

	ts := New(newDirect(t), srv.URL, "id", "secret")
	_, err := ts.Token(context.Background())
	assert.ErrorIs(t, err, transport.ErrBadShape)
}

func TestAuthHeaders(t *testing.T) {
	h := AuthHeaders("abc")
	assert.Equal(t, "Bearer abc", h["Authorization"])
}
