package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/vault-be/internal/ledger"
	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/storepath"
)

type wsFrame struct {
	Path   string         `json:"path"`
	Exists bool           `json:"exists"`
	Value  map[string]any `json:"value"`
	Error  string         `json:"error"`
}

func dialWS(t *testing.T, api *testAPI, token string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(api.router)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebsocketDeliversPortfolioChanges(t *testing.T) {
	api := newTestAPI(t)
	s := api.signUp(t, "ws@example.com")
	conn := dialWS(t, api, s.Token)

	path := storepath.Strategy(s.User.ID, models.StrategyXSGD)
	require.NoError(t, conn.WriteJSON(ClientFrame{Op: OpSubscribe, Path: path}))

	first := readFrame(t, conn)
	assert.Equal(t, path, first.Path)
	require.True(t, first.Exists)
	assert.Equal(t, "0", first.Value["balance"])

	svc := ledger.NewService(api.store, api.store, models.DefaultStrategies)
	_, err := svc.Credit(context.Background(), ledger.CreditRequest{UserID: s.User.ID, Strategy: models.StrategyXSGD, Amount: "25"})
	require.NoError(t, err)

	next := readFrame(t, conn)
	require.True(t, next.Exists)
	got, err := decimal.NewFromString(next.Value["balance"].(string))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(25)))
}

func TestWebsocketRejectsForeignAndUnknownPaths(t *testing.T) {
	api := newTestAPI(t)
	s := api.signUp(t, "me@example.com")
	other := api.signUp(t, "other@example.com")
	conn := dialWS(t, api, s.Token)

	require.NoError(t, conn.WriteJSON(ClientFrame{Op: OpSubscribe, Path: storepath.Portfolio(other.User.ID)}))
	f := readFrame(t, conn)
	assert.Equal(t, "path belongs to another user", f.Error)

	require.NoError(t, conn.WriteJSON(ClientFrame{Op: OpSubscribe, Path: "secrets/all"}))
	f = readFrame(t, conn)
	assert.Equal(t, "unknown path", f.Error)

	require.NoError(t, conn.WriteJSON(ClientFrame{Op: "shout", Path: "vaults"}))
	f = readFrame(t, conn)
	assert.NotEmpty(t, f.Error)
}

func TestWebsocketAnonymousPublicPath(t *testing.T) {
	api := newTestAPI(t)
	conn := dialWS(t, api, "")

	require.NoError(t, conn.WriteJSON(ClientFrame{Op: OpSubscribe, Path: storepath.Vault("v9")}))
	f := readFrame(t, conn)
	assert.False(t, f.Exists, "missing vault is an absent snapshot")
	assert.Empty(t, f.Error)

	api.store.PutVault(context.Background(), models.Vault{ID: "v9", Name: "Nine"})
	f = readFrame(t, conn)
	require.True(t, f.Exists)
	assert.Equal(t, "Nine", f.Value["name"])

	require.NoError(t, conn.WriteJSON(ClientFrame{Op: OpUnsubscribe, Path: storepath.Vault("v9")}))
	require.Eventually(t, func() bool { return api.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketInvalidTokenRejected(t *testing.T) {
	api := newTestAPI(t)
	ts := httptest.NewServer(api.router)
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws?token=bogus", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebsocketCloseReleasesSubscriptions(t *testing.T) {
	api := newTestAPI(t)
	conn := dialWS(t, api, "")

	require.NoError(t, conn.WriteJSON(ClientFrame{Op: OpSubscribe, Path: storepath.Markets}))
	readFrame(t, conn)
	require.Equal(t, 1, api.hub.Len())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return api.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketSignOutEndsPrivateViews(t *testing.T) {
	api := newTestAPI(t)
	s := api.signUp(t, "leave@example.com")
	conn := dialWS(t, api, s.Token)

	portfolio := storepath.Portfolio(s.User.ID)
	require.NoError(t, conn.WriteJSON(ClientFrame{Op: OpSubscribe, Path: portfolio}))
	require.True(t, readFrame(t, conn).Exists)

	require.NoError(t, api.provider.SignOut(context.Background(), s.Token))
	assert.Equal(t, "signed out", readFrame(t, conn).Error)
	require.Eventually(t, func() bool { return api.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	for _, path := range []string{storepath.User(s.User.ID), portfolio} {
		require.NoError(t, conn.WriteJSON(ClientFrame{Op: OpSubscribe, Path: path}))
		f := readFrame(t, conn)
		assert.Equal(t, path, f.Path)
		assert.Equal(t, "path belongs to another user", f.Error)
		assert.Nil(t, f.Value)
	}

	require.NoError(t, conn.WriteJSON(ClientFrame{Op: OpSubscribe, Path: storepath.Markets}))
	f := readFrame(t, conn)
	assert.Empty(t, f.Error, "public paths stay available")
	assert.Equal(t, 1, api.hub.Len())
}

func TestWebsocketResubscribeSendsFreshSnapshot(t *testing.T) {
	api := newTestAPI(t)
	s := api.signUp(t, "again@example.com")
	conn := dialWS(t, api, s.Token)

	path := storepath.User(s.User.ID)
	for range 2 {
		require.NoError(t, conn.WriteJSON(ClientFrame{Op: OpSubscribe, Path: path}))
		f := readFrame(t, conn)
		assert.Equal(t, path, f.Path)
		assert.True(t, f.Exists)
	}
	require.Eventually(t, func() bool { return api.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}
