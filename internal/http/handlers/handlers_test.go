package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/vault-be/internal/auth"
	"github.com/hongminglow/vault-be/internal/ledger"
	"github.com/hongminglow/vault-be/internal/lending"
	"github.com/hongminglow/vault-be/internal/middleware"
	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/realtime"
	"github.com/hongminglow/vault-be/internal/storage/memory"
)

const testAdminKey = "admin-key"

type testAPI struct {
	router   *mux.Router
	store    *memory.Store
	provider *auth.Provider
	hub      *realtime.Hub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	provider, err := auth.NewProvider(store, auth.NewTokenManager("test-secret", "vault-test", time.Hour), models.DefaultStrategies)
	require.NoError(t, err)
	t.Cleanup(provider.Close)

	hub := realtime.NewHub(realtime.NewStoreResolver(store, 100))
	t.Cleanup(hub.Close)
	store.SetNotifier(hub.Publish)

	ledgerSvc := ledger.NewService(store, store, models.DefaultStrategies)
	cookies := auth.NewCookieSessions("cookie-secret-for-tests-only-32b", false)

	r := mux.NewRouter()
	NewHealthHandler(time.Now(), "memory").Register(r)
	NewRealtimeHandler(hub, provider, cookies, []string{"*"}).Register(r)

	api := r.PathPrefix("/api/v1").Subrouter()
	NewAuthHandler(provider, cookies).Register(api)
	NewVaultHandler(store).Register(api)
	markets := NewMarketHandler(store, lending.NewService(store))
	markets.Register(api)
	NewFeedHandler(store, 100).Register(api)
	NewToolsHandler().Register(api)

	me := api.PathPrefix("/me").Subrouter()
	me.Use(func(next http.Handler) http.Handler { return middleware.RequireIdentity(provider, cookies, next) })
	NewAccountHandler(store).Register(me)
	NewPortfolioHandler(store, ledgerSvc).Register(me)
	markets.RegisterPositions(me)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(func(next http.Handler) http.Handler { return middleware.RequireAdmin(testAdminKey, next) })
	NewAdminHandler(ledgerSvc).Register(admin)

	return &testAPI{router: r, store: store, provider: provider, hub: hub}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (a *testAPI) signUp(t *testing.T, email string) auth.Session {
	t.Helper()
	s, err := a.provider.SignUp(context.Background(), email, "password123", "")
	require.NoError(t, err)
	return s
}

func (a *testAPI) credit(t *testing.T, userID, strategy, amount string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/"+userID+"/portfolio/"+strategy+"/credit",
		bytes.NewBufferString(`{"amount":"`+amount+`"}`))
	req.Header.Set("Authorization", "Bearer "+testAdminKey)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	code, env := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "memory", decodeData[map[string]string](t, env)["store"])
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "ana@example.com", "password": "password123", "displayName": "Ana",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	session := decodeData[struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}](t, env)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "Ana", session.User.DisplayName)

	code, _ = api.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "ANA@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, env = api.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "nope", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "a valid email is required", env.Message)

	code, env = api.do(t, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{
		"email": "ana@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, auth.ErrInvalidCredentials.Error(), env.Message)

	code, env = api.do(t, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{
		"email": "ana@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, code)
	token := decodeData[struct {
		Token string `json:"token"`
	}](t, env).Token

	code, env = api.do(t, http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ana@example.com", decodeData[models.User](t, env).Email)

	code, _ = api.do(t, http.MethodPost, "/api/v1/auth/signout", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = api.do(t, http.MethodGet, "/api/v1/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSignInSetsSessionCookie(t *testing.T) {
	api := newTestAPI(t)
	api.signUp(t, "cookie@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin",
		bytes.NewBufferString(`{"email":"cookie@example.com","password":"password123"}`))
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfileUpdate(t *testing.T) {
	api := newTestAPI(t)
	s := api.signUp(t, "p@example.com")

	body := map[string]any{
		"displayName":   "Pat",
		"walletAddress": "0xabc",
		"preferences":   map[string]bool{"notifications": false, "autoCompound": true},
		"version":       s.User.Version,
	}
	code, env := api.do(t, http.MethodPut, "/api/v1/me", s.Token, body)
	require.Equal(t, http.StatusOK, code, env.Message)
	updated := decodeData[models.User](t, env)
	assert.Equal(t, "Pat", updated.DisplayName)
	assert.Equal(t, s.User.Version+1, updated.Version)

	// Same stale version again.
	code, _ = api.do(t, http.MethodPut, "/api/v1/me", s.Token, body)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = api.do(t, http.MethodPut, "/api/v1/me", s.Token, map[string]any{"displayName": "x"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = api.do(t, http.MethodPatch, "/api/v1/me/preferences", s.Token, map[string]bool{"notifications": true})
	require.Equal(t, http.StatusOK, code)
	prefs := decodeData[models.User](t, env).Preferences
	assert.True(t, prefs.Notifications)
	assert.True(t, prefs.AutoCompound, "omitted toggle is left untouched")
}

func TestDepositAndWithdraw(t *testing.T) {
	api := newTestAPI(t)
	s := api.signUp(t, "d@example.com")
	api.credit(t, s.User.ID, models.StrategyXSGD, "100")
	api.store.PutVault(context.Background(), models.Vault{ID: "v1", Name: "Alpha"})

	code, env := api.do(t, http.MethodPost, "/api/v1/me/portfolio/xsgd/deposit", s.Token,
		map[string]string{"amount": "40", "term": "3m", "vaultId": "v1"})
	require.Equal(t, http.StatusOK, code, env.Message)
	receipt := decodeData[ledger.Receipt](t, env)
	assert.True(t, receipt.Balance.Equal(decimal.NewFromInt(60)))
	require.NotNil(t, receipt.EstimatedReward)
	assert.Equal(t, "0.5", receipt.EstimatedReward.String())

	tests := []struct {
		name string
		path string
		body map[string]string
		want int
	}{
		{"over balance", "/api/v1/me/portfolio/xsgd/withdraw", map[string]string{"amount": "100"}, http.StatusUnprocessableEntity},
		{"not a number", "/api/v1/me/portfolio/xsgd/withdraw", map[string]string{"amount": "abc"}, http.StatusBadRequest},
		{"zero", "/api/v1/me/portfolio/xsgd/withdraw", map[string]string{"amount": "0"}, http.StatusBadRequest},
		{"unknown strategy", "/api/v1/me/portfolio/gold/withdraw", map[string]string{"amount": "1"}, http.StatusBadRequest},
		{"bad term", "/api/v1/me/portfolio/xsgd/deposit", map[string]string{"amount": "1", "term": "6m"}, http.StatusBadRequest},
		{"unknown vault", "/api/v1/me/portfolio/xsgd/withdraw", map[string]string{"amount": "1", "vaultId": "nope"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := api.do(t, http.MethodPost, tt.path, s.Token, tt.body)
			assert.Equal(t, tt.want, code)
		})
	}

	code, env = api.do(t, http.MethodPost, "/api/v1/me/portfolio/xsgd/withdraw", s.Token, map[string]string{"amount": "60"})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decodeData[ledger.Receipt](t, env).Balance.IsZero())

	code, env = api.do(t, http.MethodGet, "/api/v1/me/portfolio/xsgd", s.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decodeData[models.StrategyBalance](t, env).Balance.IsZero())

	code, _ = api.do(t, http.MethodGet, "/api/v1/me/portfolio/gold", s.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = api.do(t, http.MethodGet, "/api/v1/me/transactions", s.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]models.Transaction](t, env), 3)

	code, env = api.do(t, http.MethodGet, "/api/v1/vaults/v1/activity", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]models.VaultActivity](t, env), 1)
}

func TestAdminCreditRequiresKey(t *testing.T) {
	api := newTestAPI(t)
	s := api.signUp(t, "a@example.com")

	code, _ := api.do(t, http.MethodPost, "/api/v1/admin/users/"+s.User.ID+"/portfolio/xsgd/credit", s.Token,
		map[string]string{"amount": "5"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(t, http.MethodPost, "/api/v1/admin/users/missing/portfolio/xsgd/credit", testAdminKey,
		map[string]string{"amount": "5"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestVaultEndpoints(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	api.store.PutVault(ctx, models.Vault{ID: "a", Name: "Alpha Yield", APR: decimal.NewFromInt(5)})
	api.store.PutVault(ctx, models.Vault{ID: "b", Name: "Beta", APR: decimal.NewFromInt(9)})
	api.store.PutVault(ctx, models.Vault{ID: "c", Name: "alpha core", APR: decimal.NewFromInt(7)})

	code, env := api.do(t, http.MethodGet, "/api/v1/vaults?q=ALPHA&sort=apr&dir=desc", "", nil)
	require.Equal(t, http.StatusOK, code)
	list := decodeData[[]models.Vault](t, env)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "a", list[1].ID)

	code, _ = api.do(t, http.MethodGet, "/api/v1/vaults?sort=color", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(t, http.MethodGet, "/api/v1/vaults/zzz", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, api.store.RecordVaultHistory(ctx, []models.VaultHistoryPoint{
		{VaultID: "a", Series: models.SeriesAPR, HistoryPoint: models.HistoryPoint{At: base, Value: decimal.NewFromInt(1)}},
		{VaultID: "a", Series: models.SeriesAPR, HistoryPoint: models.HistoryPoint{At: base.Add(20 * time.Minute), Value: decimal.NewFromInt(2)}},
		{VaultID: "a", Series: models.SeriesAPR, HistoryPoint: models.HistoryPoint{At: base.Add(70 * time.Minute), Value: decimal.NewFromInt(3)}},
	}))

	code, env = api.do(t, http.MethodGet, "/api/v1/vaults/a/history?series=apr", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]models.HistoryPoint](t, env), 3)

	code, env = api.do(t, http.MethodGet, "/api/v1/vaults/a/history?series=apr&bucket=1h", "", nil)
	require.Equal(t, http.StatusOK, code)
	points := decodeData[[]models.HistoryPoint](t, env)
	require.Len(t, points, 2)
	assert.Equal(t, "2", points[0].Value.String())

	code, _ = api.do(t, http.MethodGet, "/api/v1/vaults/a/history?series=volume", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = api.do(t, http.MethodGet, "/api/v1/vaults/a/history?bucket=-1h", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPositionEndpoints(t *testing.T) {
	api := newTestAPI(t)
	s := api.signUp(t, "l@example.com")
	api.store.PutMarket(context.Background(), models.Market{
		Asset:            "usdc",
		Kind:             models.MarketToken,
		Liquidity:        decimal.NewFromInt(1000),
		CollateralFactor: decimal.RequireFromString("0.5"),
	})

	code, env := api.do(t, http.MethodPost, "/api/v1/me/positions/usdc/supply", s.Token, map[string]string{"amount": "100"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "100", decodeData[models.Position](t, env).Supplied.String())

	code, env = api.do(t, http.MethodPost, "/api/v1/me/positions/usdc/borrow", s.Token, map[string]string{"amount": "60"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "insufficient collateral", env.Message)

	code, _ = api.do(t, http.MethodPost, "/api/v1/me/positions/usdc/stake", s.Token, map[string]string{"amount": "1"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(t, http.MethodPost, "/api/v1/me/positions/doge/supply", s.Token, map[string]string{"amount": "1"})
	assert.Equal(t, http.StatusNotFound, code)

	code, env = api.do(t, http.MethodGet, "/api/v1/me/positions", s.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]models.Position](t, env), 1)

	code, env = api.do(t, http.MethodGet, "/api/v1/markets", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "100", decodeData[[]models.Market](t, env)[0].TotalSupply.String())
}

func TestFeeds(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	for id, score := range map[string]int64{"u1": 10, "u2": 30, "u3": 20} {
		api.store.PutScore(ctx, models.LeaderboardEntry{UserID: id, Score: decimal.NewFromInt(score)})
	}
	api.store.PutAnnouncement(ctx, models.Announcement{Title: "Hello"})

	code, env := api.do(t, http.MethodGet, "/api/v1/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, code)
	board := decodeData[[]models.LeaderboardEntry](t, env)
	require.Len(t, board, 3)
	assert.Equal(t, "u2", board[0].UserID)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, 3, board[2].Rank)

	code, env = api.do(t, http.MethodGet, "/api/v1/leaderboard?limit=2", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]models.LeaderboardEntry](t, env), 2)

	code, env = api.do(t, http.MethodGet, "/api/v1/announcements", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.AnnouncementInfo, decodeData[[]models.Announcement](t, env)[0].Type)

	code, _ = api.do(t, http.MethodPost, "/api/v1/interest", "", map[string]string{"email": "bad"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = api.do(t, http.MethodPost, "/api/v1/interest", "", map[string]string{"email": "Fan@Example.com", "walletAddress": "0x1"})
	assert.Equal(t, http.StatusCreated, code)
	subs := api.store.InterestSubmissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "fan@example.com", subs[0].Email)
	assert.False(t, subs[0].SubmittedAt.IsZero())
}

func TestTools(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(t, http.MethodGet, "/api/v1/tools/convert?amount=100&from=sgd&to=usd", "", nil)
	require.Equal(t, http.StatusOK, code)
	conv := decodeData[map[string]string](t, env)
	assert.Equal(t, "74.00", conv["converted"])
	assert.Equal(t, "USD", conv["to"])

	code, _ = api.do(t, http.MethodGet, "/api/v1/tools/convert?amount=100&from=SGD&to=XYZ", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = api.do(t, http.MethodGet, "/api/v1/tools/convert?amount=lots&from=SGD&to=USD", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = api.do(t, http.MethodGet, "/api/v1/tools/reward?amount=1000&term=3m", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "12.50", decodeData[map[string]string](t, env)["estimatedReward"])

	code, env = api.do(t, http.MethodGet, "/api/v1/tools/reward?amount=abc&term=12m", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0.00", decodeData[map[string]string](t, env)["estimatedReward"])

	code, _ = api.do(t, http.MethodGet, "/api/v1/tools/reward?amount=1&term=1y", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnknownJSONBody(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
