package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/humanarch/internal/app"
	"github.com/terra-clan/humanarch/internal/community"
	"github.com/terra-clan/humanarch/internal/config"
	"github.com/terra-clan/humanarch/internal/content"
	"github.com/terra-clan/humanarch/internal/events"
	"github.com/terra-clan/humanarch/internal/models"
	"github.com/terra-clan/humanarch/internal/storage"
)

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type testEnv struct {
	srv   *httptest.Server
	clock clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	loader := content.NewLoader()
	require.NoError(t, loader.LoadDefaults())

	clock := clockwork.NewFakeClockAt(time.Now())
	bus := events.NewBus(64)
	repo := storage.NewMemoryRepository(storage.WithClock(clock))
	registry := app.NewRegistry(loader, repo, app.Config{Clock: clock, Bus: bus})
	guild := community.NewMemoryGuild(loader.SeedPosts(), community.WithClock(clock), community.WithBus(bus))

	server := NewServer(
		config.ServerConfig{Host: "127.0.0.1", Port: 8080, RequestTimeout: 5 * time.Second},
		config.CORSConfig{AllowedOrigins: []string{"*"}},
		10,
		Deps{Registry: registry, Content: loader, Guild: guild, Bus: bus, Repo: repo},
	)
	srv := httptest.NewServer(server.Router())

	t.Cleanup(func() {
		srv.Close()
		registry.Close(context.Background())
		guild.Close()
		bus.Close()
	})
	return &testEnv{srv: srv, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers ...string) (int, testResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out testResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (e *testEnv) createSession(t *testing.T, req models.CreateSessionRequest) models.Session {
	t.Helper()
	status, resp := e.do(t, http.MethodPost, "/api/v1/sessions", req)
	require.Equal(t, http.StatusCreated, status)
	return decode[models.Session](t, resp.Data)
}

func TestHealthAndReady(t *testing.T) {
	e := newTestEnv(t)

	status, resp := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)

	status, resp = e.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
}

func TestCreateAndGetSession(t *testing.T) {
	e := newTestEnv(t)

	status, resp := e.do(t, http.MethodPost, "/api/v1/sessions", nil, "Accept-Language", "ru-RU,ru;q=0.9")
	require.Equal(t, http.StatusCreated, status)
	sess := decode[models.Session](t, resp.Data)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, models.LangRU, sess.Language)
	assert.Equal(t, models.ThemeDark, sess.Theme)
	assert.Equal(t, models.ViewHome, sess.View)
	assert.Equal(t, "#home", sess.Fragment)

	status, resp = e.do(t, http.MethodGet, "/api/v1/sessions/"+sess.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, sess.ID, decode[models.Session](t, resp.Data).ID)

	status, resp = e.do(t, http.MethodGet, "/api/v1/sessions/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "session_not_found", resp.Error.Code)

	status, resp = e.do(t, http.MethodPost, "/api/v1/sessions", models.CreateSessionRequest{Language: "klingon"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", resp.Error.Code)

	status, _ = e.do(t, http.MethodDelete, "/api/v1/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = e.do(t, http.MethodGet, "/api/v1/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRoute(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createSession(t, models.CreateSessionRequest{})
	path := "/api/v1/sessions/" + sess.ID + "/route"

	tests := []struct {
		fragment   string
		view       models.View
		redirected bool
	}{
		{"#journal", models.ViewJournal, false},
		{"#bogus", models.ViewHome, true},
		{"", models.ViewHome, true},
		{"#home?section=assessment", models.ViewHome, false},
		{"#checkout", models.ViewCheckout, false},
	}
	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			status, resp := e.do(t, http.MethodPost, path, models.RouteRequest{Fragment: tt.fragment})
			require.Equal(t, http.StatusOK, status)
			route := decode[models.RouteResponse](t, resp.Data)
			assert.Equal(t, tt.view, route.View)
			assert.Equal(t, tt.redirected, route.Redirected)
		})
	}

	status, resp := e.do(t, http.MethodPost, path, models.RouteRequest{Fragment: "#home?section=assessment"})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[models.RouteResponse](t, resp.Data).ScrollToAssessment)

	// the route is part of the stored session
	_, resp = e.do(t, http.MethodGet, "/api/v1/sessions/"+sess.ID, nil)
	assert.Equal(t, models.ViewHome, decode[models.Session](t, resp.Data).View)
}

func TestPreferences(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createSession(t, models.CreateSessionRequest{})
	path := "/api/v1/sessions/" + sess.ID + "/preferences"

	status, resp := e.do(t, http.MethodPut, path, models.PreferencesRequest{Language: "ru", Theme: "light"})
	require.Equal(t, http.StatusOK, status)
	prefs := decode[models.PreferencesRequest](t, resp.Data)
	assert.Equal(t, "ru", prefs.Language)
	assert.Equal(t, "light", prefs.Theme)

	status, resp = e.do(t, http.MethodPut, path, models.PreferencesRequest{Theme: "neon"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", resp.Error.Code)
}

func TestAssessmentFlow(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createSession(t, models.CreateSessionRequest{})
	base := "/api/v1/sessions/" + sess.ID + "/assessment"

	status, resp := e.do(t, http.MethodPost, base+"/answer", models.AnswerRequest{QuestionID: 1, Value: 3})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_transition", resp.Error.Code)

	status, resp = e.do(t, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, status)
	view := decode[app.AssessmentView](t, resp.Data)

	status, resp = e.do(t, http.MethodPost, base+"/answer", models.AnswerRequest{QuestionID: view.Question.ID, Value: 9})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", resp.Error.Code)

	for view.Question != nil {
		status, resp = e.do(t, http.MethodPost, base+"/answer", models.AnswerRequest{QuestionID: view.Question.ID, Value: 1})
		require.Equal(t, http.StatusOK, status)
		view = decode[app.AssessmentView](t, resp.Data)
	}
	assert.Equal(t, models.PhaseProcessing, view.Phase)

	status, _ = e.do(t, http.MethodPost, base+"/reset", nil)
	assert.Equal(t, http.StatusConflict, status)

	e.clock.Advance(app.DefaultTiming().Assessment)
	require.Eventually(t, func() bool {
		_, resp := e.do(t, http.MethodGet, base, nil)
		return decode[app.AssessmentView](t, resp.Data).Phase == models.PhaseResult
	}, time.Second, 10*time.Millisecond)

	_, resp = e.do(t, http.MethodGet, base, nil)
	view = decode[app.AssessmentView](t, resp.Data)
	require.NotNil(t, view.Report)
	assert.Equal(t, 80, view.Report.Integrity)
	assert.Empty(t, view.Report.Critical)
	assert.Empty(t, view.Diagnosis)

	status, resp = e.do(t, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.PhaseIntro, decode[app.AssessmentView](t, resp.Data).Phase)
}

func TestCartAndCheckout(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createSession(t, models.CreateSessionRequest{})
	base := "/api/v1/sessions/" + sess.ID

	status, resp := e.do(t, http.MethodPost, base+"/checkout", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "empty_cart", resp.Error.Code)

	status, resp = e.do(t, http.MethodPost, base+"/cart", models.AddToCartRequest{ProductID: "missing"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "product_not_found", resp.Error.Code)

	e.do(t, http.MethodPost, base+"/cart", models.AddToCartRequest{ProductID: "architecture-of-the-human"})
	status, resp = e.do(t, http.MethodPost, base+"/cart", models.AddToCartRequest{ProductID: "architecture-ebook"})
	require.Equal(t, http.StatusOK, status)
	cart := decode[models.CartResponse](t, resp.Data)
	assert.Len(t, cart.Items, 2)
	assert.Equal(t, 62.0, cart.Total)

	status, _ = e.do(t, http.MethodDelete, base+"/cart/5", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = e.do(t, http.MethodDelete, base+"/cart/x", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = e.do(t, http.MethodPost, base+"/checkout", models.CheckoutRequest{CompleteView: "attic"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = e.do(t, http.MethodPost, base+"/checkout", models.CheckoutRequest{CompleteView: "journal"})
	require.Equal(t, http.StatusAccepted, status)
	receipt := decode[models.Receipt](t, resp.Data)
	assert.Equal(t, models.PurchaseProcessing, receipt.Status)
	assert.Equal(t, 62.0, receipt.Total)

	status, resp = e.do(t, http.MethodPost, base+"/checkout", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "purchase_pending", resp.Error.Code)

	receiptStatus := func() models.PurchaseStatus {
		_, resp := e.do(t, http.MethodGet, base+"/checkout", nil)
		return decode[models.Receipt](t, resp.Data).Status
	}

	e.clock.Advance(app.DefaultTiming().Purchase)
	require.Eventually(t, func() bool { return receiptStatus() == models.PurchaseSuccess }, time.Second, 10*time.Millisecond)

	e.clock.Advance(app.DefaultTiming().Completion)
	require.Eventually(t, func() bool { return receiptStatus() == models.PurchaseComplete }, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, resp := e.do(t, http.MethodGet, base, nil)
		s := decode[models.Session](t, resp.Data)
		return s.View == models.ViewJournal && len(s.Cart) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestContent(t *testing.T) {
	e := newTestEnv(t)

	status, resp := e.do(t, http.MethodGet, "/api/v1/content/translations?lang=ru", nil)
	require.Equal(t, http.StatusOK, status)
	tr := decode[struct {
		Language     string            `json:"language"`
		Translations map[string]string `json:"translations"`
	}](t, resp.Data)
	assert.Equal(t, "ru", tr.Language)
	assert.Equal(t, "Главная", tr.Translations["nav.home"])

	status, resp = e.do(t, http.MethodGet, "/api/v1/content/translations", nil, "Accept-Language", "ru")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(resp.Data), `"language":"ru"`)

	status, _ = e.do(t, http.MethodGet, "/api/v1/content/products", nil)
	assert.Equal(t, http.StatusOK, status)

	status, resp = e.do(t, http.MethodGet, "/api/v1/content/products/architecture-ebook", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 17.0, decode[models.Product](t, resp.Data).Price)

	status, _ = e.do(t, http.MethodGet, "/api/v1/content/products/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, resp = e.do(t, http.MethodGet, "/api/v1/content/questions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(resp.Data), `"total":6`)

	status, _ = e.do(t, http.MethodGet, "/api/v1/content/posts/load-bearing-habits", nil)
	assert.Equal(t, http.StatusOK, status)
	status, resp = e.do(t, http.MethodGet, "/api/v1/content/posts/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "post_not_found", resp.Error.Code)
}

func TestCommunity(t *testing.T) {
	e := newTestEnv(t)

	status, resp := e.do(t, http.MethodPost, "/api/v1/community/members", models.RegisterMemberRequest{Name: "Ada", Email: "nope"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", resp.Error.Code)

	status, resp = e.do(t, http.MethodPost, "/api/v1/community/members", models.RegisterMemberRequest{Name: "Ada", Email: "ada@example.com"})
	require.Equal(t, http.StatusAccepted, status)
	member := decode[models.Member](t, resp.Data)
	assert.Equal(t, models.MemberPending, member.Status)

	status, resp = e.do(t, http.MethodPost, "/api/v1/community/posts", models.CreatePostRequest{MemberID: member.ID, Body: "hello"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not_registered", resp.Error.Code)

	e.clock.Advance(community.DefaultRegistrationDelay)
	require.Eventually(t, func() bool {
		_, resp := e.do(t, http.MethodGet, "/api/v1/community/members/"+member.ID, nil)
		return decode[models.Member](t, resp.Data).Status == models.MemberRegistered
	}, time.Second, 10*time.Millisecond)

	status, resp = e.do(t, http.MethodPost, "/api/v1/community/posts", models.CreatePostRequest{MemberID: member.ID, Body: "hello"})
	require.Equal(t, http.StatusCreated, status)
	post := decode[models.CommunityPost](t, resp.Data)

	status, resp = e.do(t, http.MethodPost, "/api/v1/community/posts/"+post.ID+"/like", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decode[models.CommunityPost](t, resp.Data).Likes)

	status, resp = e.do(t, http.MethodGet, "/api/v1/community/posts?limit=2", nil)
	require.Equal(t, http.StatusOK, status)
	feed := decode[struct {
		Posts []models.CommunityPost `json:"posts"`
	}](t, resp.Data)
	require.Len(t, feed.Posts, 2)
	assert.Equal(t, post.ID, feed.Posts[0].ID)

	status, _ = e.do(t, http.MethodGet, "/api/v1/community/members/ghost", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSessionEventStream(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createSession(t, models.CreateSessionRequest{})

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/v1/sessions/" + sess.ID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "connected", msg.Type)

	status, _ := e.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/route", models.RouteRequest{Fragment: "#library"})
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "event", msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, events.TypeViewChanged, msg.Event.Type)
	assert.Equal(t, sess.ID, msg.Event.Topic)
}

func TestSessionEventStream_UnknownSession(t *testing.T) {
	e := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/v1/sessions/nope/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
