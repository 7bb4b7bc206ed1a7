package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"chatroom-auth-service/internal/auth"
	"chatroom-auth-service/internal/chatroom"
	"chatroom-auth-service/internal/session"
	"chatroom-auth-service/internal/storage"
	mytesting "chatroom-auth-service/internal/testing"

	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func bootstrapServer(t *testing.T, opts ...Option) (*Server, *mockAuth, *mockPinger) {
	a := &mockAuth{}
	p := &mockPinger{}
	t.Cleanup(func() {
		a.AssertExpectations(t)
		p.AssertExpectations(t)
	})

	srv, err := NewServer(zap.NewNop().Sugar(), a, &mockChatrooms{}, p, opts...)
	require.NoError(t, err)

	return srv, a, p
}

func do(h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServerRoutesThroughMiddlewares(t *testing.T) {
	srv, a, _ := bootstrapServer(t)
	a.On("Login", mock.Anything, "alice", "pw1").Return(auth.Result{AccountID: 1, ChatroomsJoined: []int64{}}, nil).Once()

	rr := do(srv.Handler(), http.MethodPost, "/api/login", `{"username":"alice","password":"pw1"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(srv.Handler(), http.MethodGet, "/api/login", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestServerUnknownPath(t *testing.T) {
	srv, _, _ := bootstrapServer(t)

	rr := do(srv.Handler(), http.MethodPost, "/api/nope", `{}`, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServerHealthz(t *testing.T) {
	srv, _, p := bootstrapServer(t)
	p.On("Ping", mock.Anything).Return(nil).Once()
	p.On("Ping", mock.Anything).Return(errors.New("pool closed")).Once()

	rr := do(srv.Handler(), http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(srv.Handler(), http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestServerMetrics(t *testing.T) {
	srv, a, _ := bootstrapServer(t)
	a.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(auth.Result{}, nil).Once()

	do(srv.Handler(), http.MethodPost, "/api/login", `{"username":"alice","password":"pw1"}`, nil)

	rr := do(srv.Handler(), http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "chatroom_http_request_duration_seconds")
}

func TestServerCORS(t *testing.T) {
	srv, _, _ := bootstrapServer(t, AllowedOrigins("https://chat.example.com"))

	header := http.Header{}
	header.Set("Origin", "https://chat.example.com")
	header.Set("Access-Control-Request-Method", http.MethodPost)

	rr := do(srv.Handler(), http.MethodOptions, "/api/login", "", header)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "https://chat.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerTimeout(t *testing.T) {
	srv, a, _ := bootstrapServer(t, TimeoutHandler(10*time.Millisecond, "Request timed out"))
	a.On("Login", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(auth.Result{}, context.DeadlineExceeded).Once()

	rr := do(srv.Handler(), http.MethodPost, "/api/login", `{"username":"alice","password":"pw1"}`, nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "Request timed out", rr.Body.String())
}

func TestServerRecoversPanics(t *testing.T) {
	srv, a, _ := bootstrapServer(t)
	a.On("Login", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("boom") }).
		Return(auth.Result{}, nil).Once()

	rr := do(srv.Handler(), http.MethodPost, "/api/login", `{"username":"alice","password":"pw1"}`, nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestWithEnvConfig(t *testing.T) {
	srv, _, _ := bootstrapServer(t, WithEnvConfig(EnvConfig{Host: "127.0.0.1", Port: 8081}), ReadTimeout(time.Second))

	require.Equal(t, "127.0.0.1:8081", srv.httpServer.Addr)
	require.Equal(t, time.Second, srv.httpServer.ReadTimeout)
}

func TestRegisterAfterShutdown(t *testing.T) {
	called := 0
	srv, _, _ := bootstrapServer(t, RegisterAfterShutdown(func() { called++ }))

	require.Len(t, srv.afterShutdown, 1)
	srv.afterShutdown[0]()
	require.Equal(t, 1, called)
}

// bootstrapStack wires the real components on top of PostgreSQL; skipped when
// DB_HOST is not set
func bootstrapStack(t *testing.T) http.Handler {
	if os.Getenv("DB_HOST") == "" {
		t.Skip("DB_HOST is not set, skipping PostgreSQL integration test")
	}

	cfg := storage.Config{}
	require.NoError(t, env.Parse(&cfg))

	logger := zap.NewNop().Sugar()

	store, err := storage.New(context.Background(), logger, cfg, storage.ConnectionTimeout(5*time.Second))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(store.Close)

	sessions := session.NewManager(logger, store)
	facade, err := auth.NewFacade(logger, store, sessions, auth.WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	rooms := chatroom.NewController(logger, store, sessions, chatroom.WithHashCost(bcrypt.MinCost))

	srv, err := NewServer(logger, facade, rooms, store)
	require.NoError(t, err)

	return srv.Handler()
}

func post(t *testing.T, h http.Handler, path, body string) (int, *fastjson.Value) {
	rr := do(h, http.MethodPost, path, body, nil)
	if rr.Header().Get("Content-Type") != "application/json" {
		return rr.Code, nil
	}

	var p fastjson.Parser
	v, err := p.ParseBytes(rr.Body.Bytes())
	require.NoError(t, err)
	return rr.Code, v
}

func sessionBody(v *fastjson.Value) string {
	return `{"user_id":` + strconv.FormatInt(v.GetInt64("user_id"), 10) +
		`,"session_token":"` + string(v.GetStringBytes("session_token")) + `"}`
}

func TestScenario(t *testing.T) {
	h := bootstrapStack(t)

	alice, bob := mytesting.RandString(), mytesting.RandString()

	code, reg := post(t, h, "/api/register", `{"username":"`+alice+`","password":"pw1","email":"a@x.com"}`)
	require.Equal(t, http.StatusCreated, code)
	t1 := sessionBody(reg)

	code, _ = post(t, h, "/api/register", `{"username":"`+alice+`","password":"other","email":"a@x.com"}`)
	require.Equal(t, http.StatusConflict, code)

	code, login := post(t, h, "/api/login", `{"username":"`+alice+`","password":"pw1"}`)
	require.Equal(t, http.StatusOK, code)
	t2 := sessionBody(login)
	require.NotEqual(t, t1, t2)

	code, _ = post(t, h, "/api/session", t1)
	require.Equal(t, http.StatusUnauthorized, code)

	code, info := post(t, h, "/api/session", t2)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, alice, string(info.GetStringBytes("username")))

	code, room := post(t, h, "/api/chatroom/create", `{"user_session":`+t2+`,"chatroom_name":"Team"}`)
	require.Equal(t, http.StatusCreated, code)
	require.Len(t, room.GetStringBytes("chatroom_id"), chatroom.HumanIDLength)
	require.Len(t, room.GetArray("participants"), 1)
	uid := strconv.FormatInt(room.GetInt64("chatroom_uid"), 10)

	code, known := post(t, h, "/api/chatroom/fetch_known", `{"user_session":`+t2+`,"chatroom_uids":[`+uid+`]}`)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, known.GetArray("chatrooms"), 1)

	code, regBob := post(t, h, "/api/register", `{"username":"`+bob+`","password":"pw2","email":"b@x.com"}`)
	require.Equal(t, http.StatusCreated, code)
	bobSession := sessionBody(regBob)

	code, _ = post(t, h, "/api/chatroom/fetch_known", `{"user_session":`+bobSession+`,"chatroom_uids":[`+uid+`]}`)
	require.Equal(t, http.StatusForbidden, code)

	humanID := string(room.GetStringBytes("chatroom_id"))
	humanIDJSON := strconv.Quote(humanID)

	code, joined := post(t, h, "/api/chatroom/join", `{"user_session":`+bobSession+`,"chatroom_id":`+humanIDJSON+`}`)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, joined.GetArray("participants"), 2)

	code, _ = post(t, h, "/api/chatroom/fetch_known", `{"user_session":`+bobSession+`,"chatroom_uids":[`+uid+`]}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = post(t, h, "/api/logout", t2)
	require.Equal(t, http.StatusOK, code)
	code, _ = post(t, h, "/api/logout", t2)
	require.Equal(t, http.StatusOK, code)

	code, _ = post(t, h, "/api/session", t2)
	require.Equal(t, http.StatusUnauthorized, code)
}
