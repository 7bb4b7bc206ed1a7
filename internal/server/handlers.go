package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"chatroom-auth-service/internal/apperr"
	"chatroom-auth-service/internal/auth"
	"chatroom-auth-service/internal/chatroom"
	"chatroom-auth-service/internal/session"

	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

type handler struct {
	logger    *zap.SugaredLogger
	auth      Authenticator
	chatrooms Chatrooms
	parsers   *fastjson.ParserPool
}

// statusFor maps error kinds to HTTP status codes
func statusFor(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrInvalidInput:
		return http.StatusBadRequest
	case apperr.ErrInvalidSession:
		return http.StatusUnauthorized
	case apperr.ErrForbidden:
		return http.StatusForbidden
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(err)
	}

	msg := http.StatusText(status)
	if errors.Is(err, apperr.ErrInvalidInput) {
		msg = err.Error()
	}
	http.Error(w, msg, status)
}

func (h *handler) respond(w http.ResponseWriter, status int, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
	}
}

// parse reads the body already validated by enforcePOSTJSON
func (h *handler) parse(r *http.Request) (*fastjson.Parser, *fastjson.Value, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, err
	}

	parser := h.parsers.Get()
	v, err := parser.ParseBytes(body)
	if err != nil {
		h.parsers.Put(parser)
		return nil, nil, err
	}
	if v.Type() != fastjson.TypeObject {
		h.parsers.Put(parser)
		return nil, nil, errors.New("body must be a JSON object")
	}
	return parser, v, nil
}

func requiredString(v *fastjson.Value, field string) (string, string) {
	if !v.Exists(field) {
		return "", "Missing Field \"" + field + "\""
	}

	b, err := v.Get(field).StringBytes()
	if err != nil {
		return "", "Field \"" + field + "\" must be a string"
	}
	return string(b), ""
}

// optionalString treats a missing field and null the same
func optionalString(v *fastjson.Value, field string) (*string, string) {
	fv := v.Get(field)
	if fv == nil || fv.Type() == fastjson.TypeNull {
		return nil, ""
	}

	b, err := fv.StringBytes()
	if err != nil {
		return nil, "Field \"" + field + "\" must be a string or null"
	}
	s := string(b)
	return &s, ""
}

func parseSession(v *fastjson.Value) (session.Session, string) {
	if !v.Exists("user_id") {
		return session.Session{}, "Missing Field \"user_id\""
	}

	userID, err := v.Get("user_id").Int64()
	if err != nil {
		return session.Session{}, "Field \"user_id\" must be a 64-bit integer value"
	}

	if userID < 1 {
		return session.Session{}, "Field \"user_id\" must be a valid user id greater than zero"
	}

	raw, msg := requiredString(v, "session_token")
	if msg != "" {
		return session.Session{}, msg
	}

	token, err := session.ParseToken(raw)
	if err != nil {
		return session.Session{}, "Field \"session_token\" must be a base64 encoded 32-byte token"
	}

	return session.Session{AccountID: userID, Token: token}, ""
}

// parseUserSession extracts the nested "user_session" object
func parseUserSession(v *fastjson.Value) (session.Session, string) {
	sv := v.Get("user_session")
	if sv == nil {
		return session.Session{}, "Missing Field \"user_session\""
	}
	if sv.Type() != fastjson.TypeObject {
		return session.Session{}, "Field \"user_session\" must be an object"
	}
	return parseSession(sv)
}

// register handles HTTP requests on "/api/register" endpoint
func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	parser, v, err := h.parse(r)
	if err != nil {
		http.Error(w, "Malformed JSON", http.StatusBadRequest)
		return
	}
	defer h.parsers.Put(parser)

	var in auth.RegisterInput
	fields := []struct {
		name string
		dst  *string
	}{
		{"username", &in.Username},
		{"password", &in.Password},
		{"email", &in.Email},
	}
	for _, f := range fields {
		s, msg := requiredString(v, f.name)
		if msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}
		*f.dst = s
	}

	res, err := h.auth.Register(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.respond(w, http.StatusCreated, res)
}

// login handles HTTP requests on "/api/login" endpoint
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	parser, v, err := h.parse(r)
	if err != nil {
		http.Error(w, "Malformed JSON", http.StatusBadRequest)
		return
	}
	defer h.parsers.Put(parser)

	username, msg := requiredString(v, "username")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	password, msg := requiredString(v, "password")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	res, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.respond(w, http.StatusOK, res)
}

// continueSession handles HTTP requests on "/api/session" endpoint
func (h *handler) continueSession(w http.ResponseWriter, r *http.Request) {
	parser, v, err := h.parse(r)
	if err != nil {
		http.Error(w, "Malformed JSON", http.StatusBadRequest)
		return
	}
	defer h.parsers.Put(parser)

	s, msg := parseSession(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	info, err := h.auth.ContinueSession(r.Context(), s.AccountID, s.Token)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.respond(w, http.StatusOK, info)
}

// logout handles HTTP requests on "/api/logout" endpoint
func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	parser, v, err := h.parse(r)
	if err != nil {
		http.Error(w, "Malformed JSON", http.StatusBadRequest)
		return
	}
	defer h.parsers.Put(parser)

	raw, msg := requiredString(v, "session_token")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	token, err := session.ParseToken(raw)
	if err != nil {
		http.Error(w, "Field \"session_token\" must be a base64 encoded 32-byte token", http.StatusBadRequest)
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		h.fail(w, err)
		return
	}

	h.respond(w, http.StatusOK, struct{}{})
}

// fetchChatroom handles HTTP requests on "/api/chatroom/fetch" endpoint
func (h *handler) fetchChatroom(w http.ResponseWriter, r *http.Request) {
	h.byHumanID(w, r, h.chatrooms.FetchByHumanID)
}

// joinChatroom handles HTTP requests on "/api/chatroom/join" endpoint
func (h *handler) joinChatroom(w http.ResponseWriter, r *http.Request) {
	h.byHumanID(w, r, h.chatrooms.Join)
}

type humanIDOperation func(ctx context.Context, s session.Session, humanID string, password *string) (chatroom.Chatroom, error)

func (h *handler) byHumanID(w http.ResponseWriter, r *http.Request, op humanIDOperation) {
	parser, v, err := h.parse(r)
	if err != nil {
		http.Error(w, "Malformed JSON", http.StatusBadRequest)
		return
	}
	defer h.parsers.Put(parser)

	s, msg := parseUserSession(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	humanID, msg := requiredString(v, "chatroom_id")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	password, msg := optionalString(v, "password")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	room, err := op(r.Context(), s, humanID, password)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.respond(w, http.StatusOK, room)
}

// fetchKnownChatrooms handles HTTP requests on "/api/chatroom/fetch_known" endpoint
func (h *handler) fetchKnownChatrooms(w http.ResponseWriter, r *http.Request) {
	parser, v, err := h.parse(r)
	if err != nil {
		http.Error(w, "Malformed JSON", http.StatusBadRequest)
		return
	}
	defer h.parsers.Put(parser)

	s, msg := parseUserSession(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if !v.Exists("chatroom_uids") {
		http.Error(w, "Missing Field \"chatroom_uids\"", http.StatusBadRequest)
		return
	}

	values, err := v.Get("chatroom_uids").Array()
	if err != nil {
		http.Error(w, "Field \"chatroom_uids\" must be an array", http.StatusBadRequest)
		return
	}

	ids := make([]int64, 0, len(values))
	for _, iv := range values {
		id, err := iv.Int64()
		if err != nil {
			http.Error(w, "Each item in \"chatroom_uids\" array field must be a 64-bit integer value", http.StatusBadRequest)
			return
		}

		if id < 1 {
			http.Error(w, "Each integer in \"chatroom_uids\" array must be a valid chatroom id greater than zero", http.StatusBadRequest)
			return
		}
		ids = append(ids, id)
	}

	rooms, err := h.chatrooms.FetchKnown(r.Context(), s, ids)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.respond(w, http.StatusOK, struct {
		Chatrooms []chatroom.Chatroom `json:"chatrooms"`
	}{Chatrooms: rooms})
}

// createChatroom handles HTTP requests on "/api/chatroom/create" endpoint
func (h *handler) createChatroom(w http.ResponseWriter, r *http.Request) {
	parser, v, err := h.parse(r)
	if err != nil {
		http.Error(w, "Malformed JSON", http.StatusBadRequest)
		return
	}
	defer h.parsers.Put(parser)

	s, msg := parseUserSession(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	name, msg := requiredString(v, "chatroom_name")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	password, msg := optionalString(v, "chatroom_passw")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	room, err := h.chatrooms.Create(r.Context(), s, name, password)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.respond(w, http.StatusCreated, room)
}
