package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"listing-chat/config"
	"listing-chat/controllers"
	"listing-chat/crypto"
	"listing-chat/middlewares"
	"listing-chat/models"
	"listing-chat/services"
	"listing-chat/workers"
)

var testSecret = []byte("routes-test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	hub    *services.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := config.InitDB(config.Database{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "chat.db")})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := zerolog.Nop()
	keys := crypto.NewKeyManager()
	dispatcher := workers.NewDispatcher(2, 8, crypto.Decrypt)
	dispatcher.Start()
	t.Cleanup(dispatcher.Stop)

	hub := services.NewHub(8, log)
	directory := services.NewConversationDirectory(db, keys, services.NewGormListingCatalog(db), log)
	messages := services.NewMessageService(db, directory, keys, dispatcher, hub, services.DefaultMaxMessageLength, log)
	ctl := controllers.New(directory, messages, hub, log)

	require.NoError(t, db.Create(&models.Listing{ID: "listing-42", SellerID: "B", Title: "bike"}).Error)

	return &testServer{
		router: RegisterRoutes(ctl, config.Server{}, testSecret, log),
		db:     db,
		hub:    hub,
	}
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := middlewares.IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) openConversation(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/conversations", "A", gin.H{"listingId": "listing-42", "counterpartyId": "B"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := decode[map[string]string](t, w)["conversationId"]
	require.NotEmpty(t, id)
	return id
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMe(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/me", "A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"A"}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConversationFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.openConversation(t)

	// Seller opening from their side lands on the same conversation.
	w := s.do(t, http.MethodPost, "/conversations", "B", gin.H{"listingId": "listing-42", "counterpartyId": "A"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode[map[string]string](t, w)["conversationId"])

	w = s.do(t, http.MethodPost, "/conversations/"+id+"/messages", "A", gin.H{"content": "Is this still available?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sent := decode[map[string]string](t, w)
	assert.NotEmpty(t, sent["messageId"])
	assert.NotEmpty(t, sent["createdAt"])

	w = s.do(t, http.MethodPost, "/conversations/"+id+"/messages", "B", gin.H{"content": "Yes"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/conversations/"+id+"/messages", "B", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]map[string]interface{}](t, w)
	require.Len(t, history, 2)
	assert.Equal(t, "A", history[0]["senderId"])
	assert.Equal(t, "Is this still available?", history[0]["content"])
	assert.Equal(t, "B", history[1]["senderId"])
	assert.Equal(t, "Yes", history[1]["content"])
	assert.Equal(t, sent["messageId"], history[0]["id"])

	w = s.do(t, http.MethodPost, "/conversations/"+id+"/read", "B", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":1}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/conversations", "A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "channel")
	list := decode[[]map[string]interface{}](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0]["conversationId"])
	assert.Equal(t, "listing-42", list[0]["listingId"])
	assert.Equal(t, "A", list[0]["buyerId"])
	assert.Equal(t, "B", list[0]["sellerId"])

	w = s.do(t, http.MethodDelete, "/conversations/"+id, "A", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/conversations/"+id+"/messages", "A", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversationErrors(t *testing.T) {
	s := newTestServer(t)
	id := s.openConversation(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   interface{}
		status int
		code   string
	}{
		{"unauthenticated create", http.MethodPost, "/conversations", "", gin.H{"listingId": "listing-42", "counterpartyId": "B"}, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"malformed create body", http.MethodPost, "/conversations", "A", "{not json", http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"self conversation", http.MethodPost, "/conversations", "A", gin.H{"listingId": "listing-42", "counterpartyId": "A"}, http.StatusBadRequest, "INVALID_PARTICIPANTS"},
		{"unknown listing", http.MethodPost, "/conversations", "A", gin.H{"listingId": "nope", "counterpartyId": "B"}, http.StatusNotFound, "NOT_FOUND"},
		{"outsider sends", http.MethodPost, "/conversations/" + id + "/messages", "C", gin.H{"content": "hi"}, http.StatusForbidden, "PERMISSION_DENIED"},
		{"outsider reads", http.MethodGet, "/conversations/" + id + "/messages", "C", nil, http.StatusForbidden, "PERMISSION_DENIED"},
		{"outsider deletes", http.MethodDelete, "/conversations/" + id, "C", nil, http.StatusForbidden, "PERMISSION_DENIED"},
		{"missing conversation", http.MethodGet, "/conversations/7d0d4c43-1b7e-4a36-9d1a-0b6a1c2f1e11/messages", "A", nil, http.StatusNotFound, "NOT_FOUND"},
		{"empty content", http.MethodPost, "/conversations/" + id + "/messages", "A", gin.H{"content": ""}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"content too long", http.MethodPost, "/conversations/" + id + "/messages", "A", gin.H{"content": strings.Repeat("x", 2001)}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"malformed message body", http.MethodPost, "/conversations/" + id + "/messages", "A", "[]", http.StatusBadRequest, "INVALID_ARGUMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[map[string]string](t, w)["code"])
		})
	}

	// Rejected sends store nothing.
	var count int64
	require.NoError(t, s.db.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStream(t *testing.T) {
	s := newTestServer(t)
	id := s.openConversation(t)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/conversations/" + id + "/stream"

	_, resp, err := websocket.DefaultDialer.Dial(base+"?token="+tokenFor(t, "C"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+tokenFor(t, "B"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.Subscribers(id) == 1 }, time.Second, 10*time.Millisecond)

	w := s.do(t, http.MethodPost, "/conversations/"+id+"/messages", "A", gin.H{"content": "private words"})
	require.Equal(t, http.StatusOK, w.Code)
	messageID := decode[map[string]string](t, w)["messageId"]

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "private words")

	var ev services.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, services.EventMessageCreated, ev.Type)
	assert.Equal(t, id, ev.ConversationID)
	assert.Equal(t, messageID, ev.MessageID)
	assert.Equal(t, "A", ev.SenderID)

	// Deleting the conversation ends the stream.
	w = s.do(t, http.MethodDelete, "/conversations/"+id, "B", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
