package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adambraimbridge/webchat/pkg/ingest"
	"github.com/adambraimbridge/webchat/pkg/models"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	apiKey string
	userID string
	body   []byte
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *recordedRequest) {
	t.Helper()
	last := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last.method = r.Method
		last.path = r.URL.Path
		last.query = r.URL.RawQuery
		last.apiKey = r.Header.Get("X-API-Key")
		last.userID = r.Header.Get("X-User-ID")
		last.body, _ = io.ReadAll(r.Body)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, SessionID: "s1", APIKey: "k1", UserID: "u1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, last
}

func respond(w http.ResponseWriter, env interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(env)
}

func TestInit(t *testing.T) {
	c, last := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]interface{}{
			"success": true,
			"data": models.SessionSnapshot{
				SessionID:    "s1",
				Status:       models.StatusActive,
				ContentOrder: models.OrderChronological,
				Channel:      "/v1/sessions/s1/stream",
			},
		})
	})

	snap, err := c.Init(context.Background())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if snap.Status != models.StatusActive || snap.Channel != "/v1/sessions/s1/stream" {
		t.Fatalf("snapshot: %+v", snap)
	}
	if last.path != "/v1/sessions/s1/init" || last.method != http.MethodGet {
		t.Fatalf("request: %s %s", last.method, last.path)
	}
	if last.apiKey != "k1" || last.userID != "u1" {
		t.Fatalf("auth headers missing: %+v", last)
	}
}

func TestInitRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]interface{}{"success": false, "reason": "unknown session"})
	})
	if _, err := c.Init(context.Background()); err == nil {
		t.Fatalf("expected rejection to surface")
	}
}

func TestCatchupDirections(t *testing.T) {
	c, last := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]interface{}{
			"success": true,
			"data":    []models.Event{{Kind: models.EventStartSession}},
		})
	})

	evts, err := c.Catchup(context.Background(), models.OrderChronological)
	if err != nil || len(evts) != 1 {
		t.Fatalf("Catchup: %v (%d)", err, len(evts))
	}
	if last.query != "direction=chronological" {
		t.Fatalf("query: %q", last.query)
	}

	if _, err := c.Catchup(context.Background(), models.OrderReverseChronological); err != nil {
		t.Fatalf("Catchup reverse: %v", err)
	}
	if last.query != "direction=reversechronological" {
		t.Fatalf("query: %q", last.query)
	}
}

func TestActionsRouting(t *testing.T) {
	c, last := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]interface{}{"success": true})
	})
	ctx := context.Background()

	res, err := c.SendMessage(ctx, ingest.MessageData{Message: "hi"})
	if err != nil || !res.Success {
		t.Fatalf("SendMessage: %v %+v", err, res)
	}
	if last.method != http.MethodPost || last.path != "/v1/sessions/s1/messages" {
		t.Fatalf("send: %s %s", last.method, last.path)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(last.body, &body); err != nil || body["message"] != "hi" {
		t.Fatalf("send body: %s (%v)", last.body, err)
	}

	if _, err := c.EditMessage(ctx, ingest.MessageData{MessageID: "m1", Message: "edit"}); err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if last.method != http.MethodPut || last.path != "/v1/sessions/s1/messages/m1" {
		t.Fatalf("edit: %s %s", last.method, last.path)
	}

	if _, err := c.DeleteMessage(ctx, "m1"); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if last.method != http.MethodDelete || last.path != "/v1/sessions/s1/messages/m1" {
		t.Fatalf("delete: %s %s", last.method, last.path)
	}

	if _, err := c.BlockMessage(ctx, "m1"); err != nil {
		t.Fatalf("BlockMessage: %v", err)
	}
	if last.path != "/v1/sessions/s1/messages/m1/block" {
		t.Fatalf("block: %s", last.path)
	}

	if _, err := c.StartSession(ctx); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if last.path != "/v1/sessions/s1/start" {
		t.Fatalf("start: %s", last.path)
	}

	if _, err := c.EndSession(ctx); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if last.path != "/v1/sessions/s1/end" {
		t.Fatalf("end: %s", last.path)
	}
}

func TestActionRejectionCarriesReason(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]interface{}{"success": false, "reason": "session is closed"})
	})
	res, err := c.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if res.Success || res.Reason != "session is closed" {
		t.Fatalf("result: %+v", res)
	}
}

func TestServerErrorIsTransportError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if _, err := c.EndSession(context.Background()); err == nil {
		t.Fatalf("expected 5xx surfaced as error")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{SessionID: "s1"}); err == nil {
		t.Fatalf("expected missing base URL rejected")
	}
	if _, err := New(Config{BaseURL: "http://x"}); err == nil {
		t.Fatalf("expected missing session id rejected")
	}
}
