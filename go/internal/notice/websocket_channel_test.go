package notice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/ctfsession/go/internal/models"
)

func TestWebsocketChannelDeliversFrames(t *testing.T) {
	blood, _ := models.NewNotice(models.NoticeSecondBlood, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC), []string{"alpha", "web"})
	frame, err := EncodeFrame(blood)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	var gotAuth string
	var authMu sync.Mutex
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authMu.Lock()
		gotAuth = r.Header.Get("Authorization")
		authMu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ReceivedGameNotice","message":"broken"}`))
		conn.WriteMessage(websocket.TextMessage, frame)
		// Hold the connection until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/hub/user?game=1"
	header := http.Header{}
	header.Set("Authorization", "Bearer secret")
	ch := NewWebsocketChannel(url, header, DefaultWebsocketConfig())

	l := &recordingListener{}
	p := NewProcessor(1, &fakeFetcher{}, ch, l, clockwork.NewFakeClock())
	p.SetTeamName("alpha")
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		l.mu.Lock()
		n := len(l.celebrations)
		l.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("blood frame never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if feed := p.Feed(); len(feed) != 1 || feed[0].Blood.Rank != 2 {
		t.Fatalf("unexpected feed %+v", feed)
	}
	authMu.Lock()
	defer authMu.Unlock()
	if gotAuth != "Bearer secret" {
		t.Fatalf("auth header not sent, got %q", gotAuth)
	}
}

func TestWebsocketChannelOpenFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ch := NewWebsocketChannel("ws"+strings.TrimPrefix(srv.URL, "http"), nil, DefaultWebsocketConfig())
	if err := ch.Open(context.Background(), func([]byte) {}); err == nil {
		t.Fatalf("expected handshake failure")
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("Close on an unopened channel: %v", err)
	}
}

func TestWebsocketChannelCanReopen(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ch := NewWebsocketChannel("ws"+strings.TrimPrefix(srv.URL, "http"), nil, DefaultWebsocketConfig())
	for i := 0; i < 2; i++ {
		if err := ch.Open(context.Background(), func([]byte) {}); err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		if err := ch.Open(context.Background(), func([]byte) {}); err == nil {
			t.Fatalf("double open should fail")
		}
		if err := ch.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
}
