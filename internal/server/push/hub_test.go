package push

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atinyakov/folio/internal/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_PublishReachesEverySubscriber(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	a, b := dial(t, srv), dial(t, srv)
	waitFor(t, func() bool { return hub.Subscribers() == 2 })

	frame := models.PushFrame{
		Event: models.EventNewContactMessage,
		Data:  models.NewMessageEvent{ID: "m1", SenderName: "Ann", SenderEmail: "ann@example.com", Message: "Hi"},
	}
	hub.Publish(frame)

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got models.PushFrame
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("read: %v", err)
		}
		if got != frame {
			t.Errorf("frame = %+v; want %+v", got, frame)
		}
	}
}

func TestHub_DisconnectUnsubscribes(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn := dial(t, srv)
	waitFor(t, func() bool { return hub.Subscribers() == 1 })
	conn.Close()
	waitFor(t, func() bool { return hub.Subscribers() == 0 })

	hub.Publish(models.PushFrame{Event: models.EventNewContactMessage})
}

func TestHub_PublishDoesNotWaitForStalledSubscriber(t *testing.T) {
	hub := NewHub(zap.NewNop())
	// The server side is registered without a writer, so its queue only
	// fills up, like a socket that stopped draining.
	registered := make(chan *client, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := hub.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		registered <- hub.add(conn)
	}))
	defer srv.Close()

	dial(t, srv)
	stalled := <-registered

	start := time.Now()
	for i := 0; i < SendQueue+1; i++ {
		hub.Publish(models.PushFrame{Event: models.EventNewContactMessage})
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Publish took %v with a stalled subscriber", elapsed)
	}
	if n := hub.Subscribers(); n != 0 {
		t.Errorf("subscribers = %d; want the stalled one dropped", n)
	}
	// Removing twice must not close the queue twice.
	hub.remove(stalled)
}
