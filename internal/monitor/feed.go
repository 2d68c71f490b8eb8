package monitor

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koltyakov/snare/internal/domain"
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
	// Dashboards connect from file:// or localhost pages.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Feed broadcasts access records to connected websocket clients. Wire
// it as the tailer's onRecord callback.
type Feed struct {
	log *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewFeed(logger *slog.Logger) *Feed {
	return &Feed{log: logger, conns: make(map[*websocket.Conn]struct{})}
}

// Handler upgrades the request and keeps the connection registered
// until the peer closes it. Client frames are read and discarded so
// control messages keep flowing.
func (f *Feed) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := feedUpgrader.Upgrade(w, r, nil)
		if err != nil {
			f.log.Warn("websocket upgrade failed", "error", err)
			return
		}
		f.add(conn)
		defer f.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

// Broadcast sends rec to every connected client. Clients that fail to
// accept the write are dropped.
func (f *Feed) Broadcast(rec domain.AccessRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(rec); err != nil {
			f.log.Debug("dropping slow feed client", "error", err)
			_ = conn.Close()
			delete(f.conns, conn)
		}
	}
}

// ClientCount reports the number of connected clients.
func (f *Feed) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// Serve runs an HTTP server exposing the feed at /feed until ctx is
// cancelled.
func (f *Feed) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/feed", f.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		f.closeAll()
		return nil
	case err := <-errCh:
		return err
	}
}

func (f *Feed) add(conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns[conn] = struct{}{}
}

func (f *Feed) remove(conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conns[conn]; ok {
		_ = conn.Close()
		delete(f.conns, conn)
	}
}

func (f *Feed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.conns {
		_ = conn.Close()
		delete(f.conns, conn)
	}
}
