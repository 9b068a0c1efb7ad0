package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/gorilla/websocket"
)

const (
	syncRetryDelay = 5 * time.Second
	syncTickEvery  = time.Second
)

// syncLoop keeps h in sync with the configured server for as long as
// the engine lives, reconnecting with a flat delay after failures.
func (e *FileEngine) syncLoop(ctx context.Context, h *docHandle) {
	for {
		if err := e.syncOnce(ctx, h); err != nil {
			slog.Warn("sync connection ended", "id", h.id, "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(syncRetryDelay):
		}
	}
}

// syncOnce dials the server and pumps sync messages in both
// directions until the connection drops or ctx is cancelled. Fresh
// connections start from an empty sync state, so the first exchange
// converges the full document.
func (e *FileEngine) syncOnce(ctx context.Context, h *docHandle) error {
	url := e.syncURL + "/docs/" + strings.TrimPrefix(h.id, idPrefix)
	header := http.Header{}
	if e.token != "" {
		header.Set("Authorization", "Bearer "+e.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	slog.Info("sync connected", "id", h.id)

	h.mu.Lock()
	state := automerge.NewSyncState(h.doc)
	h.mu.Unlock()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		defer conn.Close()
		for {
			mt, p, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			if err := h.receiveSync(state, p); err != nil {
				slog.Error("apply sync message", "id", h.id, "err", err)
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		defer conn.Close()
		t := time.NewTicker(syncTickEvery)
		defer t.Stop()
		for {
			if err := h.sendPending(conn, state); err != nil {
				slog.Error("send sync messages", "id", h.id, "err", err)
				return
			}
			select {
			case <-t.C:
			case <-connCtx.Done():
				return
			}
		}
	}()

	wg.Wait()
	return nil
}

// receiveSync folds one server message into the document, persists
// the merged snapshot and wakes change listeners.
func (h *docHandle) receiveSync(state *automerge.SyncState, msg []byte) error {
	h.mu.Lock()
	if _, err := state.ReceiveMessage(msg); err != nil {
		h.mu.Unlock()
		return fmt.Errorf("receive: %w", err)
	}
	err := h.persistLocked()
	h.mu.Unlock()
	if err != nil {
		return err
	}
	h.notify()
	return nil
}

// sendPending drains generated sync messages onto the connection.
func (h *docHandle) sendPending(conn *websocket.Conn, state *automerge.SyncState) error {
	for {
		h.mu.Lock()
		msg, valid := state.GenerateMessage()
		h.mu.Unlock()
		if msg != nil {
			if err := conn.WriteMessage(websocket.BinaryMessage, msg.Bytes()); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
		if !valid {
			return nil
		}
	}
}
