package websocket

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yegors/mission-planner/internal/drag"
	"github.com/yegors/mission-planner/pkg/logger"
)

// DragHandler gives every client its own drag controller over the shared mission
type DragHandler struct {
	store  drag.MissionStore
	logger *logger.Logger

	mu       sync.Mutex
	sessions map[*Client]*dragSession
}

type dragSession struct {
	bus        *drag.Bus
	controller *drag.Controller
}

type dragStartRequest struct {
	Index  int          `json:"index"`
	Lock   string       `json:"lock"`
	Camera *drag.Camera `json:"camera"`
}

type pointerRequest struct {
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
	Camera *drag.Camera `json:"camera,omitempty"`
}

// NewDragHandler creates a handler editing store
func NewDragHandler(store drag.MissionStore, logger *logger.Logger) *DragHandler {
	return &DragHandler{
		store:    store,
		logger:   logger.Named("drag-ws-handler"),
		sessions: make(map[*Client]*dragSession),
	}
}

// HandleMessage handles incoming WebSocket messages
func (h *DragHandler) HandleMessage(client *Client, messageType string, data map[string]any) error {
	switch messageType {
	case MessageTypeDragStart:
		return h.handleDragStart(client, data)
	case MessageTypePointerMove:
		var req pointerRequest
		if err := decodeData(data, &req); err != nil {
			return err
		}
		h.emit(client, drag.Event{Kind: drag.PointerMove, X: req.X, Y: req.Y, Camera: req.Camera})
		return nil
	case MessageTypePointerUp:
		h.emit(client, drag.Event{Kind: drag.PointerUp})
		return nil
	case MessageTypePointerCancel:
		h.emit(client, drag.Event{Kind: drag.PointerCancel})
		return nil
	case MessageTypeFocusLost:
		h.emit(client, drag.Event{Kind: drag.FocusLost})
		return nil
	default:
		h.logger.Debug("Unhandled message type", String("type", messageType))
		return nil
	}
}

// HandleDisconnect ends any gesture the client left running
func (h *DragHandler) HandleDisconnect(client *Client) {
	h.mu.Lock()
	session, ok := h.sessions[client]
	delete(h.sessions, client)
	h.mu.Unlock()

	if ok {
		session.controller.Close()
		h.logger.Debug("Closed drag session", String("client_id", client.id))
	}
}

// Sessions returns the number of clients with a drag controller
func (h *DragHandler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *DragHandler) handleDragStart(client *Client, data map[string]any) error {
	var req dragStartRequest
	if err := decodeData(data, &req); err != nil {
		return err
	}
	if req.Camera == nil {
		return fmt.Errorf("drag_start requires a camera")
	}
	lock, err := drag.ParseLockMode(req.Lock)
	if err != nil {
		return err
	}

	session := h.session(client)
	if _, err := session.controller.Begin(req.Index, lock, *req.Camera); err != nil {
		return fmt.Errorf("failed to start drag on command %d: %w", req.Index, err)
	}
	return nil
}

func (h *DragHandler) session(client *Client) *dragSession {
	h.mu.Lock()
	defer h.mu.Unlock()

	if session, ok := h.sessions[client]; ok {
		return session
	}

	bus := drag.NewBus()
	controller := drag.NewController(h.store, bus, h.logger)
	controller.OnChange(func(status drag.Status) {
		client.SendMessage(&Message{
			Type: MessageTypeDragState,
			Data: map[string]any{"status": status},
		})
	})

	session := &dragSession{bus: bus, controller: controller}
	h.sessions[client] = session
	return session
}

// emit delivers e to the client's bus. Events from a client with no
// session have no gesture to act on.
func (h *DragHandler) emit(client *Client, e drag.Event) {
	h.mu.Lock()
	session, ok := h.sessions[client]
	h.mu.Unlock()

	if !ok {
		return
	}
	session.bus.Emit(e)
}

// decodeData converts a loosely typed message payload into v
func decodeData(data map[string]any, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode message data: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid message data: %w", err)
	}
	return nil
}
