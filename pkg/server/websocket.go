package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/K-rankenste-in/facilpad/internal/blame"
	"github.com/K-rankenste-in/facilpad/pkg/osm"
)

const websocketWriteTimeout = 10 * time.Second

// Message is one frame sent on a progress websocket. Exactly one of the payload fields is set,
// according to Type.
type Message struct {
	Type     string         `json:"type"`
	Progress float64        `json:"progress,omitempty"`
	Bbox     *osm.Bbox      `json:"bbox,omitempty"`
	Result   *blame.Result  `json:"result,omitempty"`
	Error    *ErrorResponse `json:"error,omitempty"`
}

const (
	MessageTypeProgress = "progress"
	MessageTypeBbox     = "bbox"
	MessageTypeResult   = "result"
	MessageTypeError    = "error"
)

// blameWebSocketHandler runs a blame computation and streams its progress, the bounding box of
// the feature, and finally the result or an error. Closing the connection cancels the
// computation.
func (s *Server) blameWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	featureType, id, err := parseFeature(r)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied to the client
		s.logger.WarnWithContext(r.Context(), "failed to upgrade the websocket", zap.Error(err))
		return
	}
	defer ws.Close()

	ctx, span := tracer.Start(r.Context(), "blameWebSocketHandler")
	defer span.End()

	ctx, cancel := s.withBlameTimeout(ctx)
	defer cancel()

	// The client is not expected to send anything, a failing read means it went away.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	send := func(m Message) error {
		if err := ws.SetWriteDeadline(time.Now().Add(websocketWriteTimeout)); err != nil {
			return err
		}
		return ws.WriteJSON(m)
	}

	res, err := s.blamer.Blame(ctx, featureType, id,
		blame.WithProgress(func(f float64) error {
			return send(Message{Type: MessageTypeProgress, Progress: f})
		}),
		blame.WithBbox(func(b osm.Bbox) error {
			return send(Message{Type: MessageTypeBbox, Bbox: &b})
		}),
	)

	final := Message{Type: MessageTypeResult, Result: res}
	if err != nil {
		_, body := errorResponse(err)
		final = Message{Type: MessageTypeError, Error: &body}
	}
	if err := send(final); err != nil {
		s.logger.WarnWithContext(ctx, "failed to send blame result", zap.Error(err))
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(websocketWriteTimeout)); err != nil {
		s.logger.DebugWithContext(ctx, "failed to close the websocket", zap.Error(err))
	}
	_ = ws.Close()
	<-readerDone
}
