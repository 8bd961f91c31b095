package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	apperrors "assetmanager/internal/errors"
	"assetmanager/internal/events"
	"assetmanager/internal/logger"
	"assetmanager/internal/pagination"
	"assetmanager/internal/services"
)

const streamWriteTimeout = 5 * time.Second

// Subscriber hands out live notification feeds.
type Subscriber interface {
	Subscribe() (<-chan events.DataPointQueued, func())
}

// EventHandler serves DataPointQueued notifications, both replayed from the
// durable log and streamed live.
type EventHandler struct {
	assetService services.AssetServicer
	subscriber   Subscriber
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(assetService services.AssetServicer, subscriber Subscriber) *EventHandler {
	return &EventHandler{assetService: assetService, subscriber: subscriber}
}

// ListEventsRequest holds the replay query parameters.
type ListEventsRequest struct {
	pagination.PageRequest
	After uint64 `form:"after"`
}

// ListEvents replays queued notifications
// @Summary     Replay queued notifications
// @Description Get DataPointQueued notifications with a sequence greater than after, in sequence order
// @Tags        events
// @Produce     json
// @Security    BearerAuth
// @Param       after     query int false "Return events after this sequence (default 0)"
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.QueueEvent] "Queued notifications"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /events [get]
func (h *EventHandler) ListEvents(c *gin.Context) {
	var req ListEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.assetService.ListQueueEvents(req.After, req.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// StreamEvents upgrades to a WebSocket and pushes each DataPointQueued as JSON
// @Summary     Stream queued notifications
// @Description Upgrade to a WebSocket that receives every DataPointQueued notification as it is published
// @Tags        events
// @Security    BearerAuth
// @Success     101 {object} events.DataPointQueued "Switching protocols"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /events/stream [get]
func (h *EventHandler) StreamEvents(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		// Accept has already written the handshake failure.
		logger.Named("events").Warnw("websocket upgrade failed", "error", err, "user_id", userID)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	feed, cancel := h.subscriber.Subscribe()
	defer cancel()

	// Clients never send; CloseRead ends ctx when they disconnect.
	ctx := conn.CloseRead(c.Request.Context())

	log := logger.Named("events")
	log.Infow("event stream opened", "user_id", userID)
	defer log.Infow("event stream closed", "user_id", userID)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event, ok := <-feed:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := writeEvent(ctx, conn, event); err != nil {
				log.Debugw("event stream write failed",
					"error", err,
					"user_id", userID,
					"sequence", strconv.FormatUint(event.Sequence, 10),
				)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event events.DataPointQueued) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, event)
}
