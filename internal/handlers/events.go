package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/slack-go/slack/slackevents"

	"slack-app-connect/internal/log"
	"slack-app-connect/internal/models"
	"slack-app-connect/internal/services"
)

// EventQueue enqueues event jobs for asynchronous processing.
type EventQueue interface {
	EnqueueSlackEvent(ctx context.Context, job *models.SlackEventJob) error
}

// EventsHandler is the Events API intake: it answers Slack's URL verification
// challenge and hands every callback event to the queue, keeping the inbound
// request fast regardless of what subscribers do.
type EventsHandler struct {
	verifier *services.SignatureVerifier
	queue    EventQueue
}

func NewEventsHandler(verifier *services.SignatureVerifier, queue EventQueue) *EventsHandler {
	return &EventsHandler{verifier: verifier, queue: queue}
}

// HandleEvent processes POST /slack/events/.
func (h *EventsHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := c.GetRawData()
	if err != nil {
		log.Error(ctx, "Failed to read events body", "error", err)
		c.String(http.StatusBadRequest, "failed to read request body")
		return
	}

	if !h.verifier.Verify(body, c.GetHeader("X-Slack-Request-Timestamp"), c.GetHeader("X-Slack-Signature")) {
		log.Warn(ctx, "Rejected events request with invalid signature")
		c.String(http.StatusBadRequest, signatureFailedText)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		log.Warn(ctx, "Malformed events payload", "error", err)
		c.Status(http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.JSON(http.StatusOK, gin.H{"challenge": challenge.Challenge})

	case slackevents.CallbackEvent:
		// Re-read the envelope raw: the fan-out bus works on the inner
		// event's original JSON, not the parsed form.
		var envelope struct {
			TeamID string          `json:"team_id"`
			Event  json.RawMessage `json:"event"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}

		traceID, _ := c.Request.Context().Value(log.TraceIDKey).(string)
		job := &models.SlackEventJob{
			ID:         uuid.New().String(),
			EventType:  event.InnerEvent.Type,
			TeamID:     envelope.TeamID,
			EventData:  envelope.Event,
			TraceID:    traceID,
			ReceivedAt: time.Now(),
		}

		if err := h.queue.EnqueueSlackEvent(ctx, job); err != nil {
			log.Error(ctx, "Failed to enqueue Slack event",
				"event_type", job.EventType,
				"team_id", job.TeamID,
				"error", err,
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue event"})
			return
		}

		log.Info(ctx, "Slack event accepted",
			"job_id", job.ID,
			"event_type", job.EventType,
			"team_id", job.TeamID,
		)
		c.Status(http.StatusOK)

	default:
		log.Warn(ctx, "Unsupported events payload type", "payload_type", event.Type)
		c.Status(http.StatusBadRequest)
	}
}
