package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"slack-app-connect/internal/bus"
	"slack-app-connect/internal/log"
	"slack-app-connect/internal/models"
)

// EventPublisher delivers a decoded event to the fan-out bus.
type EventPublisher interface {
	Publish(ctx context.Context, event bus.Event) error
}

// EventWorkerHandler processes queued Slack event jobs delivered by Cloud
// Tasks. Non-2xx responses make the queue redeliver the whole job.
type EventWorkerHandler struct {
	publisher EventPublisher
	timeout   time.Duration
}

func NewEventWorkerHandler(publisher EventPublisher, timeout time.Duration) *EventWorkerHandler {
	return &EventWorkerHandler{publisher: publisher, timeout: timeout}
}

// ProcessJob handles POST /tasks/slack-event.
func (h *EventWorkerHandler) ProcessJob(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	var job models.SlackEventJob
	if err := c.ShouldBindJSON(&job); err != nil {
		log.Error(ctx, "Malformed event job payload", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job payload"})
		return
	}
	if err := job.Validate(); err != nil {
		log.Error(ctx, "Invalid event job", "job_id", job.ID, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job payload"})
		return
	}

	ctx = log.WithFields(ctx, log.LogFields{
		"job_id":     job.ID,
		"event_type": job.EventType,
		"team_id":    job.TeamID,
	})

	event := bus.Event{Type: job.EventType, TeamID: job.TeamID, Data: job.EventData}
	if err := h.publisher.Publish(ctx, event); err != nil {
		log.Error(ctx, "Event fan-out failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event processing failed"})
		return
	}

	log.Info(ctx, "Event fan-out completed")
	c.Status(http.StatusOK)
}
