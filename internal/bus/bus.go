// Package bus fans Slack Events API payloads out to in-process subscribers.
// Subscribers are registered once at startup and held as strong references
// for the process lifetime; Publish is safe for concurrent use because the
// subscription tables are read-only after startup.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/slack-go/slack"

	"slack-app-connect/internal/log"
	"slack-app-connect/internal/models"
)

// HomeRefreshEvent is the internal trigger for re-rendering a user's App
// Home outside of Slack's own app_home_opened delivery.
const (
	AppHomeOpenedEvent = "app_home_opened"
	HomeRefreshEvent   = "home.refresh"
)

// Event is one Events API payload (or internal trigger) on the bus.
type Event struct {
	Type   string
	TeamID string
	Data   json.RawMessage
}

// SlackUserID extracts the acting user from the event payload, when present.
func (e Event) SlackUserID() string {
	var envelope struct {
		User string `json:"user"`
	}
	if err := json.Unmarshal(e.Data, &envelope); err != nil {
		return ""
	}
	return envelope.User
}

// Handler receives raw events.
type Handler func(ctx context.Context, event Event) error

// EnrichedHandler receives events with the caller's mapping and workspace
// attached; either may be nil when the lookup finds nothing.
type EnrichedHandler func(ctx context.Context, event Event, mapping *models.UserMapping, workspace *models.Workspace) error

// HomeHandler renders App Home content. The returned title becomes the view's
// leading header block.
type HomeHandler func(ctx context.Context, event Event, mapping *models.UserMapping, workspace *models.Workspace) ([]slack.Block, string, error)

// Store is the persistence surface event enrichment needs.
type Store interface {
	GetWorkspace(ctx context.Context, teamID string) (*models.Workspace, error)
	GetOrCreateUserMapping(ctx context.Context, slackUserID, teamID, workspaceID string) (*models.UserMapping, bool, error)
}

// HomePublisher pushes a rendered home view to Slack.
type HomePublisher interface {
	PublishHomeView(ctx context.Context, botToken, slackUserID string, blocks []slack.Block, title string) error
}

// Bus is the fan-out hub.
type Bus struct {
	store     Store
	publisher HomePublisher

	raw      map[string][]Handler
	enriched map[string][]EnrichedHandler
	home     []HomeHandler
}

func New(store Store, publisher HomePublisher) *Bus {
	return &Bus{
		store:     store,
		publisher: publisher,
		raw:       map[string][]Handler{},
		enriched:  map[string][]EnrichedHandler{},
	}
}

// Subscribe registers a raw handler for the given event types.
func (b *Bus) Subscribe(handler Handler, types ...string) {
	for _, t := range types {
		b.raw[t] = append(b.raw[t], handler)
	}
}

// SubscribeEnriched registers a handler that wants the caller's mapping and
// workspace resolved before delivery.
func (b *Bus) SubscribeEnriched(handler EnrichedHandler, types ...string) {
	for _, t := range types {
		b.enriched[t] = append(b.enriched[t], handler)
	}
}

// SubscribeAppHome registers a home renderer for app_home_opened and the
// internal home refresh trigger.
func (b *Bus) SubscribeAppHome(handler HomeHandler) {
	b.home = append(b.home, handler)
}

// Publish delivers one event to every matching subscriber. Handler failures
// do not stop delivery to the remaining subscribers; all failures are joined
// into the returned error so the queue can retry the whole event.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	var errs []error

	for _, handler := range b.raw[event.Type] {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("handler for %s: %w", event.Type, err))
		}
	}

	if handlers := b.enriched[event.Type]; len(handlers) > 0 {
		mapping, workspace := b.resolveCaller(ctx, event)
		for _, handler := range handlers {
			if err := handler(ctx, event, mapping, workspace); err != nil {
				errs = append(errs, fmt.Errorf("enriched handler for %s: %w", event.Type, err))
			}
		}
	}

	if (event.Type == AppHomeOpenedEvent || event.Type == HomeRefreshEvent) && len(b.home) > 0 {
		if err := b.publishHome(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// resolveCaller looks up mapping and workspace for enrichment. Lookups are
// best-effort; a missing record delivers nil.
func (b *Bus) resolveCaller(ctx context.Context, event Event) (*models.UserMapping, *models.Workspace) {
	var workspace *models.Workspace
	if event.TeamID != "" {
		ws, err := b.store.GetWorkspace(ctx, event.TeamID)
		if err == nil {
			workspace = ws
		}
	}

	var mapping *models.UserMapping
	if slackUserID := event.SlackUserID(); slackUserID != "" {
		workspaceID := ""
		if workspace != nil {
			workspaceID = workspace.ID
		}
		m, _, err := b.store.GetOrCreateUserMapping(ctx, slackUserID, event.TeamID, workspaceID)
		if err == nil {
			mapping = m
		} else {
			log.Warn(ctx, "Failed to resolve mapping for event enrichment",
				"event_type", event.Type,
				"slack_user_id", slackUserID,
				"error", err,
			)
		}
	}

	return mapping, workspace
}

// publishHome renders the App Home for the event's user. The workspace is
// required here: without a bot token there is nothing to publish with.
func (b *Bus) publishHome(ctx context.Context, event Event) error {
	workspace, err := b.store.GetWorkspace(ctx, event.TeamID)
	if err != nil {
		return fmt.Errorf("home publish for team %s: %w", event.TeamID, err)
	}

	slackUserID := event.SlackUserID()
	if slackUserID == "" {
		return fmt.Errorf("home publish for team %s: event carries no user", event.TeamID)
	}

	mapping, _, err := b.store.GetOrCreateUserMapping(ctx, slackUserID, event.TeamID, workspace.ID)
	if err != nil {
		return fmt.Errorf("home publish for user %s: %w", slackUserID, err)
	}

	var errs []error
	for _, handler := range b.home {
		blocks, title, err := handler(ctx, event, mapping, workspace)
		if err != nil {
			errs = append(errs, fmt.Errorf("home renderer: %w", err))
			continue
		}
		if len(blocks) == 0 && title == "" {
			continue
		}
		if err := b.publisher.PublishHomeView(ctx, workspace.BotAccessToken, slackUserID, blocks, title); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
