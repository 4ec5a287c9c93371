// Package dispatch routes verified Slack webhook payloads to registered
// handlers, enforcing the account-link gate in front of handlers that need an
// authenticated app user.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"

	"slack-app-connect/internal/models"
)

// ErrDuplicateHandler is returned when a command or interaction name is
// registered twice. Startup code treats it as fatal: a silently replaced
// handler is a wiring bug.
var ErrDuplicateHandler = errors.New("handler already registered")

// CommandHandler handles one slash command invocation. Mapping and workspace
// are nil when the handler was registered without the link requirement and
// the caller could not be resolved.
type CommandHandler func(
	ctx context.Context, payload *CommandPayload, mapping *models.UserMapping, workspace *models.Workspace,
) (any, error)

// InteractionHandler handles one interactivity callback.
type InteractionHandler func(
	ctx context.Context, callback *slack.InteractionCallback, mapping *models.UserMapping, workspace *models.Workspace,
) (any, error)

type commandRegistration struct {
	handler       CommandHandler
	requireLinked bool
}

type interactionRegistration struct {
	handler       InteractionHandler
	requireLinked bool
}

// Registry holds the command and interaction handler tables. It is populated
// once at startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	commands     map[string]commandRegistration
	interactions map[slack.InteractionType]interactionRegistration
}

func NewRegistry() *Registry {
	return &Registry{
		commands:     map[string]commandRegistration{},
		interactions: map[slack.InteractionType]interactionRegistration{},
	}
}

// RegisterCommand registers a handler for a slash command name (without the
// leading slash). requireLinked gates the handler behind a linked account.
func (r *Registry) RegisterCommand(name string, handler CommandHandler, requireLinked bool) error {
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command %q: %w", name, ErrDuplicateHandler)
	}
	r.commands[name] = commandRegistration{handler: handler, requireLinked: requireLinked}
	return nil
}

// RegisterInteraction registers a handler for an interactivity payload type.
func (r *Registry) RegisterInteraction(interactionType slack.InteractionType, handler InteractionHandler, requireLinked bool) error {
	if _, exists := r.interactions[interactionType]; exists {
		return fmt.Errorf("interaction %q: %w", interactionType, ErrDuplicateHandler)
	}
	r.interactions[interactionType] = interactionRegistration{handler: handler, requireLinked: requireLinked}
	return nil
}

// Command looks up a slash command handler.
func (r *Registry) Command(name string) (CommandHandler, bool, bool) {
	reg, ok := r.commands[name]
	return reg.handler, reg.requireLinked, ok
}

// Interaction looks up an interactivity handler.
func (r *Registry) Interaction(interactionType slack.InteractionType) (InteractionHandler, bool, bool) {
	reg, ok := r.interactions[interactionType]
	return reg.handler, reg.requireLinked, ok
}
