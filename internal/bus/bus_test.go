package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slack-app-connect/internal/models"
	"slack-app-connect/internal/services"
)

type fakeBusStore struct {
	mu         sync.Mutex
	workspaces map[string]*models.Workspace
	mappings   map[string]*models.UserMapping
}

func newFakeBusStore() *fakeBusStore {
	return &fakeBusStore{
		workspaces: map[string]*models.Workspace{},
		mappings:   map[string]*models.UserMapping{},
	}
}

func (f *fakeBusStore) GetWorkspace(_ context.Context, teamID string) (*models.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	workspace, ok := f.workspaces[teamID]
	if !ok {
		return nil, services.ErrWorkspaceNotFound
	}
	return workspace, nil
}

func (f *fakeBusStore) GetOrCreateUserMapping(
	_ context.Context, slackUserID, teamID, workspaceID string,
) (*models.UserMapping, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.mappings[slackUserID]; ok {
		return existing, false, nil
	}
	mapping := &models.UserMapping{
		SlackUserID: slackUserID,
		SlackTeamID: teamID,
		WorkspaceID: workspaceID,
		Nonce:       "fresh-nonce",
	}
	f.mappings[slackUserID] = mapping
	return mapping, true, nil
}

type publishedView struct {
	botToken    string
	slackUserID string
	blocks      []slack.Block
	title       string
}

type fakeHomePublisher struct {
	mu       sync.Mutex
	views    []publishedView
	failWith error
}

func (f *fakeHomePublisher) PublishHomeView(
	_ context.Context, botToken, slackUserID string, blocks []slack.Block, title string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.views = append(f.views, publishedView{botToken: botToken, slackUserID: slackUserID, blocks: blocks, title: title})
	return nil
}

func eventWithUser(eventType, teamID, slackUserID string) Event {
	data, _ := json.Marshal(map[string]string{"type": eventType, "user": slackUserID})
	return Event{Type: eventType, TeamID: teamID, Data: data}
}

func TestPublishDeliversToRawSubscribers(t *testing.T) {
	b := New(newFakeBusStore(), &fakeHomePublisher{})

	var seen []string
	b.Subscribe(func(_ context.Context, event Event) error {
		seen = append(seen, event.Type)
		return nil
	}, "reaction_added", "message")

	require.NoError(t, b.Publish(context.Background(), eventWithUser("reaction_added", "T0TEAM", "U0ALICE")))
	require.NoError(t, b.Publish(context.Background(), eventWithUser("team_join", "T0TEAM", "U0ALICE")))

	assert.Equal(t, []string{"reaction_added"}, seen)
}

func TestPublishJoinsHandlerFailures(t *testing.T) {
	b := New(newFakeBusStore(), &fakeHomePublisher{})

	boom := errors.New("boom")
	var secondRan bool
	b.Subscribe(func(_ context.Context, _ Event) error { return boom }, "message")
	b.Subscribe(func(_ context.Context, _ Event) error {
		secondRan = true
		return nil
	}, "message")

	err := b.Publish(context.Background(), eventWithUser("message", "T0TEAM", "U0ALICE"))
	require.ErrorIs(t, err, boom)
	assert.True(t, secondRan)
}

func TestPublishEnrichesMappingAndWorkspace(t *testing.T) {
	store := newFakeBusStore()
	store.workspaces["T0TEAM"] = &models.Workspace{ID: "T0TEAM", Name: "Acme", BotAccessToken: "xoxb-token"}
	store.mappings["U0ALICE"] = &models.UserMapping{
		SlackUserID: "U0ALICE",
		AppUserID:   "app-user-1",
		Nonce:       "nonce",
	}
	b := New(store, &fakeHomePublisher{})

	var gotMapping *models.UserMapping
	var gotWorkspace *models.Workspace
	b.SubscribeEnriched(func(_ context.Context, _ Event, mapping *models.UserMapping, workspace *models.Workspace) error {
		gotMapping = mapping
		gotWorkspace = workspace
		return nil
	}, "reaction_added")

	require.NoError(t, b.Publish(context.Background(), eventWithUser("reaction_added", "T0TEAM", "U0ALICE")))
	require.NotNil(t, gotMapping)
	assert.Equal(t, "app-user-1", gotMapping.AppUserID)
	require.NotNil(t, gotWorkspace)
	assert.Equal(t, "T0TEAM", gotWorkspace.ID)
}

func TestPublishEnrichmentToleratesUnknownTeam(t *testing.T) {
	b := New(newFakeBusStore(), &fakeHomePublisher{})

	var called bool
	b.SubscribeEnriched(func(_ context.Context, _ Event, mapping *models.UserMapping, workspace *models.Workspace) error {
		called = true
		assert.Nil(t, workspace)
		require.NotNil(t, mapping)
		assert.False(t, mapping.IsLinked())
		return nil
	}, "reaction_added")

	require.NoError(t, b.Publish(context.Background(), eventWithUser("reaction_added", "T0NOPE", "U0ALICE")))
	assert.True(t, called)
}

func TestAppHomePublishesRenderedView(t *testing.T) {
	store := newFakeBusStore()
	store.workspaces["T0TEAM"] = &models.Workspace{ID: "T0TEAM", Name: "Acme", BotAccessToken: "xoxb-token"}
	publisher := &fakeHomePublisher{}
	b := New(store, publisher)

	b.SubscribeAppHome(func(_ context.Context, _ Event, mapping *models.UserMapping, workspace *models.Workspace) ([]slack.Block, string, error) {
		text := slack.NewTextBlockObject(slack.MarkdownType, "Welcome to "+workspace.Name, false, false)
		return []slack.Block{slack.NewSectionBlock(text, nil, nil)}, "Overview", nil
	})

	require.NoError(t, b.Publish(context.Background(), eventWithUser(AppHomeOpenedEvent, "T0TEAM", "U0ALICE")))
	require.Len(t, publisher.views, 1)
	assert.Equal(t, "xoxb-token", publisher.views[0].botToken)
	assert.Equal(t, "U0ALICE", publisher.views[0].slackUserID)
	assert.Equal(t, "Overview", publisher.views[0].title)

	// First contact through the home tab creates the unlinked mapping.
	mapping, ok := store.mappings["U0ALICE"]
	require.True(t, ok)
	assert.False(t, mapping.IsLinked())
}

func TestAppHomeRespondsToInternalRefresh(t *testing.T) {
	store := newFakeBusStore()
	store.workspaces["T0TEAM"] = &models.Workspace{ID: "T0TEAM", Name: "Acme", BotAccessToken: "xoxb-token"}
	publisher := &fakeHomePublisher{}
	b := New(store, publisher)

	b.SubscribeAppHome(func(_ context.Context, _ Event, _ *models.UserMapping, _ *models.Workspace) ([]slack.Block, string, error) {
		return nil, "Refreshed", nil
	})

	require.NoError(t, b.Publish(context.Background(), eventWithUser(HomeRefreshEvent, "T0TEAM", "U0ALICE")))
	require.Len(t, publisher.views, 1)
	assert.Equal(t, "Refreshed", publisher.views[0].title)
}

func TestAppHomeRequiresWorkspace(t *testing.T) {
	publisher := &fakeHomePublisher{}
	b := New(newFakeBusStore(), publisher)

	b.SubscribeAppHome(func(_ context.Context, _ Event, _ *models.UserMapping, _ *models.Workspace) ([]slack.Block, string, error) {
		return nil, "Overview", nil
	})

	err := b.Publish(context.Background(), eventWithUser(AppHomeOpenedEvent, "T0NOPE", "U0ALICE"))
	require.ErrorIs(t, err, services.ErrWorkspaceNotFound)
	assert.Empty(t, publisher.views)
}
