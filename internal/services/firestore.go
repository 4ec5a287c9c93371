package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"slack-app-connect/internal/log"
	"slack-app-connect/internal/models"
)

// Sentinel errors for not found cases.
var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrMappingNotFound   = errors.New("user mapping not found")
	ErrAppUserNotFound   = errors.New("app user not found")
)

const (
	workspacesCollection = "workspaces"
	mappingsCollection   = "user_mappings"
	webhooksCollection   = "webhooks"
	appUsersCollection   = "app_users"
)

// FirestoreService provides database operations for Firestore.
type FirestoreService struct {
	client *firestore.Client
}

// NewFirestoreService creates a new FirestoreService with the provided client.
func NewFirestoreService(client *firestore.Client) *FirestoreService {
	return &FirestoreService{client: client}
}

// GetWorkspace retrieves a workspace by Slack team ID.
func (fs *FirestoreService) GetWorkspace(ctx context.Context, teamID string) (*models.Workspace, error) {
	doc, err := fs.client.Collection(workspacesCollection).Doc(teamID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrWorkspaceNotFound
		}
		log.Error(ctx, "Failed to get workspace",
			"error", err,
			"team_id", teamID,
			"operation", "get_workspace",
		)
		return nil, fmt.Errorf("failed to get workspace %s: %w", teamID, err)
	}

	var workspace models.Workspace
	if err := doc.DataTo(&workspace); err != nil {
		log.Error(ctx, "Failed to decode workspace",
			"error", err,
			"team_id", teamID,
			"operation", "decode_workspace",
		)
		return nil, fmt.Errorf("failed to decode workspace %s: %w", teamID, err)
	}

	return &workspace, nil
}

// InstallWorkspace persists the outcome of a successful OAuth install in a
// single transaction: the workspace document is created or refreshed, stale
// mapping references for the team are repointed, the installing app user is
// appended to the owner set, and the incoming-webhook grant is recorded.
// A workspace without its webhook is never observable.
func (fs *FirestoreService) InstallWorkspace(
	ctx context.Context,
	workspace *models.Workspace,
	hook *models.WebHook,
	ownerAppUserID string,
) error {
	if err := workspace.Validate(); err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}
	if err := hook.Validate(); err != nil {
		return fmt.Errorf("invalid webhook: %w", err)
	}

	err := fs.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		wsRef := fs.client.Collection(workspacesCollection).Doc(workspace.ID)

		// Preserve creation metadata and the existing owner set on reinstall.
		existingDoc, err := tx.Get(wsRef)
		switch {
		case err == nil:
			var existing models.Workspace
			if err := existingDoc.DataTo(&existing); err != nil {
				return fmt.Errorf("failed to decode existing workspace: %w", err)
			}
			workspace.CreatedAt = existing.CreatedAt
			workspace.OwnerIDs = existing.OwnerIDs
		case status.Code(err) == codes.NotFound:
			workspace.CreatedAt = time.Now()
		default:
			return fmt.Errorf("failed to read workspace: %w", err)
		}
		workspace.UpdatedAt = time.Now()

		if ownerAppUserID != "" && !workspace.HasOwner(ownerAppUserID) {
			workspace.OwnerIDs = append(workspace.OwnerIDs, ownerAppUserID)
		}

		// Mappings created before (or between) installs carry the team ID but
		// no workspace reference; repoint them now.
		staleMappings := tx.Documents(fs.client.Collection(mappingsCollection).
			Where("slack_team_id", "==", workspace.ID))
		var staleRefs []*firestore.DocumentRef
		for {
			doc, err := staleMappings.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to query mappings for team %s: %w", workspace.ID, err)
			}
			staleRefs = append(staleRefs, doc.Ref)
		}

		if err := tx.Set(wsRef, workspace); err != nil {
			return fmt.Errorf("failed to set workspace: %w", err)
		}

		for _, ref := range staleRefs {
			err := tx.Update(ref, []firestore.Update{
				{Path: "workspace_id", Value: workspace.ID},
				{Path: "updated_at", Value: time.Now()},
			})
			if err != nil {
				return fmt.Errorf("failed to repoint mapping %s: %w", ref.ID, err)
			}
		}

		hookRef := fs.client.Collection(webhooksCollection).NewDoc()
		hook.ID = hookRef.ID
		hook.WorkspaceID = workspace.ID
		hook.CreatedAt = time.Now()
		if err := tx.Set(hookRef, hook); err != nil {
			return fmt.Errorf("failed to create webhook: %w", err)
		}

		return nil
	})
	if err != nil {
		log.Error(ctx, "Failed to install workspace",
			"error", err,
			"team_id", workspace.ID,
			"team_name", workspace.Name,
			"operation", "install_workspace",
		)
		return fmt.Errorf("failed to install workspace %s: %w", workspace.ID, err)
	}

	log.Info(ctx, "Workspace installed",
		"team_id", workspace.ID,
		"team_name", workspace.Name,
		"installed_by", ownerAppUserID,
	)

	return nil
}

// DeleteWorkspace removes a workspace with its webhooks and detaches the
// mappings that reference it. Mappings themselves survive the uninstall.
func (fs *FirestoreService) DeleteWorkspace(ctx context.Context, teamID string) error {
	err := fs.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		hooks := tx.Documents(fs.client.Collection(webhooksCollection).
			Where("workspace_id", "==", teamID))
		var hookRefs []*firestore.DocumentRef
		for {
			doc, err := hooks.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to query webhooks: %w", err)
			}
			hookRefs = append(hookRefs, doc.Ref)
		}

		mappings := tx.Documents(fs.client.Collection(mappingsCollection).
			Where("workspace_id", "==", teamID))
		var mappingRefs []*firestore.DocumentRef
		for {
			doc, err := mappings.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to query mappings: %w", err)
			}
			mappingRefs = append(mappingRefs, doc.Ref)
		}

		for _, ref := range hookRefs {
			if err := tx.Delete(ref); err != nil {
				return fmt.Errorf("failed to delete webhook %s: %w", ref.ID, err)
			}
		}
		for _, ref := range mappingRefs {
			err := tx.Update(ref, []firestore.Update{
				{Path: "workspace_id", Value: firestore.Delete},
				{Path: "updated_at", Value: time.Now()},
			})
			if err != nil {
				return fmt.Errorf("failed to detach mapping %s: %w", ref.ID, err)
			}
		}

		return tx.Delete(fs.client.Collection(workspacesCollection).Doc(teamID))
	})
	if err != nil {
		log.Error(ctx, "Failed to delete workspace",
			"error", err,
			"team_id", teamID,
			"operation", "delete_workspace",
		)
		return fmt.Errorf("failed to delete workspace %s: %w", teamID, err)
	}

	log.Info(ctx, "Workspace deleted", "team_id", teamID)
	return nil
}

// GetUserMapping retrieves a mapping by Slack user ID.
func (fs *FirestoreService) GetUserMapping(ctx context.Context, slackUserID string) (*models.UserMapping, error) {
	doc, err := fs.client.Collection(mappingsCollection).Doc(slackUserID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrMappingNotFound
		}
		log.Error(ctx, "Failed to get user mapping",
			"error", err,
			"slack_user_id", slackUserID,
			"operation", "get_user_mapping",
		)
		return nil, fmt.Errorf("failed to get mapping %s: %w", slackUserID, err)
	}

	var mapping models.UserMapping
	if err := doc.DataTo(&mapping); err != nil {
		log.Error(ctx, "Failed to decode user mapping",
			"error", err,
			"slack_user_id", slackUserID,
			"operation", "decode_user_mapping",
		)
		return nil, fmt.Errorf("failed to decode mapping %s: %w", slackUserID, err)
	}

	return &mapping, nil
}

// GetOrCreateUserMapping returns the mapping for a Slack user, creating an
// unlinked one with a fresh nonce on first contact. The Slack user ID doubles
// as the document ID, so concurrent first contact resolves to exactly one
// document: the loser of the Create race re-reads the winner's.
func (fs *FirestoreService) GetOrCreateUserMapping(
	ctx context.Context,
	slackUserID, teamID, workspaceID string,
) (*models.UserMapping, bool, error) {
	mapping, err := fs.GetUserMapping(ctx, slackUserID)
	if err == nil {
		return mapping, false, nil
	}
	if !errors.Is(err, ErrMappingNotFound) {
		return nil, false, err
	}

	fresh := &models.UserMapping{
		SlackUserID: slackUserID,
		SlackTeamID: teamID,
		WorkspaceID: workspaceID,
		Nonce:       uuid.New().String(),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	_, err = fs.client.Collection(mappingsCollection).Doc(slackUserID).Create(ctx, fresh)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			existing, err := fs.GetUserMapping(ctx, slackUserID)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		log.Error(ctx, "Failed to create user mapping",
			"error", err,
			"slack_user_id", slackUserID,
			"team_id", teamID,
			"operation", "create_user_mapping",
		)
		return nil, false, fmt.Errorf("failed to create mapping %s: %w", slackUserID, err)
	}

	log.Info(ctx, "User mapping created",
		"slack_user_id", slackUserID,
		"team_id", teamID,
	)

	return fresh, true, nil
}

// SaveUserMapping saves or updates a mapping document.
func (fs *FirestoreService) SaveUserMapping(ctx context.Context, mapping *models.UserMapping) error {
	if err := mapping.Validate(); err != nil {
		return fmt.Errorf("invalid mapping: %w", err)
	}

	mapping.UpdatedAt = time.Now()
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now()
	}

	_, err := fs.client.Collection(mappingsCollection).Doc(mapping.SlackUserID).Set(ctx, mapping)
	if err != nil {
		log.Error(ctx, "Failed to save user mapping",
			"error", err,
			"slack_user_id", mapping.SlackUserID,
			"app_user_id", mapping.AppUserID,
			"operation", "save_user_mapping",
		)
		return fmt.Errorf("failed to save mapping %s: %w", mapping.SlackUserID, err)
	}
	return nil
}

// GetUserMappingByNonce retrieves a mapping by its linking nonce.
func (fs *FirestoreService) GetUserMappingByNonce(ctx context.Context, nonce string) (*models.UserMapping, error) {
	iter := fs.client.Collection(mappingsCollection).Where("nonce", "==", nonce).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, ErrMappingNotFound
		}
		log.Error(ctx, "Failed to query mapping by nonce",
			"error", err,
			"operation", "query_mapping_by_nonce",
		)
		return nil, fmt.Errorf("failed to query mapping by nonce: %w", err)
	}

	var mapping models.UserMapping
	if err := doc.DataTo(&mapping); err != nil {
		return nil, fmt.Errorf("failed to decode mapping %s: %w", doc.Ref.ID, err)
	}

	return &mapping, nil
}

// GetAppUser retrieves an app user by ID.
func (fs *FirestoreService) GetAppUser(ctx context.Context, appUserID string) (*models.AppUser, error) {
	doc, err := fs.client.Collection(appUsersCollection).Doc(appUserID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrAppUserNotFound
		}
		log.Error(ctx, "Failed to get app user",
			"error", err,
			"app_user_id", appUserID,
			"operation", "get_app_user",
		)
		return nil, fmt.Errorf("failed to get app user %s: %w", appUserID, err)
	}

	var user models.AppUser
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode app user %s: %w", appUserID, err)
	}

	return &user, nil
}

// GetAppUserByUsername retrieves an app user by username, or nil when no such
// user exists.
func (fs *FirestoreService) GetAppUserByUsername(ctx context.Context, username string) (*models.AppUser, error) {
	iter := fs.client.Collection(appUsersCollection).Where("username", "==", username).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, nil
		}
		log.Error(ctx, "Failed to query app user by username",
			"error", err,
			"username", username,
			"operation", "query_app_user_by_username",
		)
		return nil, fmt.Errorf("failed to query app user by username %s: %w", username, err)
	}

	var user models.AppUser
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode app user %s: %w", doc.Ref.ID, err)
	}

	return &user, nil
}

// CreateAppUser creates a new app user document.
func (fs *FirestoreService) CreateAppUser(ctx context.Context, user *models.AppUser) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("invalid app user: %w", err)
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	_, err := fs.client.Collection(appUsersCollection).Doc(user.ID).Create(ctx, user)
	if err != nil {
		log.Error(ctx, "Failed to create app user",
			"error", err,
			"app_user_id", user.ID,
			"username", user.Username,
			"operation", "create_app_user",
		)
		return fmt.Errorf("failed to create app user %s: %w", user.ID, err)
	}
	return nil
}

// ListWebHooks returns all webhook grants recorded for a workspace.
func (fs *FirestoreService) ListWebHooks(ctx context.Context, workspaceID string) ([]*models.WebHook, error) {
	iter := fs.client.Collection(webhooksCollection).
		Where("workspace_id", "==", workspaceID).
		Documents(ctx)
	defer iter.Stop()

	var hooks []*models.WebHook
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list webhooks for %s: %w", workspaceID, err)
		}

		var hook models.WebHook
		if err := doc.DataTo(&hook); err != nil {
			log.Error(ctx, "Failed to decode webhook",
				"error", err,
				"doc_id", doc.Ref.ID,
				"operation", "decode_webhook",
			)
			continue
		}
		hooks = append(hooks, &hook)
	}

	return hooks, nil
}
