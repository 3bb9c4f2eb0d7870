package service

import (
	"context"
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// GroupService provides the minimal group support the ledger needs:
// membership (with join order) for split determinism and member checks.
// Full membership management lives outside this engine.
type GroupService struct {
	store storage.Store
}

// NewGroupService creates a GroupService with the given storage backend.
func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{store: store}
}

// CreateGroup creates a group. The creator is always a member, first in
// join order.
func (s *GroupService) CreateGroup(ctx context.Context, actorID, name string, members []string) (*models.Group, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: group name required", models.ErrValidation)
	}
	ordered := []string{actorID}
	for _, m := range members {
		if m != actorID {
			ordered = append(ordered, m)
		}
	}
	group := &models.Group{Name: name, Members: ordered}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// GetGroup retrieves a group for one of its members.
func (s *GroupService) GetGroup(ctx context.Context, actorID, groupID string) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(actorID) {
		return nil, fmt.Errorf("%w: user %s is not a member of group %s", models.ErrConflict, actorID, groupID)
	}
	return group, nil
}

// AddMembers appends members to a group, preserving join order.
func (s *GroupService) AddMembers(ctx context.Context, actorID, groupID string, userIDs []string) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(actorID) {
		return nil, fmt.Errorf("%w: user %s is not a member of group %s", models.ErrConflict, actorID, groupID)
	}
	if err := s.store.AddGroupMembers(ctx, groupID, userIDs); err != nil {
		return nil, err
	}
	return s.store.GetGroup(ctx, groupID)
}

// ListGroups returns the groups the user belongs to.
func (s *GroupService) ListGroups(ctx context.Context, userID string) ([]*models.Group, error) {
	return s.store.ListGroupsForUser(ctx, userID)
}
