package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
)

func TestGroupService(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := NewGroupService(store)

	t.Run("creator always joins first", func(t *testing.T) {
		group, err := svc.CreateGroup(ctx, "alice", "ski trip", []string{"bob", "alice", "carol"})
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob", "carol"}, group.Members)

		got, err := svc.GetGroup(ctx, "bob", group.ID)
		require.NoError(t, err)
		assert.Equal(t, group.Members, got.Members)
	})

	t.Run("name is required", func(t *testing.T) {
		_, err := svc.CreateGroup(ctx, "alice", "", nil)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("non-members cannot read or grow a group", func(t *testing.T) {
		group, err := svc.CreateGroup(ctx, "alice", "book club", nil)
		require.NoError(t, err)

		_, err = svc.GetGroup(ctx, "mallory", group.ID)
		assert.ErrorIs(t, err, models.ErrConflict)
		_, err = svc.AddMembers(ctx, "mallory", group.ID, []string{"mallory"})
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("members can add members", func(t *testing.T) {
		group, err := svc.CreateGroup(ctx, "alice", "dinner club", []string{"bob"})
		require.NoError(t, err)

		got, err := svc.AddMembers(ctx, "bob", group.ID, []string{"carol"})
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob", "carol"}, got.Members)
	})

	t.Run("ListGroups", func(t *testing.T) {
		groups, err := svc.ListGroups(ctx, "alice")
		require.NoError(t, err)
		assert.NotEmpty(t, groups)

		groups, err = svc.ListGroups(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, groups)
	})
}
