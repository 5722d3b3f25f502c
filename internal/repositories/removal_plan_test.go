package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func roster(entries ...models.Membership) []models.Membership {
	return entries
}

func member(userID int64, admin bool) models.Membership {
	return models.Membership{UserID: userID, IsAdmin: admin}
}

func TestPlanRemovalNotMember(t *testing.T) {
	_, err := planRemoval(roster(member(1, true), member(2, false), member(3, false)), 99)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestPlanRemovalLastMemberDissolves(t *testing.T) {
	plan, err := planRemoval(roster(member(1, true)), 1)
	require.NoError(t, err)
	assert.True(t, plan.dissolve)
	assert.Zero(t, plan.promoteUserID)
}

func TestPlanRemovalTwoMembersIsFloor(t *testing.T) {
	_, err := planRemoval(roster(member(1, true), member(2, false)), 2)
	assert.ErrorIs(t, err, ErrMinimumMembers)

	// the floor also blocks the admin, not just regular members
	_, err = planRemoval(roster(member(1, true), member(2, false)), 1)
	assert.ErrorIs(t, err, ErrMinimumMembers)
}

func TestPlanRemovalSoleAdminPromotesNextMember(t *testing.T) {
	plan, err := planRemoval(roster(member(1, true), member(2, false), member(3, false)), 1)
	require.NoError(t, err)
	assert.False(t, plan.dissolve)
	assert.Equal(t, int64(2), plan.promoteUserID)
}

func TestPlanRemovalOtherAdminsRemainNoPromotion(t *testing.T) {
	plan, err := planRemoval(roster(member(1, true), member(2, true), member(3, false)), 1)
	require.NoError(t, err)
	assert.Zero(t, plan.promoteUserID)
}

func TestPlanRemovalRegularMemberNoPromotion(t *testing.T) {
	plan, err := planRemoval(roster(member(1, true), member(2, false), member(3, false)), 3)
	require.NoError(t, err)
	assert.False(t, plan.dissolve)
	assert.Zero(t, plan.promoteUserID)
}
