package repositories

import "messaging-service/internal/models"

type removalPlan struct {
	dissolve      bool
	promoteUserID int64
}

// planRemoval decides what removing userID from the roster entails. Called
// with the roster loaded under the conversation lock.
//
// Exactly one remaining member dissolves the conversation; exactly two is a
// hard floor and fails; otherwise, if the leaving user holds the only admin
// slot, the longest-standing other member is promoted before removal so the
// roster is never adminless.
func planRemoval(members []models.Membership, userID int64) (removalPlan, error) {
	var leaving *models.Membership
	adminCount := 0
	for i := range members {
		if members[i].UserID == userID {
			leaving = &members[i]
		}
		if members[i].IsAdmin {
			adminCount++
		}
	}
	if leaving == nil {
		return removalPlan{}, ErrNotMember
	}

	switch len(members) {
	case 1:
		return removalPlan{dissolve: true}, nil
	case 2:
		return removalPlan{}, ErrMinimumMembers
	}

	plan := removalPlan{}
	if leaving.IsAdmin && adminCount == 1 {
		for i := range members {
			if members[i].UserID != userID {
				plan.promoteUserID = members[i].UserID
				break
			}
		}
	}
	return plan, nil
}
