package services

import "rcubed-backend/internal/models"

// VisibilityFloor computes the minimum visibility level viewer is
// allowed to see on owner's photos. The owner sees everything
// (Private floor). Friendship is one-directional and checked on the
// owner's friends list only: bob sees fred's friends-only photos if
// fred has listed bob, regardless of whether bob has listed fred.
func VisibilityFloor(viewer, owner *models.User) models.Visibility {
	if viewer.Username == owner.Username {
		return models.VisibilityPrivate
	}
	if owner.HasFriend(viewer.Username) {
		return models.VisibilityFriends
	}
	return models.VisibilityPublic
}
