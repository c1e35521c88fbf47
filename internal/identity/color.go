// Package identity verifies callers, resolves user profiles and issues
// the short-lived tokens that admit a user into a collaboration room.
package identity

import "canvas-studio/internal/models"

// Palette of cursor colors, chosen per user
var Palette = []string{"#DC2626", "#D97706", "#059669", "#2563EB", "#7C3AED", "#DB2777"}

const (
	AnonymousName  = "Anonymous"
	AnonymousColor = "#999999"
)

// ColorForUser picks a stable palette entry from the sum of the id's characters
func ColorForUser(userID string) string {
	sum := 0
	for _, r := range userID {
		sum += int(r)
	}
	return Palette[sum%len(Palette)]
}

// AnonymousUser is the participant used when no valid identity is presented
func AnonymousUser(connectionID string) models.UserMeta {
	return models.UserMeta{
		ID:   "anonymous-" + connectionID,
		Info: models.UserInfo{Name: AnonymousName, Color: AnonymousColor},
	}
}

// MetaForUser builds the room metadata of a known user
func MetaForUser(u *models.User) models.UserMeta {
	return models.UserMeta{
		ID: u.ID,
		Info: models.UserInfo{
			Name:   u.DisplayName(),
			Avatar: u.ImageURL,
			Color:  ColorForUser(u.ID),
		},
	}
}
