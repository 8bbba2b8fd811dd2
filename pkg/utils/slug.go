package utils

import (
	"strconv"

	"github.com/gosimple/slug"
)

// NormalizeSlug creates a URL-friendly slug using the gosimple/slug
// library, which handles accented and non-Latin player names properly.
func NormalizeSlug(text string) string {
	if text == "" {
		return ""
	}
	return slug.Make(text)
}

// GenerateTeamSlug creates a slug for a team name
func GenerateTeamSlug(teamName string) string {
	if teamName == "" {
		return "team"
	}
	return NormalizeSlug(teamName)
}

// GeneratePlayerSlug creates a slug from a player's full name and id so
// players sharing a name stay distinct.
func GeneratePlayerSlug(firstName, secondName string, playerID int) string {
	name := firstName + " " + secondName
	if firstName == "" && secondName == "" {
		name = "player"
	}
	return NormalizeSlug(name + " " + strconv.Itoa(playerID))
}
