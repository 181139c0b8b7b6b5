package info

import (
	"strconv"

	"golang.org/x/oauth2"
)

var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

// InviteURL builds the bot authorization link with the given permission bits.
func InviteURL(clientID string, permissions int64) string {
	if clientID == "" {
		return ""
	}
	cfg := oauth2.Config{
		ClientID: clientID,
		Endpoint: discordEndpoint,
		Scopes:   []string{"bot", "applications.commands"},
	}
	return cfg.AuthCodeURL("", oauth2.SetAuthURLParam("permissions", strconv.FormatInt(permissions, 10)))
}
