package google

// MeetSpaceCreatedScope allows creating Meet spaces and managing the spaces
// the application created. It is the only scope the bot needs.
const MeetSpaceCreatedScope = "https://www.googleapis.com/auth/meetings.space.created"

// DefaultOAuthScopes are the scopes requested during authorization and
// recorded in the token file.
var DefaultOAuthScopes = []string{
	MeetSpaceCreatedScope,
}
