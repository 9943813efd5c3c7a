package meet

// Access types accepted by the Meet API.
const (
	// AccessTypeOpen lets anyone with the link join without knocking.
	AccessTypeOpen = "OPEN"

	// AccessTypeTrusted admits members of the host's organization and
	// invited external users without knocking.
	AccessTypeTrusted = "TRUSTED"

	// AccessTypeRestricted admits only invitees without knocking.
	AccessTypeRestricted = "RESTRICTED"
)

// SpaceRequest describes the space to create.
type SpaceRequest struct {
	// Restricted creates a closed space instead of an open one.
	Restricted bool
}

// Space represents a Google Meet space
type Space struct {
	// Name is the resource name of the space
	// Format: spaces/{space}
	Name string

	// MeetingURI is the URI to join the meeting
	MeetingURI string

	// MeetingCode is the meeting code (e.g., "abc-defg-hij")
	MeetingCode string

	// Config is the configuration for the space
	Config *SpaceConfig
}

// SpaceConfig represents the configuration for a Google Meet space
type SpaceConfig struct {
	// AccessType defines who can join without knocking
	AccessType string

	// EntryPointAccess defines which entry points can be used
	EntryPointAccess string
}
