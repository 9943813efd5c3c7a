// Package meet provides a client for creating Google Meet spaces through the
// Meet REST API v2.
//
// An open space is created with access type OPEN so anyone with the link can
// join. A restricted space omits the access type and gets the server default,
// unless a restricted access type (TRUSTED or RESTRICTED) is configured.
//
// Credentials are requested from a TokenSourceProvider on every call, so a
// refreshed or re-authorized token is picked up without recreating the client.
//
// Example usage:
//
//	client, err := meet.NewClient(meet.ClientConfig{Credentials: manager})
//	if err != nil {
//	    return err
//	}
//	space, err := client.CreateSpace(ctx, meet.SpaceRequest{Restricted: false})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(space.MeetingURI)
package meet
