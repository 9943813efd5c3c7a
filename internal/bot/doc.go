// Package bot dispatches chat commands to the Meet space creator.
//
// Two commands are understood: /meet creates an open space and /meetc a
// restricted one. Each handled command gets exactly one reply, either
// "Space created: <uri>" or "An error occurred: <message>". Commands are
// handled one at a time.
//
// The chat platform is abstracted by Transport; TelegramTransport implements
// it with Bot API long polling.
package bot
