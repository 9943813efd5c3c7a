// Package google manages the Google OAuth credentials used by meetbot.
//
// The Manager keeps a single token in an "authorized user" JSON file. A
// valid token is used directly, an expired one is refreshed, and when
// neither works a CredentialProvider authorizes interactively, either
// through a loopback redirect server (LocalServerFlow) or by pasting the
// code into the terminal (ConsoleFlow). Every new token is written back to
// the file.
package google
