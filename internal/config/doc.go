// Package config loads the meetbot configuration.
//
// Values are layered: built-in defaults, then an optional TOML file, then
// environment variables. The cmd package applies explicitly set flags last.
//
// Example file:
//
//	[telegram]
//	token = "123456:ABC..."
//
//	[google]
//	client_secret_path = "client_secret.json"
//	token_path = "token.json"
//	auth_flow = "local-server"
//	restricted_access_type = "TRUSTED"
//
//	[bot]
//	command_timeout = "30s"
//
//	[metrics]
//	enabled = true
//	addr = ":9090"
package config
