// Package server provides the operational HTTP surface of meetbot: a
// dedicated listener exposing Prometheus metrics (/metrics) and Kubernetes
// style health probes (/healthz, /readyz).
//
// The bot receives its commands by long polling the chat platform, so this
// listener is the only port the process opens.
package server
