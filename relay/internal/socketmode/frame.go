package socketmode

import "github.com/telhawk-systems/telhawk-relay/relay/internal/models"

// Frame types that are not requests.
const (
	frameHello      = "hello"
	frameDisconnect = "disconnect"
)

// frame is any message Slack sends on a Socket Mode connection.
type frame struct {
	models.InboundRequest

	// hello
	NumConnections int `json:"num_connections,omitempty"`
	ConnectionInfo struct {
		AppID string `json:"app_id"`
	} `json:"connection_info"`

	// disconnect
	Reason string `json:"reason,omitempty"`
}

// ack is written back for every envelope.
type ack struct {
	EnvelopeID string `json:"envelope_id"`
}
