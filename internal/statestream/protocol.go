// Package statestream provides a localhost WebSocket server that pushes
// workspace state and activation reports to observing clients as JSON text
// messages.
//
// # Message protocol
//
// Every server-to-client message is a JSON object with a "type" field:
//
//   - {"type":"state","workspaces":[...]} -- full workspace list, sent on
//     connect and after every mutation.
//   - {"type":"activation","report":{...}} -- one toggle report, sent after
//     every dispatched activation.
//   - {"type":"error","message":"..."} -- server-side error notification.
//
// Clients send nothing; anything received is ignored apart from keeping the
// read pump (and pong handling) alive.
package statestream

import (
	"encoding/json"
	"fmt"

	"workset/internal/engine"
	"workset/internal/workspace"
)

const (
	stateType      = "state"
	activationType = "activation"
	errorType      = "error"
)

type stateMsg struct {
	Type       string                `json:"type"`
	Workspaces []workspace.Workspace `json:"workspaces"`
}

type activationMsg struct {
	Type   string              `json:"type"`
	Report engine.ToggleReport `json:"report"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// encodeState builds the full-state message payload.
func encodeState(workspaces []workspace.Workspace) ([]byte, error) {
	if workspaces == nil {
		workspaces = []workspace.Workspace{}
	}
	payload, err := json.Marshal(stateMsg{Type: stateType, Workspaces: workspaces})
	if err != nil {
		return nil, fmt.Errorf("statestream: encode state: %w", err)
	}
	return payload, nil
}

// encodeActivation builds the activation message payload.
func encodeActivation(report engine.ToggleReport) ([]byte, error) {
	payload, err := json.Marshal(activationMsg{Type: activationType, Report: report})
	if err != nil {
		return nil, fmt.Errorf("statestream: encode activation: %w", err)
	}
	return payload, nil
}
