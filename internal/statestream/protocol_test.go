package statestream

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"workset/internal/engine"
	"workset/internal/workspace"
)

func TestEncodeStateNilIsEmptyArray(t *testing.T) {
	payload, err := encodeState(nil)
	if err != nil {
		t.Fatalf("encodeState error = %v", err)
	}
	// Observers iterate the list; null would make them special-case.
	if !strings.Contains(string(payload), `"workspaces":[]`) {
		t.Fatalf("encodeState(nil) = %s, want empty array", payload)
	}
}

func TestEncodeStateShape(t *testing.T) {
	payload, err := encodeState([]workspace.Workspace{
		{
			UID:    "uid-1",
			Name:   "editors",
			Hotkey: &workspace.Hotkey{KeySequence: "Ctrl+Alt+H"},
			Windows: []workspace.WindowEntry{
				{Handle: 67364, Title: "vim", Home: workspace.Rect{W: 800, H: 600}},
			},
			Valid: true,
		},
	})
	if err != nil {
		t.Fatalf("encodeState error = %v", err)
	}

	var decoded struct {
		Type       string `json:"type"`
		Workspaces []struct {
			Name   string `json:"name"`
			Hotkey struct {
				KeySequence string `json:"key_sequence"`
			} `json:"hotkey"`
			Windows []struct {
				ID   uint64 `json:"id"`
				Home [4]int `json:"home"`
			} `json:"windows"`
		} `json:"workspaces"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if decoded.Type != "state" {
		t.Fatalf("type = %q, want state", decoded.Type)
	}
	ws := decoded.Workspaces[0]
	if ws.Hotkey.KeySequence != "Ctrl+Alt+H" {
		t.Fatalf("hotkey = %q", ws.Hotkey.KeySequence)
	}
	if ws.Windows[0].ID != 67364 {
		t.Fatalf("window id = %d, want 67364", ws.Windows[0].ID)
	}
	if ws.Windows[0].Home != [4]int{0, 0, 800, 600} {
		t.Fatalf("home rect = %v, want array form", ws.Windows[0].Home)
	}
}

func TestEncodeActivationShape(t *testing.T) {
	report := engine.ToggleReport{
		WorkspaceUID:  "uid-1",
		WorkspaceName: "editors",
		AllAtHome:     true,
		Destination:   "target",
		Windows: []engine.WindowResult{
			{Title: "vim", Handle: 1, Outcome: engine.Moved},
		},
		At: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	payload, err := encodeActivation(report)
	if err != nil {
		t.Fatalf("encodeActivation error = %v", err)
	}

	var decoded struct {
		Type   string `json:"type"`
		Report struct {
			Destination string `json:"destination"`
			Windows     []struct {
				Outcome string `json:"outcome"`
			} `json:"windows"`
		} `json:"report"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if decoded.Type != "activation" {
		t.Fatalf("type = %q, want activation", decoded.Type)
	}
	if decoded.Report.Destination != "target" {
		t.Fatalf("destination = %q, want target", decoded.Report.Destination)
	}
	if decoded.Report.Windows[0].Outcome != "moved" {
		t.Fatalf("outcome = %q, want moved", decoded.Report.Windows[0].Outcome)
	}
}
