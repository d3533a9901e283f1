package types

import "fmt"

// Command is the closed set of gate actions.  The free-form action string
// from the wire is parsed into one of these at the HTTP boundary, so an
// unknown action cannot reach the core.
type Command interface {
	isCommand()
}

// ReadyCommand asks whether the caller is currently authorized and which
// cameras exist, without touching any hardware.
type ReadyCommand struct{}

// OpenCommand requests a door-open pulse on the main device, with evidence
// capture and an event log write.
type OpenCommand struct {
	Client ClientInfo
}

// SnapshotCommand requests a still image from a named camera.
type SnapshotCommand struct {
	Device string
}

// ExitCommand is the exterior-side open, triggered by a fixed principal
// (typically the outside camera itself).
type ExitCommand struct {
	Mode string
}

func (ReadyCommand) isCommand()    {}
func (OpenCommand) isCommand()     {}
func (SnapshotCommand) isCommand() {}
func (ExitCommand) isCommand()     {}

// ClientInfo is browser metadata forwarded by the web client and embedded
// into the event log for open actions.
type ClientInfo struct {
	UserAgent    string `json:"user_agent,omitempty"`
	Language     string `json:"language,omitempty"`
	Platform     string `json:"platform,omitempty"`
	ScreenWidth  int    `json:"screen_width,omitempty"`
	ScreenHeight int    `json:"screen_height,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// GateRequest is the wire shape of POST /v1/gate.
type GateRequest struct {
	Action string   `json:"action"`
	APIKey string   `json:"api_key"`
	Data   GateData `json:"data,omitempty"`
}

// GateData carries the per-action payload of a GateRequest.
type GateData struct {
	CamName     string     `json:"cam_name,omitempty"`
	Mode        string     `json:"mode,omitempty"`
	RequestInfo ClientInfo `json:"request_info,omitempty"`
}

// ParseCommand validates a GateRequest and yields the typed command.
// The default camera for snapshots is "main", matching the source protocol.
func ParseCommand(req GateRequest) (Command, error) {
	switch req.Action {
	case "ready":
		return ReadyCommand{}, nil
	case "open":
		return OpenCommand{Client: req.Data.RequestInfo}, nil
	case "snapshot":
		dev := req.Data.CamName
		if dev == "" {
			dev = "main"
		}
		return SnapshotCommand{Device: dev}, nil
	case "exit":
		mode := req.Data.Mode
		if mode == "" {
			mode = "exit"
		}
		return ExitCommand{Mode: mode}, nil
	default:
		return nil, fmt.Errorf("invalid action: %q (supported: ready, open, snapshot, exit)", req.Action)
	}
}
