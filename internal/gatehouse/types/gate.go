package types

// EventDetail is the structured description of one gate event, stored as
// the event log's detail payload.  Extra carries free-form key/value pairs
// pushed by devices on the snapshot-store path.
type EventDetail struct {
	IP     string            `json:"ip,omitempty"`
	Mode   string            `json:"mode"`
	APIKey string            `json:"api_key,omitempty"`
	Client *ClientInfo       `json:"client_info,omitempty"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// ReadyResponse answers the "ready" action: who the caller is, whether they
// are authorized right now, and which cameras can be asked for snapshots.
type ReadyResponse struct {
	UserID     string   `json:"user_id"`
	UserName   string   `json:"user_name"`
	Valid      bool     `json:"valid"`
	CameraList []string `json:"camera_list"`
}

// OpenResponse is the outcome message for open/exit actions.
type OpenResponse struct {
	Message string `json:"message"`
}

// LoginRequest is the wire shape of POST /v1/login.
type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

// LoginResponse returns the API key of an authenticated principal.
type LoginResponse struct {
	APIKey string `json:"api_key"`
	UserID string `json:"user_id"`
}
