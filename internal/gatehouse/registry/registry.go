// Package registry holds the device configuration: one entry per
// camera/door controller, loaded from a JSON file (comments tolerated).
// Reads hand out snapshot copies; the only mutation path is the token
// refresh write, which updates the nested header field, persists the file,
// and reloads so later reads in this process see the fresh token.  A reader
// racing a refresh may still observe the pre-refresh snapshot; the cost is
// one extra failed device call, not corruption.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"
)

// TokenHeader is the header name token-mode devices authenticate with.
const TokenHeader = "X-Token"

// DOCommands are the digital-output command templates of one device.
// Trig expects the pulse length in seconds appended textually.
type DOCommands struct {
	On   string `json:"on"`
	Off  string `json:"off"`
	Trig string `json:"trig"`
}

// Device is one controllable endpoint.  A non-empty Header marks the device
// as token-mode: the header is attached to every command and responses are
// JSON envelopes instead of raw bytes.
type Device struct {
	Address     string            `json:"address"`
	Port        int               `json:"port"`
	UserID      string            `json:"userid"`
	UserPW      string            `json:"userpw"`
	SnapshotCGI string            `json:"snapshot_cgi"`
	DOCGI       DOCommands        `json:"DO_cgi"`
	Header      map[string]string `json:"header,omitempty"`
}

// TokenMode reports whether the device authenticates with a session token
// header rather than static credentials alone.
func (d Device) TokenMode() bool { return len(d.Header) > 0 }

type registryFile struct {
	Devices map[string]Device `json:"devices"`
}

// Registry is the file-backed device table.
type Registry struct {
	path string

	mu      sync.RWMutex
	devices map[string]Device
	raw     map[string]any // full file content, so unrelated keys survive rewrites
}

// Load reads and parses the registry file at path.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) reload() error {
	b, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read registry %s: %w", r.path, err)
	}
	plain := jsonc.ToJSON(b)

	var raw map[string]any
	if err := json.Unmarshal(plain, &raw); err != nil {
		return fmt.Errorf("parse registry %s: %w", r.path, err)
	}
	var typed registryFile
	if err := json.Unmarshal(plain, &typed); err != nil {
		return fmt.Errorf("parse registry devices %s: %w", r.path, err)
	}
	if typed.Devices == nil {
		return fmt.Errorf("registry %s: missing \"devices\" mapping", r.path)
	}

	r.mu.Lock()
	r.devices = typed.Devices
	r.raw = raw
	r.mu.Unlock()
	return nil
}

// Get returns a snapshot copy of the named device.
func (r *Registry) Get(name string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[name]
	if !ok {
		return Device{}, false
	}
	// Copy the header map so callers cannot mutate shared state.
	if d.Header != nil {
		h := make(map[string]string, len(d.Header))
		for k, v := range d.Header {
			h[k] = v
		}
		d.Header = h
	}
	return d, true
}

// Names returns the device names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.devices))
	for n := range r.devices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ApplyTokenRefresh writes a fresh session token for the named device at
// devices.<name>.header.X-Token, persists the file, and reloads.
func (r *Registry) ApplyTokenRefresh(name, token string) error {
	return r.SetPath(fmt.Sprintf("devices.%s.header.%s", name, TokenHeader), token)
}

// SetPath updates a dotted-path key in the registry file (intermediate maps
// are created as needed), writes the file back, and reloads the in-memory
// view.  This is the registry's only mutation path.
func (r *Registry) SetPath(key string, value any) error {
	r.mu.Lock()

	keys := strings.Split(key, ".")
	current := r.raw
	for _, k := range keys[:len(keys)-1] {
		next, ok := current[k].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[k] = next
		}
		current = next
	}
	current[keys[len(keys)-1]] = value

	b, err := json.MarshalIndent(r.raw, "", "    ")
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := os.WriteFile(r.path, append(b, '\n'), 0o644); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("write registry %s: %w", r.path, err)
	}
	r.mu.Unlock()

	return r.reload()
}
