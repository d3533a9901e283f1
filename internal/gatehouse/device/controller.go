// Package device issues CGI commands to camera/door-controller hardware.
//
// The wire protocol is vendor firmware: one HTTP GET per command against
// http://{address}:{port}/{command}, Basic auth always attached, plus the
// configured header set for token-mode devices.  Token-mode responses are a
// JSON envelope {"data":"<base64>"}; plain devices answer raw image bytes.
// URL building must stay bit-exact with the firmware's expectations,
// including the duplicate-slash collapse and the textual pulse suffix on
// the trig template.
package device

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sejink/gatehouse/internal/gatehouse/registry"
	"github.com/sejink/gatehouse/internal/gatehouse/store"
)

var (
	ErrUnknownDevice     = errors.New("unknown device")
	ErrDeviceUnreachable = errors.New("device unreachable")
	ErrDeviceProtocol    = errors.New("unexpected device response")
)

// DefaultTimeout caps one outbound device call.
const DefaultTimeout = 20 * time.Second

// loginPath is the vendor endpoint that issues session tokens.
const loginPath = "/api/v1/user/login"

// Controller translates logical actions into device CGI commands.  All
// failures come back as one of the sentinel errors above with a warning
// logged; transport error types never leak to callers.
type Controller struct {
	registry *registry.Registry
	client   *http.Client
	status   store.DeviceStatusStore
	logger   *slog.Logger
}

type Options struct {
	Timeout time.Duration
	Status  store.DeviceStatusStore // optional
	Logger  *slog.Logger
}

func NewController(reg *registry.Registry, opt Options) *Controller {
	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		registry: reg,
		client:   &http.Client{Timeout: timeout},
		status:   opt.Status,
		logger:   logger,
	}
}

// Open pulses the digital output.  pulseSeconds 0 holds the output on, -1
// forces it off, any positive value runs the trig template with the length
// appended.  No automatic retry: the caller decides whether to repeat the
// logical action.
func (c *Controller) Open(ctx context.Context, name string, pulseSeconds int) error {
	dev, ok := c.registry.Get(name)
	if !ok {
		c.logger.Warn("device not in registry", "device", name)
		return fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}

	var cgi string
	switch pulseSeconds {
	case 0:
		cgi = dev.DOCGI.On
	case -1:
		cgi = dev.DOCGI.Off
	default:
		// The firmware expects the seconds glued onto the template string.
		cgi = fmt.Sprintf("%s%d", dev.DOCGI.Trig, pulseSeconds)
	}

	body, err := c.get(ctx, dev, cgi)
	c.markSeen(name, err)
	if err != nil {
		c.logger.Warn("digital output command failed", "device", name, "cgi", cgi, "err", err)
		return err
	}
	if len(body) == 0 {
		c.logger.Warn("digital output command returned empty body", "device", name, "cgi", cgi)
		return fmt.Errorf("%w: empty response", ErrDeviceProtocol)
	}
	return nil
}

// Close forces the output off.
func (c *Controller) Close(ctx context.Context, name string) error {
	return c.Open(ctx, name, -1)
}

// Snapshot fetches a still image and returns it as a base64 data-URI.
//
// Token-mode devices signal an expired or missing session token with an
// empty "data" field.  When that happens the controller logs in with the
// device's static credentials, persists the fresh token into the registry,
// and retries the snapshot exactly once, so the result reflects the logical
// snapshot rather than the first HTTP call.
func (c *Controller) Snapshot(ctx context.Context, name string) (string, error) {
	dev, ok := c.registry.Get(name)
	if !ok {
		c.logger.Warn("device not in registry", "device", name)
		return "", fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}

	uri, err := c.snapshotOnce(ctx, dev)
	if err == nil {
		c.markSeen(name, nil)
		return uri, nil
	}
	if !errors.Is(err, errNeedsRefresh) {
		c.markSeen(name, err)
		c.logger.Warn("snapshot failed", "device", name, "err", err)
		return "", err
	}

	if err := c.refreshToken(ctx, name, dev); err != nil {
		c.markSeen(name, err)
		c.logger.Warn("token refresh failed", "device", name, "err", err)
		return "", err
	}

	// Re-read the registry entry: the refresh rewrote the header.
	dev, ok = c.registry.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	uri, err = c.snapshotOnce(ctx, dev)
	if errors.Is(err, errNeedsRefresh) {
		err = fmt.Errorf("%w: empty data after token refresh", ErrDeviceProtocol)
	}
	c.markSeen(name, err)
	if err != nil {
		c.logger.Warn("snapshot failed after token refresh", "device", name, "err", err)
		return "", err
	}
	return uri, nil
}

// errNeedsRefresh is internal: a token-mode response with no payload.
var errNeedsRefresh = errors.New("session token rejected")

func (c *Controller) snapshotOnce(ctx context.Context, dev registry.Device) (string, error) {
	body, err := c.get(ctx, dev, dev.SnapshotCGI)
	if err != nil {
		return "", err
	}

	if !dev.TokenMode() {
		return dataURI(base64.StdEncoding.EncodeToString(body)), nil
	}

	var envelope struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDeviceProtocol, err)
	}
	if envelope.Data == "" {
		return "", errNeedsRefresh
	}
	return dataURI(envelope.Data), nil
}

// refreshToken performs the vendor login call and persists the new token at
// devices.<name>.header.X-Token.
func (c *Controller) refreshToken(ctx context.Context, name string, dev registry.Device) error {
	payload, err := json.Marshal(map[string]string{
		"username": dev.UserID,
		"password": dev.UserPW,
	})
	if err != nil {
		return fmt.Errorf("marshal login payload: %w", err)
	}

	url := commandURL(dev, loginPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: login status %d", ErrDeviceProtocol, resp.StatusCode)
	}

	var envelope struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: login response: %v", ErrDeviceProtocol, err)
	}
	if envelope.Data.Token == "" {
		return fmt.Errorf("%w: login response has no token", ErrDeviceProtocol)
	}

	if err := c.registry.ApplyTokenRefresh(name, envelope.Data.Token); err != nil {
		return fmt.Errorf("persist refreshed token: %w", err)
	}
	c.logger.Info("device token refreshed", "device", name)
	return nil
}

// get runs one CGI command and returns the response body.  Non-2xx statuses
// and transport failures both come back as ErrDeviceUnreachable.
func (c *Controller) get(ctx context.Context, dev registry.Device, cgi string) ([]byte, error) {
	url := commandURL(dev, cgi)
	c.logger.Debug("cgi request", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnreachable, err)
	}
	req.SetBasicAuth(dev.UserID, dev.UserPW)
	for k, v := range dev.Header {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrDeviceUnreachable, resp.StatusCode)
	}
	return body, nil
}

// commandURL builds http://{address}:{port}/{command} with duplicate
// slashes collapsed before the scheme is prefixed, exactly as the firmware
// expects.
func commandURL(dev registry.Device, cgi string) string {
	port := dev.Port
	if port == 0 {
		port = 80
	}
	s := fmt.Sprintf("%s:%d/%s", dev.Address, port, cgi)
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	return "http://" + strings.TrimSpace(s)
}

func dataURI(b64 string) string {
	return "data:image/jpg;base64," + b64
}

func (c *Controller) markSeen(name string, cmdErr error) {
	if c.status == nil {
		return
	}
	msg := ""
	if cmdErr != nil {
		msg = cmdErr.Error()
	}
	// Best effort: a status write must never fail the command itself.
	if err := c.status.MarkSeen(context.Background(), name, cmdErr == nil, msg, time.Now().UTC()); err != nil {
		c.logger.Warn("device status write failed", "device", name, "err", err)
	}
}
