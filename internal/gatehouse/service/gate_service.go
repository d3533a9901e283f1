package service

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"time"

	"github.com/sejink/gatehouse/internal/gatehouse/store"
	"github.com/sejink/gatehouse/internal/gatehouse/types"
)

var (
	// ErrUnknownAPIKey: no principal holds the presented credential (401).
	ErrUnknownAPIKey = errors.New("invalid api key")
	// ErrNotActive: the principal's active flag is off (403, "Not valid auth").
	ErrNotActive = errors.New("not valid auth")
	// ErrOutsideWindow: the principal is outside its validity window (403,
	// "Not valid datetime").
	ErrOutsideWindow = errors.New("not valid datetime")
	// ErrExitNotPermitted: the exit action was attempted by a principal
	// other than the configured exit identity.
	ErrExitNotPermitted = errors.New("exit not permitted")
	// ErrOpenFailed: the device rejected or never received the command.
	ErrOpenFailed = errors.New("fail to open")
)

// DeviceActuator is the slice of the device controller the gate flow needs.
type DeviceActuator interface {
	Open(ctx context.Context, name string, pulseSeconds int) error
	Snapshot(ctx context.Context, name string) (string, error)
}

// CameraLister enumerates the registered device names for the ready action.
type CameraLister interface {
	Names() []string
}

// GateConfig carries the fixed identities and devices of the gate flow.
type GateConfig struct {
	MainDevice         string // device pulsed by open/exit
	ExitEvidenceDevice string // camera photographed for exit events
	ExitUser           string // the one principal allowed to trigger exit
	PulseSeconds       int    // open pulse length
}

// GateService runs the four gate actions.  Within one action the order is
// strict: credential lookup, then evaluation, then the device command, then
// the log write — a failed evaluation short-circuits before any hardware is
// touched.  Log writes in open/exit are part of the action's success
// contract and propagate as hard failures.
type GateService struct {
	principals store.PrincipalStore
	events     store.EventLogStore
	devices    DeviceActuator
	cameras    CameraLister
	evaluator  *Evaluator
	cfg        GateConfig
	logger     *slog.Logger
}

func NewGateService(
	principals store.PrincipalStore,
	events store.EventLogStore,
	devices DeviceActuator,
	cameras CameraLister,
	evaluator *Evaluator,
	cfg GateConfig,
	logger *slog.Logger,
) *GateService {
	if cfg.MainDevice == "" {
		cfg.MainDevice = "main"
	}
	if cfg.ExitEvidenceDevice == "" {
		cfg.ExitEvidenceDevice = "sub1"
	}
	if cfg.PulseSeconds == 0 {
		cfg.PulseSeconds = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GateService{
		principals: principals,
		events:     events,
		devices:    devices,
		cameras:    cameras,
		evaluator:  evaluator,
		cfg:        cfg,
		logger:     logger,
	}
}

// Ready answers whether the caller is authorized right now and which
// cameras exist.  It never touches hardware.
func (s *GateService) Ready(ctx context.Context, apiKey string) (types.ReadyResponse, error) {
	p, err := s.lookup(ctx, apiKey)
	if err != nil {
		return types.ReadyResponse{}, err
	}

	return types.ReadyResponse{
		UserID:     p.ID,
		UserName:   p.Name,
		Valid:      s.evaluator.Authorized(p, time.Now()),
		CameraList: s.cameras.Names(),
	}, nil
}

// Open authorizes the caller, pulses the main device, captures evidence,
// and records the event.
func (s *GateService) Open(ctx context.Context, apiKey string, client types.ClientInfo, originIP string) (types.OpenResponse, error) {
	p, err := s.authorize(ctx, apiKey)
	if err != nil {
		return types.OpenResponse{}, err
	}

	if err := s.devices.Open(ctx, s.cfg.MainDevice, s.cfg.PulseSeconds); err != nil {
		s.logger.Warn("open command failed", "device", s.cfg.MainDevice, "actor", p.ID, "err", err)
		return types.OpenResponse{Message: "Fail to open"}, nil
	}

	detail := types.EventDetail{
		IP:     originIP,
		Mode:   "open",
		APIKey: apiKey,
		Client: &client,
	}
	if err := s.record(ctx, p.ID, detail, s.cfg.MainDevice, client.UserAgent); err != nil {
		return types.OpenResponse{}, err
	}

	return types.OpenResponse{Message: "opened OK"}, nil
}

// Snapshot returns a data-URI still from the named camera.  Any
// authenticated principal may ask; no window check applies.
func (s *GateService) Snapshot(ctx context.Context, apiKey, deviceName string) (string, error) {
	if _, err := s.lookup(ctx, apiKey); err != nil {
		return "", err
	}
	return s.devices.Snapshot(ctx, deviceName)
}

// Exit opens the door from the exterior side.  Only the configured exit
// principal may trigger it; evidence comes from the exit-side camera.
func (s *GateService) Exit(ctx context.Context, apiKey, mode string) (types.OpenResponse, error) {
	p, err := s.lookup(ctx, apiKey)
	if err != nil {
		return types.OpenResponse{}, err
	}
	if p.ID != s.cfg.ExitUser {
		return types.OpenResponse{}, ErrExitNotPermitted
	}
	if mode == "" {
		mode = "exit"
	}

	if err := s.devices.Open(ctx, s.cfg.MainDevice, s.cfg.PulseSeconds); err != nil {
		s.logger.Warn("exit command failed", "device", s.cfg.MainDevice, "err", err)
		return types.OpenResponse{}, ErrOpenFailed
	}

	detail := types.EventDetail{
		IP:     "external",
		Mode:   mode,
		APIKey: apiKey,
	}
	if err := s.record(ctx, p.ID, detail, s.cfg.ExitEvidenceDevice, "external_camera"); err != nil {
		return types.OpenResponse{}, err
	}

	return types.OpenResponse{Message: "opened"}, nil
}

// StoreSnapshot records an image pushed by a device, rather than one pulled
// from a camera.  params are free-form key/values forwarded by the pushing
// firmware; "mode" and "ip" land in their structured fields, the rest under
// Extra.  The actor and user agent are the fixed "snapshot" identity.
func (s *GateService) StoreSnapshot(ctx context.Context, params map[string]string, image []byte) error {
	detail := types.EventDetail{Mode: "snapshot"}
	for k, v := range params {
		switch k {
		case "mode":
			detail.Mode = v
		case "ip":
			detail.IP = v
		default:
			if detail.Extra == nil {
				detail.Extra = make(map[string]string)
			}
			detail.Extra[k] = v
		}
	}

	var evidence *string
	if len(image) > 0 {
		uri := "data:image/jpg;base64," + base64.StdEncoding.EncodeToString(image)
		evidence = &uri
	}

	actor := "snapshot"
	now := time.Now().In(s.evaluator.Location())
	_, err := s.events.Record(ctx, store.LogRecord{
		RecordedAt: now.UTC(),
		RegDate:    now.Format("2006-01-02 15:04:05"),
		ActorID:    &actor,
		Detail:     detail,
		Evidence:   evidence,
		UserAgent:  "snapshot",
	})
	if err != nil {
		s.logger.Error("snapshot store failed", "err", err)
	}
	return err
}

func (s *GateService) lookup(ctx context.Context, apiKey string) (types.Principal, error) {
	if apiKey == "" {
		return types.Principal{}, ErrUnknownAPIKey
	}
	p, err := s.principals.LookupByAPIKey(ctx, apiKey)
	if errors.Is(err, store.ErrNotFound) {
		return types.Principal{}, ErrUnknownAPIKey
	}
	if err != nil {
		return types.Principal{}, err
	}
	return p, nil
}

// authorize distinguishes the two denial causes so callers keep distinct
// user-facing messages: disabled flag vs. outside the validity window.
func (s *GateService) authorize(ctx context.Context, apiKey string) (types.Principal, error) {
	p, err := s.lookup(ctx, apiKey)
	if err != nil {
		return types.Principal{}, err
	}
	if !p.Active() {
		return types.Principal{}, ErrNotActive
	}
	if !s.evaluator.Authorized(p, time.Now()) {
		return types.Principal{}, ErrOutsideWindow
	}
	return p, nil
}

// record captures evidence (best effort) and writes the event.  Evidence
// failure degrades to a record without an image; a storage failure is a
// hard failure of the whole action.
func (s *GateService) record(ctx context.Context, actorID string, detail types.EventDetail, evidenceDevice, userAgent string) error {
	var evidence *string
	if uri, err := s.devices.Snapshot(ctx, evidenceDevice); err == nil {
		evidence = &uri
	} else {
		s.logger.Warn("evidence capture failed", "device", evidenceDevice, "err", err)
	}

	now := time.Now().In(s.evaluator.Location())
	_, err := s.events.Record(ctx, store.LogRecord{
		RecordedAt: now.UTC(),
		RegDate:    now.Format("2006-01-02 15:04:05"),
		ActorID:    &actorID,
		Detail:     detail,
		Evidence:   evidence,
		UserAgent:  userAgent,
	})
	if err != nil {
		s.logger.Error("event log write failed", "actor", actorID, "mode", detail.Mode, "err", err)
	}
	return err
}
