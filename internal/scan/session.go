// Package scan runs the camera acquisition state machine and the per-frame
// detection loop of a scanner card.
package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/grocery-field/card/internal/decoder"
	"github.com/grocery-field/card/internal/domain"
	"github.com/grocery-field/card/internal/media"
)

// LiveIdealWidth is the resolution hint for the detection stream.
const LiveIdealWidth = 1280

// ErrSessionBusy is returned by Start when a session is already in progress.
var ErrSessionBusy = errors.New("scan: session already active")

// NoticeKind classifies the message shown after a scan attempt falls back to idle.
type NoticeKind string

const (
	NoticeNone               NoticeKind = ""
	NoticePermissionDenied   NoticeKind = "permission_denied"
	NoticeDecoderUnavailable NoticeKind = "decoder_unavailable"
	NoticeCameraError        NoticeKind = "camera_error"
)

// Notice is an inline message attached to the idle state.
type Notice struct {
	Kind    NoticeKind `json:"kind,omitempty"`
	Message string     `json:"message,omitempty"`
}

// Snapshot is a copy of the session state safe to render.
type Snapshot struct {
	ID        string                `json:"id,omitempty"`
	State     domain.SessionState   `json:"state"`
	Code      string                `json:"code,omitempty"`
	Product   *domain.ProductRecord `json:"product,omitempty"`
	Resolving bool                  `json:"resolving"`
	Strategy  string                `json:"strategy,omitempty"`
	Notice    Notice                `json:"notice"`
}

// Capabilities are the probe answers the session branches on.
type Capabilities interface {
	IsRestrictedMobileClass() bool
	HasHardwareDetector() bool
}

// StrategySelector chooses the frame decoder for a live stream.
type StrategySelector interface {
	Select(ctx context.Context, hasHardwareDetector bool) (decoder.FrameDecoder, error)
}

// Resolver looks up product metadata. It returns nil when nothing is known.
type Resolver interface {
	Resolve(ctx context.Context, code string) *domain.ProductRecord
}

// Deps wires a Session.
type Deps struct {
	Capabilities Capabilities
	Devices      media.MediaDevices
	Selector     StrategySelector
	Resolver     Resolver
	Scheduler    Scheduler
	Logger       func(ctx context.Context, event string, fields map[string]any)
	OnChange     func(Snapshot)
}

// Session is the scan state machine of one card. Its events are Start,
// Cancel and the internal detection callback; every transition advances a
// generation so continuations of superseded transitions are dropped.
type Session struct {
	caps     Capabilities
	devices  media.MediaDevices
	selector StrategySelector
	resolver Resolver
	sched    Scheduler
	logger   func(ctx context.Context, event string, fields map[string]any)
	onChange func(Snapshot)

	live atomic.Uint64

	mu     sync.Mutex
	gen    uint64
	snap   Snapshot
	stream media.Stream
	loop   *Loop
	stopBg context.CancelFunc
}

var (
	meter          = otel.Meter("github.com/grocery-field/card/internal/scan")
	startedCounter metric.Int64Counter
	detectCounter  metric.Int64Counter
)

func init() {
	startedCounter, _ = meter.Int64Counter("scan.sessions.started", metric.WithDescription("Scan sessions started"))
	detectCounter, _ = meter.Int64Counter("scan.detections", metric.WithDescription("Barcodes detected by strategy"))
}

// NewSession validates deps and returns an idle session.
func NewSession(deps Deps) (*Session, error) {
	if deps.Capabilities == nil {
		return nil, errors.New("scan: capabilities are required")
	}
	if deps.Devices == nil {
		return nil, errors.New("scan: media devices are required")
	}
	if deps.Selector == nil {
		return nil, errors.New("scan: strategy selector is required")
	}
	sched := deps.Scheduler
	if sched == nil {
		sched = TimerScheduler{}
	}
	return &Session{
		caps:     deps.Capabilities,
		devices:  deps.Devices,
		selector: deps.Selector,
		resolver: deps.Resolver,
		sched:    sched,
		logger:   deps.Logger,
		onChange: deps.OnChange,
		snap:     Snapshot{State: domain.StateIdle},
	}, nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Start checks camera permission with a short-lived stream and, on success,
// opens the live stream and starts the detection loop. Start only runs from
// Idle; permission and decoder failures are reported through the resulting
// state rather than the returned error.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.snap.State != domain.StateIdle {
		s.mu.Unlock()
		return ErrSessionBusy
	}
	s.teardownLocked()
	gen := s.transitionLocked(domain.StateCheckingPermission)
	s.snap.ID = ulid.Make().String()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.changed(snap)
	if startedCounter != nil {
		startedCounter.Add(ctx, 1)
	}
	s.log(ctx, "scan.started", map[string]any{"sessionID": snap.ID})

	probe, err := s.devices.GetUserMedia(ctx, media.Constraints{FacingMode: media.FacingEnvironment})
	media.StopStream(probe)
	if err != nil {
		s.permissionFailed(ctx, gen, err)
		return nil
	}

	dec, err := s.selector.Select(ctx, s.caps.HasHardwareDetector())
	if err != nil {
		s.fail(ctx, gen, NoticeDecoderUnavailable, err)
		return nil
	}

	stream, err := s.devices.GetUserMedia(ctx, media.Constraints{FacingMode: media.FacingEnvironment, IdealWidth: LiveIdealWidth})
	if err != nil {
		s.fail(ctx, gen, NoticeCameraError, err)
		return nil
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		media.StopStream(stream)
		return nil
	}
	s.teardownLocked()
	gen = s.transitionLocked(domain.StateLiveScanning)
	s.snap.Strategy = dec.Strategy()
	bg, stop := context.WithCancel(context.WithoutCancel(ctx))
	s.stream = stream
	s.stopBg = stop
	s.live.Store(gen)
	liveGen := gen
	loop := NewLoop(bg, s.sched, dec, stream.Video(),
		func() bool { return s.live.Load() == liveGen },
		func(code string) { s.detected(bg, liveGen, code) },
	)
	s.loop = loop
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.changed(snap)
	loop.Start()
	return nil
}

// Cancel tears down any stream and loop synchronously and returns to Idle.
// Calling it on an idle session does nothing.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.snap.State == domain.StateIdle && s.stream == nil && s.loop == nil {
		s.mu.Unlock()
		return
	}
	s.teardownLocked()
	s.transitionLocked(domain.StateIdle)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.changed(snap)
}

// Reset leaves Confirm after a commit, a cancel or a rescan request.
func (s *Session) Reset() {
	s.leave(domain.StateConfirm)
}

// EnterManual leaves FallbackGuidance for the manual entry path.
func (s *Session) EnterManual() {
	s.leave(domain.StateFallbackGuidance)
}

func (s *Session) leave(from domain.SessionState) {
	s.mu.Lock()
	if s.snap.State != from {
		s.mu.Unlock()
		return
	}
	s.teardownLocked()
	s.transitionLocked(domain.StateIdle)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.changed(snap)
}

// ConfirmedCode returns the scanned code and product while in Confirm.
func (s *Session) ConfirmedCode() (string, *domain.ProductRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.State != domain.StateConfirm {
		return "", nil, false
	}
	return s.snap.Code, s.snap.Product, true
}

func (s *Session) permissionFailed(ctx context.Context, gen uint64, err error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	if s.caps.IsRestrictedMobileClass() {
		s.transitionLocked(domain.StateFallbackGuidance)
	} else {
		s.transitionLocked(domain.StateIdle)
		s.snap.Notice = Notice{Kind: NoticePermissionDenied, Message: err.Error()}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.changed(snap)
	s.log(ctx, "scan.permission.failed", map[string]any{"sessionID": snap.ID, "state": snap.State.String(), "error": err})
}

func (s *Session) fail(ctx context.Context, gen uint64, kind NoticeKind, err error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.teardownLocked()
	s.transitionLocked(domain.StateIdle)
	s.snap.Notice = Notice{Kind: kind, Message: err.Error()}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.changed(snap)
	s.log(ctx, "scan.start.failed", map[string]any{"sessionID": snap.ID, "notice": string(kind), "error": err})
}

func (s *Session) detected(ctx context.Context, gen uint64, code string) {
	s.mu.Lock()
	if s.gen != gen || s.snap.State != domain.StateLiveScanning {
		s.mu.Unlock()
		return
	}
	strategy := s.snap.Strategy
	s.teardownLocked()
	gen = s.transitionLocked(domain.StateConfirm)
	s.snap.Code = code
	s.snap.Strategy = strategy
	s.snap.Resolving = s.resolver != nil
	var resolveCtx context.Context
	if s.resolver != nil {
		var stop context.CancelFunc
		resolveCtx, stop = context.WithCancel(context.WithoutCancel(ctx))
		s.stopBg = stop
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if detectCounter != nil {
		detectCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", strategy)))
	}
	s.log(ctx, "scan.detected", map[string]any{"sessionID": snap.ID, "strategy": strategy})
	s.changed(snap)

	if resolveCtx != nil {
		go s.resolve(resolveCtx, gen, code)
	}
}

func (s *Session) resolve(ctx context.Context, gen uint64, code string) {
	product := s.resolver.Resolve(ctx, code)

	s.mu.Lock()
	if s.gen != gen || s.snap.State != domain.StateConfirm {
		s.mu.Unlock()
		return
	}
	s.snap.Product = product
	s.snap.Resolving = false
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.changed(snap)
}

// transitionLocked enters state, clearing per-state data but keeping the session id.
func (s *Session) transitionLocked(state domain.SessionState) uint64 {
	s.gen++
	s.snap = Snapshot{ID: s.snap.ID, State: state}
	return s.gen
}

// teardownLocked releases the live stream, the loop and any background work.
func (s *Session) teardownLocked() {
	s.live.Store(0)
	if s.loop != nil {
		s.loop.Stop()
		s.loop = nil
	}
	if s.stream != nil {
		media.StopStream(s.stream)
		s.stream = nil
	}
	if s.stopBg != nil {
		s.stopBg()
		s.stopBg = nil
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := s.snap
	if snap.Product != nil {
		p := *snap.Product
		snap.Product = &p
	}
	return snap
}

func (s *Session) changed(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

func (s *Session) log(ctx context.Context, event string, fields map[string]any) {
	if s.logger != nil {
		s.logger(ctx, event, fields)
	}
}
