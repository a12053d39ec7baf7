package lora

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/openhearth/loragate/internal/device"
)

// Default protocol timings, used when Timing fields are zero. The discovery
// window matches how long sleepy devices take to wake and answer; the grace
// period matches how long an awake device takes to acknowledge.
const (
	DefaultDiscoveryWindow = 2 * time.Second
	DefaultAckGracePeriod  = 500 * time.Millisecond
	DefaultPollInterval    = 50 * time.Millisecond
)

// State is the controller's position in its connection lifecycle.
type State int32

// Controller states.
const (
	// StateDisconnected means no transport is open.
	StateDisconnected State = iota

	// StateConnected means the transport is open but no discovery cycle
	// has completed since connecting.
	StateConnected

	// StateDiscovering means a discovery cycle is in progress.
	StateDiscovering

	// StateReady means at least one discovery cycle has completed.
	StateReady
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateDiscovering:
		return "discovering"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Logger defines the logging interface used by the Controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// CommandRecord describes one dispatched command for the audit trail.
type CommandRecord struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"device_id"`
	Command      string    `json:"command"`
	Value        string    `json:"value,omitempty"`
	Acknowledged bool      `json:"acknowledged"`

	// Soft is true when the device stayed silent and the command was
	// optimistically counted as delivered.
	Soft bool `json:"soft"`

	CreatedAt time.Time `json:"created_at"`
}

// Recorder receives a record for every dispatched command.
//
// Implementations must not block the command path; failures are logged and
// never affect the command result.
type Recorder interface {
	Record(ctx context.Context, rec CommandRecord) error
}

// DiscoveryObserver is called once per device upserted during discovery.
// The record is the caller's copy; the observer may retain it.
type DiscoveryObserver func(rec device.Record)

// Timing groups the protocol timings. Zero fields take the defaults.
type Timing struct {
	// DiscoveryWindow is how long Discover collects responses.
	DiscoveryWindow time.Duration

	// AckGracePeriod is how long SendCommand waits before its single poll.
	AckGracePeriod time.Duration

	// PollInterval is the per-pass poll budget inside the discovery window.
	PollInterval time.Duration
}

func (t *Timing) applyDefaults() {
	if t.DiscoveryWindow <= 0 {
		t.DiscoveryWindow = DefaultDiscoveryWindow
	}
	if t.AckGracePeriod <= 0 {
		t.AckGracePeriod = DefaultAckGracePeriod
	}
	if t.PollInterval <= 0 {
		t.PollInterval = DefaultPollInterval
	}
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	// Dial opens the transport. Required. Called by Connect, so the
	// controller can be constructed before the radio module is plugged in.
	Dial func(ctx context.Context) (LineTransport, error)

	// Registry is the device catalogue. One is created when nil.
	Registry *device.Registry

	// Timing holds the protocol timings. Zero fields take the defaults.
	Timing Timing

	// Logger receives structured log output. Optional.
	Logger Logger

	// Recorder receives an audit record per dispatched command. Optional.
	Recorder Recorder

	// Observer is called for each device upserted by discovery. Optional.
	Observer DiscoveryObserver
}

// Stats holds controller counters for monitoring.
type Stats struct {
	DiscoveryCycles uint64 `json:"discovery_cycles"`
	CommandsSent    uint64 `json:"commands_sent"`
	AcksReceived    uint64 `json:"acks_received"`
	SoftAcks        uint64 `json:"soft_acks"`
	NacksReceived   uint64 `json:"nacks_received"`
	MalformedFrames uint64 `json:"malformed_frames"`
}

// Controller drives the LoRa radio protocol: discovery, command dispatch,
// and acknowledgment handling.
//
// One controller owns one serial channel. Because the channel is half-duplex
// with no request correlation, every write-then-await exchange holds an
// internal mutex; concurrent callers queue rather than interleave.
type Controller struct {
	dial     func(ctx context.Context) (LineTransport, error)
	registry *device.Registry
	timing   Timing
	logger   Logger
	recorder Recorder
	observer DiscoveryObserver

	state atomic.Int32

	// exchangeMu serialises protocol exchanges on the wire.
	exchangeMu sync.Mutex

	// transportMu guards transport swaps on Connect/Close.
	transportMu sync.Mutex
	transport   LineTransport

	discoveryCycles atomic.Uint64
	commandsSent    atomic.Uint64
	acksReceived    atomic.Uint64
	softAcks        atomic.Uint64
	nacksReceived   atomic.Uint64
	malformedFrames atomic.Uint64
}

// NewController creates a controller in the Disconnected state.
//
// The registry survives the controller's whole life: Close and a later
// Connect keep previously discovered devices visible, and only a new
// discovery cycle rewrites them.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Dial == nil {
		return nil, fmt.Errorf("lora: controller requires a dial function")
	}
	if opts.Registry == nil {
		opts.Registry = device.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	opts.Timing.applyDefaults()

	return &Controller{
		dial:     opts.Dial,
		registry: opts.Registry,
		timing:   opts.Timing,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		observer: opts.Observer,
	}, nil
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Registry returns the device catalogue the controller populates.
func (c *Controller) Registry() *device.Registry {
	return c.registry
}

// Stats returns a snapshot of the controller's counters.
func (c *Controller) Stats() Stats {
	return Stats{
		DiscoveryCycles: c.discoveryCycles.Load(),
		CommandsSent:    c.commandsSent.Load(),
		AcksReceived:    c.acksReceived.Load(),
		SoftAcks:        c.softAcks.Load(),
		NacksReceived:   c.nacksReceived.Load(),
		MalformedFrames: c.malformedFrames.Load(),
	}
}

// Connect opens the transport and moves the controller to Connected.
//
// Valid only from Disconnected; reconnecting after Close is fine and keeps
// the registry contents. On failure the controller stays Disconnected and
// the error wraps ErrConnectionFailed.
func (c *Controller) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnected)) {
		return fmt.Errorf("%w: connect from %s", ErrInvalidState, c.State())
	}

	transport, err := c.dial(ctx)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	c.transportMu.Lock()
	c.transport = transport
	c.transportMu.Unlock()

	c.logger.Info("transport connected", "known_devices", c.registry.Count())
	return nil
}

// Discover broadcasts DISCOVER_ALL and collects responses for the discovery
// window, upserting every well-formed DEVICE: line into the registry.
//
// Valid from Connected or Ready. Whatever happens mid-cycle, a completed
// window ends in Ready; zero responses is a lonely network, not a failure.
// Malformed discovery lines are logged and dropped. Non-discovery chatter
// is ignored. Returns the number of devices upserted this cycle.
func (c *Controller) Discover(ctx context.Context) (int, error) {
	swapped := c.state.CompareAndSwap(int32(StateConnected), int32(StateDiscovering)) ||
		c.state.CompareAndSwap(int32(StateReady), int32(StateDiscovering))
	if !swapped {
		return 0, fmt.Errorf("%w: discover from %s", ErrInvalidState, c.State())
	}

	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	transport := c.currentTransport()
	if transport == nil {
		c.state.Store(int32(StateDisconnected))
		return 0, fmt.Errorf("%w: discover", ErrNotConnected)
	}

	c.logger.Info("discovery started", "window", c.timing.DiscoveryWindow)

	if err := transport.WriteLine(DiscoveryBroadcast); err != nil {
		// Broadcast never left the gateway; the cycle did not happen.
		c.state.Store(int32(StateConnected))
		return 0, fmt.Errorf("discovery broadcast: %w", err)
	}

	discovered := 0
	deadline := time.Now().Add(c.timing.DiscoveryWindow)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			// Keep what was collected; the cycle still counts.
			c.finishDiscovery(discovered)
			return discovered, err
		}

		lines, err := transport.PollLines(c.timing.PollInterval)
		if err != nil {
			// The transport died mid-window. The cycle never completed,
			// so fall back to Connected; a Close racing this keeps
			// Disconnected.
			c.state.CompareAndSwap(int32(StateDiscovering), int32(StateConnected))
			return discovered, fmt.Errorf("discovery poll: %w", err)
		}

		for _, line := range lines {
			if !IsDiscovery(line) {
				c.logger.Debug("ignoring non-discovery line", "line", line)
				continue
			}
			rec, err := ParseDiscovery(line)
			if err != nil {
				c.malformedFrames.Add(1)
				c.logger.Warn("discarding malformed discovery response",
					"line", line, "error", err)
				continue
			}
			rec.LastSeen = time.Now().UTC()
			c.registry.Upsert(rec)
			discovered++
			c.logger.Info("device discovered",
				"id", rec.ID, "type", string(rec.Type),
				"name", rec.Name, "battery", rec.Battery)
			if c.observer != nil {
				c.observer(*rec)
			}
		}
	}

	c.finishDiscovery(discovered)
	return discovered, nil
}

func (c *Controller) finishDiscovery(discovered int) {
	c.discoveryCycles.Add(1)
	c.state.Store(int32(StateReady))
	c.logger.Info("discovery finished",
		"discovered", discovered, "known_devices", c.registry.Count())
}

// SendCommand dispatches a command to a discovered device and reports
// whether it was acknowledged.
//
// The returned bool is optimistic: true means either an explicit ACK reply
// or silence within the grace period (a sleeping device is presumed to have
// heard). False means a reply arrived that was not an acknowledgment.
//
// Error order is fixed: an unknown device fails with ErrUnknownDevice before
// any serial I/O, then a missing transport fails with ErrNotConnected, then
// write failures surface as they are, never softened into a result.
//
// A context cancelled after the write still reaches the Recorder: the
// command was dispatched, so the record is kept with an unacknowledged
// outcome.
func (c *Controller) SendCommand(ctx context.Context, deviceID, command, value string) (bool, error) {
	if _, err := c.registry.Get(deviceID); err != nil {
		return false, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	if c.State() == StateDisconnected {
		return false, fmt.Errorf("%w: send command", ErrNotConnected)
	}

	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	transport := c.currentTransport()
	if transport == nil {
		return false, fmt.Errorf("%w: send command", ErrNotConnected)
	}

	line := BuildCommand(deviceID, command, value)
	if err := transport.WriteLine(line); err != nil {
		return false, fmt.Errorf("sending %q: %w", line, err)
	}
	c.commandsSent.Add(1)

	// Give the device its grace period before the single reply poll.
	select {
	case <-ctx.Done():
		// The command already left the gateway; the audit trail keeps
		// the row even though the caller stopped waiting. Outcome
		// unknown, recorded as unacknowledged.
		c.record(context.WithoutCancel(ctx), CommandRecord{
			ID:        uuid.NewString(),
			DeviceID:  deviceID,
			Command:   command,
			Value:     value,
			CreatedAt: time.Now().UTC(),
		})
		return false, ctx.Err()
	case <-time.After(c.timing.AckGracePeriod):
	}

	lines, err := transport.PollLines(0)
	if err != nil {
		return false, fmt.Errorf("awaiting ack for %q: %w", line, err)
	}

	acked, soft := c.classifyReply(lines)
	switch {
	case soft:
		c.softAcks.Add(1)
		c.logger.Debug("no reply, assuming delivery", "command", line)
	case acked:
		c.acksReceived.Add(1)
		c.logger.Debug("command acknowledged", "command", line)
	default:
		c.nacksReceived.Add(1)
		c.logger.Warn("command not acknowledged", "command", line)
	}

	c.record(ctx, CommandRecord{
		ID:           uuid.NewString(),
		DeviceID:     deviceID,
		Command:      command,
		Value:        value,
		Acknowledged: acked,
		Soft:         soft,
		CreatedAt:    time.Now().UTC(),
	})

	return acked, nil
}

// classifyReply decides the acknowledgment outcome from the polled lines.
//
// Discovery responses that wander in are not replies to the command, so
// they are skipped. The first remaining line decides. Silence, or nothing
// but stray discovery lines, is a soft success.
func (c *Controller) classifyReply(lines []string) (acked, soft bool) {
	for _, line := range lines {
		if IsDiscovery(line) {
			c.logger.Debug("ignoring stray discovery line during ack wait", "line", line)
			continue
		}
		return IsAck(line), false
	}
	return true, true
}

// record forwards a command record to the recorder, if one is wired.
// Recorder failures are logged and never affect the command result.
func (c *Controller) record(ctx context.Context, rec CommandRecord) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, rec); err != nil {
		c.logger.Error("failed to record command", "command_id", rec.ID, "error", err)
	}
}

// Close releases the transport and returns the controller to Disconnected.
// The registry keeps its contents. Safe to call multiple times.
func (c *Controller) Close() error {
	c.transportMu.Lock()
	transport := c.transport
	c.transport = nil
	c.transportMu.Unlock()

	c.state.Store(int32(StateDisconnected))

	if transport == nil {
		return nil
	}

	if err := transport.Close(); err != nil {
		return fmt.Errorf("closing transport: %w", err)
	}
	c.logger.Info("transport closed", "known_devices", c.registry.Count())
	return nil
}

func (c *Controller) currentTransport() LineTransport {
	c.transportMu.Lock()
	defer c.transportMu.Unlock()
	return c.transport
}
