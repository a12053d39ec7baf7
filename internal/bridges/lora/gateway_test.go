package lora

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openhearth/loragate/internal/device"
)

// fakeTransport is an in-memory LineTransport. Each PollLines call pops the
// next queued batch of lines; an exhausted queue reads as silence.
type fakeTransport struct {
	mu       sync.Mutex
	written  []string
	replies  [][]string
	writeErr error
	pollErr  error
	closed   bool
}

func (f *fakeTransport) WriteLine(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, text)
	return nil
}

func (f *fakeTransport) PollLines(time.Duration) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if len(f.replies) == 0 {
		return nil, nil
	}
	batch := f.replies[0]
	f.replies = f.replies[1:]
	return batch, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) writtenLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.written))
	copy(out, f.written)
	return out
}

// mockRecorder captures audit records.
type mockRecorder struct {
	mu      sync.Mutex
	records []CommandRecord
	err     error
}

func (m *mockRecorder) Record(_ context.Context, rec CommandRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockRecorder) recorded() []CommandRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CommandRecord, len(m.records))
	copy(out, m.records)
	return out
}

var testTiming = Timing{
	DiscoveryWindow: 30 * time.Millisecond,
	AckGracePeriod:  time.Millisecond,
	PollInterval:    5 * time.Millisecond,
}

func newTestController(t *testing.T, transport *fakeTransport, opts ControllerOptions) *Controller {
	t.Helper()

	opts.Dial = func(context.Context) (LineTransport, error) {
		return transport, nil
	}
	opts.Timing = testTiming

	ctrl, err := NewController(opts)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return ctrl
}

// connectAndDiscover brings a controller to Ready with the transport's
// queued replies consumed by the discovery window.
func connectAndDiscover(t *testing.T, ctrl *Controller) {
	t.Helper()

	ctx := context.Background()
	if err := ctrl.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, err := ctrl.Discover(ctx); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
}

func TestNewController_RequiresDial(t *testing.T) {
	if _, err := NewController(ControllerOptions{}); err == nil {
		t.Error("expected error when no dial function is given")
	}
}

func TestController_Connect(t *testing.T) {
	transport := &fakeTransport{}
	ctrl := newTestController(t, transport, ControllerOptions{})

	if ctrl.State() != StateDisconnected {
		t.Fatalf("initial state = %s, want disconnected", ctrl.State())
	}

	if err := ctrl.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if ctrl.State() != StateConnected {
		t.Errorf("state = %s, want connected", ctrl.State())
	}

	// A second connect while connected is a caller bug.
	if err := ctrl.Connect(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Connect() error = %v, want ErrInvalidState", err)
	}
}

func TestController_Connect_DialFailure(t *testing.T) {
	dialErr := errors.New("no such device")
	ctrl, err := NewController(ControllerOptions{
		Dial: func(context.Context) (LineTransport, error) {
			return nil, dialErr
		},
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	err = ctrl.Connect(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}

	if ctrl.State() != StateDisconnected {
		t.Errorf("state after failed connect = %s, want disconnected", ctrl.State())
	}
}

func TestController_Discover(t *testing.T) {
	transport := &fakeTransport{
		replies: [][]string{
			{
				"DEVICE:ID:001,TYPE:LIGHT_SWITCH,NAME:Living Room Light,BATTERY:87",
				"DEVICE:ID:002,TYPE:FAN_CONTROLLER,NAME:Bedroom Fan,BATTERY:51",
			},
			{
				"DEVICE:TYPE:SENSOR_NODE,NAME:No ID Here,BATTERY:10", // dropped
				"boot: radio ready",                                  // ignored chatter
				"DEVICE:ID:003,TYPE:RGB_STRIP,NAME:Desk Strip,BATTERY:66",
			},
		},
	}
	ctrl := newTestController(t, transport, ControllerOptions{})

	if err := ctrl.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	discovered, err := ctrl.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if discovered != 3 {
		t.Errorf("discovered = %d, want 3", discovered)
	}

	if ctrl.State() != StateReady {
		t.Errorf("state = %s, want ready", ctrl.State())
	}

	written := transport.writtenLines()
	if len(written) != 1 || written[0] != DiscoveryBroadcast {
		t.Errorf("written = %v, want single %q broadcast", written, DiscoveryBroadcast)
	}

	reg := ctrl.Registry()
	if reg.Count() != 3 {
		t.Errorf("registry count = %d, want 3", reg.Count())
	}

	rec, err := reg.Get("001")
	if err != nil {
		t.Fatalf("Get(001) error = %v", err)
	}
	if rec.Name != "Living Room Light" || rec.Battery != 87 {
		t.Errorf("record 001 = %+v", rec)
	}
	if rec.LastSeen.IsZero() {
		t.Error("LastSeen not stamped on discovery")
	}

	stats := ctrl.Stats()
	if stats.DiscoveryCycles != 1 {
		t.Errorf("DiscoveryCycles = %d, want 1", stats.DiscoveryCycles)
	}
	if stats.MalformedFrames != 1 {
		t.Errorf("MalformedFrames = %d, want 1 (the ID-less line)", stats.MalformedFrames)
	}
}

func TestController_Discover_EmptyNetworkEndsReady(t *testing.T) {
	transport := &fakeTransport{}
	ctrl := newTestController(t, transport, ControllerOptions{})

	if err := ctrl.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	discovered, err := ctrl.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if discovered != 0 {
		t.Errorf("discovered = %d, want 0", discovered)
	}
	if ctrl.State() != StateReady {
		t.Errorf("state = %s, want ready even with zero devices", ctrl.State())
	}
}

func TestController_Discover_InvalidFromDisconnected(t *testing.T) {
	ctrl := newTestController(t, &fakeTransport{}, ControllerOptions{})

	if _, err := ctrl.Discover(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Discover() error = %v, want ErrInvalidState", err)
	}
}

func TestController_Discover_BroadcastWriteFailure(t *testing.T) {
	transport := &fakeTransport{writeErr: ErrWriteFailed}
	ctrl := newTestController(t, transport, ControllerOptions{})

	if err := ctrl.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if _, err := ctrl.Discover(context.Background()); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("Discover() error = %v, want ErrWriteFailed", err)
	}

	if ctrl.State() != StateConnected {
		t.Errorf("state = %s, want connected after failed broadcast", ctrl.State())
	}
}

func TestController_Discover_PollFailureFallsBackToConnected(t *testing.T) {
	transport := &fakeTransport{pollErr: errors.New("read: input/output error")}
	ctrl := newTestController(t, transport, ControllerOptions{})

	if err := ctrl.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if _, err := ctrl.Discover(context.Background()); err == nil {
		t.Fatal("Discover() should surface the poll failure")
	}

	// The cycle never completed, so the controller must not claim ready.
	if ctrl.State() != StateConnected {
		t.Errorf("state = %s, want connected after failed poll", ctrl.State())
	}
}

func TestController_Discover_ObserverFiresPerUpsert(t *testing.T) {
	transport := &fakeTransport{
		replies: [][]string{
			{
				"DEVICE:ID:001,TYPE:LIGHT_SWITCH,NAME:One,BATTERY:80",
				"DEVICE:ID:002,TYPE:OUTLET_SWITCH,NAME:Two,BATTERY:70",
			},
		},
	}

	var mu sync.Mutex
	var seen []string
	ctrl := newTestController(t, transport, ControllerOptions{
		Observer: func(rec device.Record) {
			mu.Lock()
			seen = append(seen, rec.ID)
			mu.Unlock()
		},
	})

	connectAndDiscover(t, ctrl)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("observer fired %d times, want 2: %v", len(seen), seen)
	}
}

func TestController_SendCommand_UnknownDeviceBeforeIO(t *testing.T) {
	transport := &fakeTransport{}
	ctrl := newTestController(t, transport, ControllerOptions{})
	connectAndDiscover(t, ctrl)

	_, err := ctrl.SendCommand(context.Background(), "099", CommandOn, "")
	if !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("SendCommand() error = %v, want ErrUnknownDevice", err)
	}

	// The registry check must precede any serial I/O.
	for _, line := range transport.writtenLines() {
		if line != DiscoveryBroadcast {
			t.Errorf("unexpected write for unknown device: %q", line)
		}
	}
}

func TestController_SendCommand_NotConnected(t *testing.T) {
	transport := &fakeTransport{
		replies: [][]string{
			{"DEVICE:ID:001,TYPE:LIGHT_SWITCH,NAME:One,BATTERY:80"},
		},
	}
	ctrl := newTestController(t, transport, ControllerOptions{})
	connectAndDiscover(t, ctrl)

	if err := ctrl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Device still known after close; the failure is the missing transport.
	_, err := ctrl.SendCommand(context.Background(), "001", CommandOn, "")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendCommand() error = %v, want ErrNotConnected", err)
	}
}

func TestController_SendCommand_AckClassification(t *testing.T) {
	tests := []struct {
		name     string
		replies  []string
		want     bool
		wantSoft bool
	}{
		{
			name:    "explicit ack",
			replies: []string{"001:OK:ACK"},
			want:    true,
		},
		{
			name:    "ack anywhere in line",
			replies: []string{"ACK:001"},
			want:    true,
		},
		{
			name:    "non-ack reply",
			replies: []string{"001:ERR"},
			want:    false,
		},
		{
			name:     "silence is soft success",
			replies:  nil,
			want:     true,
			wantSoft: true,
		},
		{
			name:     "stray discovery line then silence is soft success",
			replies:  []string{"DEVICE:ID:002,TYPE:SENSOR_NODE,NAME:Stray,BATTERY:30"},
			want:     true,
			wantSoft: true,
		},
		{
			name:    "stray discovery then real ack",
			replies: []string{"DEVICE:ID:002,TYPE:SENSOR_NODE,NAME:Stray,BATTERY:30", "001:OK:ACK"},
			want:    true,
		},
		{
			name:    "device named ACK does not acknowledge",
			replies: []string{"DEVICE:ID:002,TYPE:SENSOR_NODE,NAME:ACKERMANN SENSOR,BATTERY:30"},
			want:    true,
			wantSoft: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{
				replies: [][]string{
					{"DEVICE:ID:001,TYPE:LIGHT_SWITCH,NAME:One,BATTERY:80"},
				},
			}
			recorder := &mockRecorder{}
			ctrl := newTestController(t, transport, ControllerOptions{Recorder: recorder})
			connectAndDiscover(t, ctrl)

			// Queue the ack-phase replies after discovery drained its own.
			transport.mu.Lock()
			transport.replies = [][]string{tt.replies}
			transport.mu.Unlock()

			acked, err := ctrl.SendCommand(context.Background(), "001", CommandOn, "")
			if err != nil {
				t.Fatalf("SendCommand() error = %v", err)
			}
			if acked != tt.want {
				t.Errorf("acked = %v, want %v", acked, tt.want)
			}

			recs := recorder.recorded()
			if len(recs) != 1 {
				t.Fatalf("recorded %d commands, want 1", len(recs))
			}
			rec := recs[0]
			if rec.DeviceID != "001" || rec.Command != CommandOn {
				t.Errorf("record = %+v", rec)
			}
			if rec.Acknowledged != tt.want {
				t.Errorf("record.Acknowledged = %v, want %v", rec.Acknowledged, tt.want)
			}
			if rec.Soft != tt.wantSoft {
				t.Errorf("record.Soft = %v, want %v", rec.Soft, tt.wantSoft)
			}
			if rec.ID == "" {
				t.Error("record.ID should be generated")
			}
		})
	}
}

func TestController_SendCommand_WriteFailureSurfaces(t *testing.T) {
	transport := &fakeTransport{
		replies: [][]string{
			{"DEVICE:ID:001,TYPE:LIGHT_SWITCH,NAME:One,BATTERY:80"},
		},
	}
	recorder := &mockRecorder{}
	ctrl := newTestController(t, transport, ControllerOptions{Recorder: recorder})
	connectAndDiscover(t, ctrl)

	transport.mu.Lock()
	transport.writeErr = ErrWriteFailed
	transport.mu.Unlock()

	acked, err := ctrl.SendCommand(context.Background(), "001", CommandOn, "")
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("SendCommand() error = %v, want ErrWriteFailed", err)
	}
	if acked {
		t.Error("write failure must never be softened into success")
	}

	if len(recorder.recorded()) != 0 {
		t.Error("undispatched command should not be recorded")
	}
}

func TestController_SendCommand_CancelledWaitStillRecords(t *testing.T) {
	transport := &fakeTransport{
		replies: [][]string{
			{"DEVICE:ID:001,TYPE:LIGHT_SWITCH,NAME:One,BATTERY:80"},
		},
	}
	recorder := &mockRecorder{}
	ctrl := newTestController(t, transport, ControllerOptions{Recorder: recorder})
	connectAndDiscover(t, ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	acked, err := ctrl.SendCommand(ctx, "001", CommandOn, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SendCommand() error = %v, want context.Canceled", err)
	}
	if acked {
		t.Error("cancelled wait must not report acknowledged")
	}

	// The line was written before the cancellation hit the grace period,
	// so an audit row exists with an unacknowledged outcome.
	written := transport.writtenLines()
	if written[len(written)-1] != "CMD:001:ON" {
		t.Fatalf("last wire line = %q, want CMD:001:ON", written[len(written)-1])
	}

	recs := recorder.recorded()
	if len(recs) != 1 {
		t.Fatalf("recorded %d commands, want 1", len(recs))
	}
	if recs[0].Acknowledged || recs[0].Soft {
		t.Errorf("record = %+v, want unacknowledged and not soft", recs[0])
	}
	if recs[0].DeviceID != "001" || recs[0].Command != CommandOn {
		t.Errorf("record = %+v", recs[0])
	}
}

func TestController_ConvenienceWrapperWireFormat(t *testing.T) {
	tests := []struct {
		name string
		send func(ctrl *Controller) error
		want string
	}{
		{
			name: "lights on",
			send: func(ctrl *Controller) error {
				_, err := ctrl.LightsOn(context.Background(), "001")
				return err
			},
			want: "CMD:001:ON",
		},
		{
			name: "lights off",
			send: func(ctrl *Controller) error {
				_, err := ctrl.LightsOff(context.Background(), "001")
				return err
			},
			want: "CMD:001:OFF",
		},
		{
			name: "brightness forwarded unvalidated",
			send: func(ctrl *Controller) error {
				_, err := ctrl.SetBrightness(context.Background(), "001", 150)
				return err
			},
			want: "CMD:001:BRIGHTNESS:150",
		},
		{
			name: "rgb colour",
			send: func(ctrl *Controller) error {
				_, err := ctrl.SetRGBColor(context.Background(), "001", 255, 0, 64)
				return err
			},
			want: "CMD:001:COLOR:255,0,64",
		},
		{
			name: "fan speed",
			send: func(ctrl *Controller) error {
				_, err := ctrl.SetFanSpeed(context.Background(), "001", 3)
				return err
			},
			want: "CMD:001:SPEED:3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{
				replies: [][]string{
					{"DEVICE:ID:001,TYPE:RGB_STRIP,NAME:One,BATTERY:80"},
				},
			}
			ctrl := newTestController(t, transport, ControllerOptions{})
			connectAndDiscover(t, ctrl)

			if err := tt.send(ctrl); err != nil {
				t.Fatalf("send error = %v", err)
			}

			written := transport.writtenLines()
			last := written[len(written)-1]
			if last != tt.want {
				t.Errorf("wire line = %q, want %q", last, tt.want)
			}
		})
	}
}

func TestController_ConcurrentCommandsDoNotInterleave(t *testing.T) {
	transport := &fakeTransport{
		replies: [][]string{
			{"DEVICE:ID:001,TYPE:LIGHT_SWITCH,NAME:One,BATTERY:80"},
		},
	}
	ctrl := newTestController(t, transport, ControllerOptions{})
	connectAndDiscover(t, ctrl)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ctrl.LightsOn(context.Background(), "001"); err != nil {
				t.Errorf("LightsOn() error = %v", err)
			}
		}()
	}
	wg.Wait()

	// Every written line must be a complete command; the mutex forbids
	// interleaved exchanges.
	count := 0
	for _, line := range transport.writtenLines() {
		if line == "CMD:001:ON" {
			count++
		}
	}
	if count != 8 {
		t.Errorf("complete command lines = %d, want 8", count)
	}
}

func TestController_CloseRetainsRegistryAndReconnects(t *testing.T) {
	transport := &fakeTransport{
		replies: [][]string{
			{"DEVICE:ID:001,TYPE:LIGHT_SWITCH,NAME:One,BATTERY:80"},
		},
	}
	ctrl := newTestController(t, transport, ControllerOptions{})
	connectAndDiscover(t, ctrl)

	if err := ctrl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := ctrl.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if ctrl.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", ctrl.State())
	}
	if !transport.closed {
		t.Error("transport not closed")
	}

	// Registry persists across the reconnect.
	if ctrl.Registry().Count() != 1 {
		t.Errorf("registry count after close = %d, want 1", ctrl.Registry().Count())
	}

	if err := ctrl.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect error = %v", err)
	}
	if ctrl.Registry().Count() != 1 {
		t.Errorf("registry count after reconnect = %d, want 1", ctrl.Registry().Count())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnected, "connected"},
		{StateDiscovering, "discovering"},
		{StateReady, "ready"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
