package monitor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/openlabctl/labcore/internal/infrastructure/config"
	"github.com/openlabctl/labcore/internal/infrastructure/logging"
	"github.com/openlabctl/labcore/internal/infrastructure/mqtt"
	"github.com/openlabctl/labcore/internal/instrument"
	"github.com/openlabctl/labcore/internal/validate"
)

type fakePublisher struct {
	topics   []string
	payloads [][]byte
}

func (f *fakePublisher) PublishRetained(topic string, payload []byte) error {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeWriter struct {
	readings []reading
}

type reading struct {
	instrument, parameter, unit string
	value                       float64
}

func (f *fakeWriter) WriteParameterReading(instrument, parameter, unit string, value float64) {
	f.readings = append(f.readings, reading{instrument, parameter, unit, value})
}

type fakeBroadcaster struct {
	messages [][]byte
}

func (f *fakeBroadcaster) Broadcast(payload []byte) {
	f.messages = append(f.messages, payload)
}

type fakeSubscriber struct {
	pattern string
	handler mqtt.MessageHandler
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.pattern = topic
	f.handler = handler
	return nil
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

type fixture struct {
	registry  *instrument.Registry
	monitor   *Monitor
	publisher *fakePublisher
	writer    *fakeWriter
	broadcast *fakeBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		registry:  instrument.NewRegistry(),
		publisher: &fakePublisher{},
		writer:    &fakeWriter{},
		broadcast: &fakeBroadcaster{},
	}

	var err error
	f.monitor, err = New(Options{
		Registry:  f.registry,
		Publisher: f.publisher,
		Writer:    f.writer,
		Broadcast: f.broadcast,
		Logger:    testLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

// addInstrument creates a root instrument with one settable float
// parameter "voltage" and attaches the monitor.
func (f *fixture) addInstrument(t *testing.T, name string) *instrument.Parameter[float64] {
	t.Helper()

	b, err := instrument.New(name, instrument.Options{Registry: f.registry})
	if err != nil {
		t.Fatalf("New(%q) error = %v", name, err)
	}
	t.Cleanup(func() { _ = b.Close() })

	p, err := instrument.AddParameter[float64](b, "voltage", instrument.ParameterConfig[float64]{
		Unit:      "V",
		Validator: validate.Numbers(0, 10),
		SetFunc:   func(context.Context, float64) error { return nil },
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}

	f.monitor.Attach(b)
	return p
}

func TestMonitorFansOutUpdates(t *testing.T) {
	f := newFixture(t)
	voltage := f.addInstrument(t, "psu")

	if err := voltage.Set(context.Background(), 3.3); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// MQTT retained state
	if len(f.publisher.topics) != 1 {
		t.Fatalf("published %d messages, want 1", len(f.publisher.topics))
	}
	if f.publisher.topics[0] != "labcore/state/psu/voltage" {
		t.Errorf("topic = %q, want labcore/state/psu/voltage", f.publisher.topics[0])
	}
	var msg StateMessage
	if err := json.Unmarshal(f.publisher.payloads[0], &msg); err != nil {
		t.Fatalf("unmarshal state message: %v", err)
	}
	if msg.Instrument != "psu" || msg.Parameter != "voltage" || msg.Value != 3.3 || msg.Unit != "V" {
		t.Errorf("state message = %+v", msg)
	}

	// InfluxDB reading
	if len(f.writer.readings) != 1 {
		t.Fatalf("wrote %d readings, want 1", len(f.writer.readings))
	}
	r := f.writer.readings[0]
	if r.instrument != "psu" || r.parameter != "voltage" || r.unit != "V" || r.value != 3.3 {
		t.Errorf("reading = %+v", r)
	}

	// WebSocket broadcast
	if len(f.broadcast.messages) != 1 {
		t.Errorf("broadcast %d messages, want 1", len(f.broadcast.messages))
	}
}

func TestMonitorSkipsNonNumericReadings(t *testing.T) {
	f := newFixture(t)

	b, err := instrument.New("dmm", instrument.Options{Registry: f.registry})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer b.Close() //nolint:errcheck // Best-effort cleanup

	mode, err := instrument.AddParameter[string](b, "mode", instrument.ParameterConfig[string]{
		SetFunc: func(context.Context, string) error { return nil },
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}
	f.monitor.Attach(b)

	if err := mode.Set(context.Background(), "VOLT:DC"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if len(f.writer.readings) != 0 {
		t.Errorf("string update produced %d readings, want 0", len(f.writer.readings))
	}
	// Publish and broadcast still fire.
	if len(f.publisher.topics) != 1 || len(f.broadcast.messages) != 1 {
		t.Errorf("publish/broadcast = %d/%d, want 1/1",
			len(f.publisher.topics), len(f.broadcast.messages))
	}
}

func TestMonitorRecordsBoolsAsZeroOne(t *testing.T) {
	f := newFixture(t)

	b, err := instrument.New("psu", instrument.Options{Registry: f.registry})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer b.Close() //nolint:errcheck // Best-effort cleanup

	output, err := instrument.AddParameter[bool](b, "output_enabled", instrument.ParameterConfig[bool]{
		SetFunc: func(context.Context, bool) error { return nil },
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}
	f.monitor.Attach(b)

	if err := output.Set(context.Background(), true); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if len(f.writer.readings) != 1 || f.writer.readings[0].value != 1 {
		t.Errorf("readings = %+v, want one reading of 1", f.writer.readings)
	}
}

func TestSnapshotCapturedPublishesRecord(t *testing.T) {
	f := newFixture(t)

	record := &instrument.SnapshotRecord{
		ID:         "rec-1",
		Instrument: "psu",
		Document:   &instrument.Snapshot{Name: "psu"},
	}
	f.monitor.SnapshotCaptured("psu", record)

	if len(f.publisher.topics) != 1 || f.publisher.topics[0] != "labcore/snapshot/psu" {
		t.Fatalf("topics = %v, want [labcore/snapshot/psu]", f.publisher.topics)
	}
	var got instrument.SnapshotRecord
	if err := json.Unmarshal(f.publisher.payloads[0], &got); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if got.ID != "rec-1" || got.Document == nil || got.Document.Name != "psu" {
		t.Errorf("record = %+v", got)
	}
}

func TestBindCommandsAppliesSet(t *testing.T) {
	f := newFixture(t)
	voltage := f.addInstrument(t, "psu")

	sub := &fakeSubscriber{}
	if err := f.monitor.BindCommands(sub, 1); err != nil {
		t.Fatalf("BindCommands() error = %v", err)
	}
	if sub.pattern != "labcore/command/+/+/set" {
		t.Errorf("subscription pattern = %q", sub.pattern)
	}

	err := sub.handler("labcore/command/psu/voltage/set", []byte(`{"value": 5.5}`))
	if err != nil {
		t.Fatalf("command handler error = %v", err)
	}

	v, _, ok := voltage.GetLatest()
	if !ok || v != 5.5 {
		t.Errorf("GetLatest() = (%v, ok=%v), want (5.5, true)", v, ok)
	}
}

func TestBindCommandsRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	voltage := f.addInstrument(t, "psu")

	sub := &fakeSubscriber{}
	if err := f.monitor.BindCommands(sub, 1); err != nil {
		t.Fatalf("BindCommands() error = %v", err)
	}

	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{name: "unknown instrument", topic: "labcore/command/nope/voltage/set", payload: `{"value": 1}`},
		{name: "unknown parameter", topic: "labcore/command/psu/nope/set", payload: `{"value": 1}`},
		{name: "malformed JSON", topic: "labcore/command/psu/voltage/set", payload: `{{`},
		{name: "out of range value", topic: "labcore/command/psu/voltage/set", payload: `{"value": 99}`},
		{name: "wrong type", topic: "labcore/command/psu/voltage/set", payload: `{"value": "high"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := sub.handler(tt.topic, []byte(tt.payload)); err == nil {
				t.Error("command handler succeeded, want error")
			}
		})
	}

	// None of the bad commands touched the cache.
	if _, _, ok := voltage.GetLatest(); ok {
		t.Error("cache populated by rejected commands")
	}
}

func TestMonitorSeesSubmoduleUpdates(t *testing.T) {
	f := newFixture(t)

	root, err := instrument.New("psu", instrument.Options{Registry: f.registry})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer root.Close() //nolint:errcheck // Best-effort cleanup

	ch2, err := instrument.NewModule(root, "ch2", instrument.Options{})
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}
	if err := root.AddSubmodule("ch2", ch2); err != nil {
		t.Fatalf("AddSubmodule() error = %v", err)
	}

	current, err := instrument.AddParameter[float64](ch2, "current", instrument.ParameterConfig[float64]{
		Unit:    "A",
		SetFunc: func(context.Context, float64) error { return nil },
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}

	f.monitor.Attach(root)

	if err := current.Set(context.Background(), 0.25); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if len(f.publisher.topics) != 1 || f.publisher.topics[0] != "labcore/state/psu.ch2/current" {
		t.Errorf("topics = %v, want [labcore/state/psu.ch2/current]", f.publisher.topics)
	}
	if len(f.writer.readings) != 1 || f.writer.readings[0].unit != "A" {
		t.Errorf("readings = %+v, want one with unit A", f.writer.readings)
	}
}
