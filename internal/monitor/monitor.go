package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openlabctl/labcore/internal/infrastructure/logging"
	"github.com/openlabctl/labcore/internal/infrastructure/mqtt"
	"github.com/openlabctl/labcore/internal/instrument"
)

// setCommandTimeout bounds a hardware set triggered over MQTT.
const setCommandTimeout = 10 * time.Second

// StatePublisher publishes retained state messages. Satisfied by
// *mqtt.Client.
type StatePublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// Subscriber registers handlers for inbound messages. Satisfied by
// *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// ReadingWriter records numeric parameter readings. Satisfied by
// *influxdb.Client.
type ReadingWriter interface {
	WriteParameterReading(instrument, parameter, unit string, value float64)
}

// Broadcaster pushes messages to connected UI clients. Satisfied by the
// API websocket hub.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// StateMessage is the JSON document published for every parameter update.
type StateMessage struct {
	Instrument string    `json:"instrument"`
	Parameter  string    `json:"parameter"`
	Value      any       `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	Raw        string    `json:"raw,omitempty"`
	TS         time.Time `json:"ts"`
}

// commandMessage is the JSON document accepted on command topics.
type commandMessage struct {
	Value any `json:"value"`
}

// Monitor fans parameter updates out to the configured sinks and routes
// inbound MQTT set commands to parameters. Nil sinks are skipped.
type Monitor struct {
	registry  *instrument.Registry
	publisher StatePublisher
	writer    ReadingWriter
	broadcast Broadcaster
	logger    *logging.Logger
	topics    mqtt.Topics
}

// Options configures a Monitor.
type Options struct {
	// Registry resolves instrument paths for inbound commands.
	// Required.
	Registry *instrument.Registry

	// Publisher receives retained state messages. Optional.
	Publisher StatePublisher

	// Writer receives numeric readings. Optional.
	Writer ReadingWriter

	// Broadcast receives every state message for UI push. Optional.
	Broadcast Broadcaster

	// Logger is used for sink failures. Required.
	Logger *logging.Logger
}

// New creates a Monitor.
func New(opts Options) (*Monitor, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("%w: monitor registry is required", instrument.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: monitor logger is required", instrument.ErrInvalidConfig)
	}
	return &Monitor{
		registry:  opts.Registry,
		publisher: opts.Publisher,
		writer:    opts.Writer,
		broadcast: opts.Broadcast,
		logger:    opts.Logger.With("component", "monitor"),
	}, nil
}

// Attach subscribes the monitor to every parameter update on inst and its
// submodules. Call once per root instrument, after construction.
func (m *Monitor) Attach(inst *instrument.Base) {
	inst.OnUpdate(m.handle)
}

func (m *Monitor) handle(u instrument.Update) {
	msg := StateMessage{
		Instrument: u.Instrument,
		Parameter:  u.Parameter,
		Value:      u.Value,
		Unit:       m.unitOf(u.Instrument, u.Parameter),
		Raw:        u.Raw,
		TS:         u.TS,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error("marshalling state message",
			"instrument", u.Instrument, "parameter", u.Parameter, "error", err)
		return
	}

	if m.publisher != nil {
		topic := m.topics.ParameterState(u.Instrument, u.Parameter)
		if err := m.publisher.PublishRetained(topic, payload); err != nil {
			m.logger.Warn("publishing state message",
				"topic", topic, "error", err)
		}
	}

	if m.writer != nil {
		if v, ok := numericValue(u.Value); ok {
			m.writer.WriteParameterReading(u.Instrument, u.Parameter, msg.Unit, v)
		}
	}

	if m.broadcast != nil {
		m.broadcast.Broadcast(payload)
	}
}

// unitOf resolves the unit for a parameter, best effort.
func (m *Monitor) unitOf(instrumentPath, parameter string) string {
	b, err := m.registry.Find(instrumentPath)
	if err != nil {
		return ""
	}
	h, ok := b.Parameter(parameter)
	if !ok {
		return ""
	}
	return h.Unit()
}

// numericValue reports the float64 view of a value for telemetry.
// Booleans are recorded as 0/1; everything non-numeric is skipped.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// SnapshotCaptured announces a persisted snapshot on the MQTT snapshot
// topic. The message is retained so late subscribers see the most recent
// capture for each instrument.
func (m *Monitor) SnapshotCaptured(instrumentName string, record *instrument.SnapshotRecord) {
	if m.publisher == nil {
		return
	}

	payload, err := json.Marshal(record)
	if err != nil {
		m.logger.Error("marshalling snapshot record",
			"instrument", instrumentName, "error", err)
		return
	}

	topic := m.topics.SnapshotCaptured(instrumentName)
	if err := m.publisher.PublishRetained(topic, payload); err != nil {
		m.logger.Warn("publishing snapshot record",
			"topic", topic, "error", err)
	}
}

// BindCommands subscribes to the MQTT command topics and applies inbound
// set requests to the addressed parameter. Errors (unknown instrument,
// invalid value, hardware failure) are logged, not answered: MQTT command
// flow is fire-and-forget, the authoritative state topic reflects the
// outcome.
func (m *Monitor) BindCommands(sub Subscriber, qos byte) error {
	pattern := m.topics.AllParameterCommands()
	if err := sub.Subscribe(pattern, qos, m.handleCommand); err != nil {
		return fmt.Errorf("subscribing to command topics: %w", err)
	}
	return nil
}

func (m *Monitor) handleCommand(topic string, payload []byte) error {
	instrumentPath, parameter, ok := mqtt.ParseCommandTopic(topic)
	if !ok {
		return fmt.Errorf("malformed command topic %q", topic)
	}

	var cmd commandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		m.logger.Warn("decoding command payload",
			"topic", topic, "error", err)
		return err
	}

	b, err := m.registry.Find(instrumentPath)
	if err != nil {
		m.logger.Warn("resolving command target",
			"instrument", instrumentPath, "error", err)
		return err
	}
	h, ok := b.Parameter(parameter)
	if !ok {
		m.logger.Warn("unknown parameter in command",
			"instrument", instrumentPath, "parameter", parameter)
		return fmt.Errorf("%w: parameter %q", instrument.ErrNotFound, parameter)
	}

	ctx, cancel := context.WithTimeout(context.Background(), setCommandTimeout)
	defer cancel()

	if err := h.SetAny(ctx, cmd.Value); err != nil {
		m.logger.Warn("applying command",
			"instrument", instrumentPath, "parameter", parameter, "error", err)
		return err
	}
	return nil
}
