// Package dp800 drives Rigol DP800-series programmable power supplies
// over a LAN SCPI session.
//
// The device exposes three output channels as submodules (ch1..ch3), each
// with voltage/current setpoints, an output switch, and read-only output
// measurements. Channel limits follow the DP832 hardware ratings, so the
// validators reject a setpoint the supply would refuse before anything is
// written to the wire.
package dp800

import (
	"fmt"

	"github.com/openlabctl/labcore/internal/infrastructure/config"
	"github.com/openlabctl/labcore/internal/instrument"
	"github.com/openlabctl/labcore/internal/validate"
	"github.com/openlabctl/labcore/internal/visa"
)

// channelRating is one output channel's hardware limits.
type channelRating struct {
	voltageMin float64
	voltageMax float64
	currentMax float64
}

// ratings are the DP832 channel limits: two positive rails and one
// negative rail.
var ratings = [3]channelRating{
	{voltageMin: 0, voltageMax: 8, currentMax: 5},
	{voltageMin: 0, voltageMax: 30, currentMax: 2},
	{voltageMin: -30, voltageMax: 0, currentMax: 2},
}

// Options configures a Device.
type Options struct {
	// Label is a human-readable label shown in snapshots.
	Label string

	// Terminator overrides the command terminator (default "\n").
	Terminator string

	// Registry selects the instrument registry; nil means the
	// process-wide default.
	Registry *instrument.Registry
}

// Device is a connected DP800 power supply.
type Device struct {
	*visa.Instrument

	// IDN is the instrument identification string (*IDN?).
	IDN *instrument.Parameter[string]

	// Channels are the three output channels, index 0 = CH1.
	Channels *instrument.ChannelList[*Channel]
}

// Channel is one output channel of the supply.
type Channel struct {
	*instrument.Base

	// Voltage is the output voltage setpoint.
	Voltage *instrument.Parameter[float64]

	// Current is the output current limit.
	Current *instrument.Parameter[float64]

	// OutputEnabled switches the output relay.
	OutputEnabled *instrument.Parameter[bool]

	// MeasuredVoltage is the voltage at the output terminals (read-only).
	MeasuredVoltage *instrument.Parameter[float64]

	// MeasuredCurrent is the current into the load (read-only).
	MeasuredCurrent *instrument.Parameter[float64]
}

// Connect dials the address in cfg and builds the driver. This is the
// entry point used by config-driven startup wiring.
func Connect(cfg config.InstrumentConfig, registry *instrument.Registry) (*Device, error) {
	session, err := visa.Dial(cfg.Address, cfg.Timeout())
	if err != nil {
		return nil, fmt.Errorf("connecting to %q at %s: %w", cfg.Name, cfg.Address, err)
	}

	d, err := New(cfg.Name, session, Options{
		Label:      cfg.Label,
		Terminator: cfg.Terminator,
		Registry:   registry,
	})
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	return d, nil
}

// New creates a Device over an established session and registers it under
// name.
func New(name string, session visa.Session, opts Options) (*Device, error) {
	vi, err := visa.New(name, session, visa.Options{
		Label:      opts.Label,
		Terminator: opts.Terminator,
		Registry:   opts.Registry,
		Metadata: map[string]any{
			"vendor": "Rigol",
			"model":  "DP800",
		},
	})
	if err != nil {
		return nil, err
	}

	d := &Device{Instrument: vi}

	d.IDN, err = instrument.AddParameter[string](vi.Base, "idn", instrument.ParameterConfig[string]{
		Label:     "Identification",
		GetCmd:    "*IDN?",
		GetParser: instrument.StringParser,
	})
	if err != nil {
		_ = vi.Close()
		return nil, err
	}

	channels := make([]*Channel, 0, len(ratings))
	for i, rating := range ratings {
		ch, chErr := newChannel(vi.Base, i+1, rating)
		if chErr != nil {
			_ = vi.Close()
			return nil, chErr
		}
		channels = append(channels, ch)
	}

	d.Channels, err = instrument.NewChannelList(vi.Base, "channels", channels)
	if err != nil {
		_ = vi.Close()
		return nil, err
	}

	return d, nil
}

// newChannel builds the chN submodule with the channel number baked into
// every wire command.
func newChannel(parent *instrument.Base, number int, rating channelRating) (*Channel, error) {
	base, err := instrument.NewModule(parent, fmt.Sprintf("ch%d", number), instrument.Options{
		Label: fmt.Sprintf("Channel %d", number),
	})
	if err != nil {
		return nil, err
	}

	ch := &Channel{Base: base}

	ch.Voltage, err = instrument.AddParameter[float64](base, "voltage", instrument.ParameterConfig[float64]{
		Label:     "Voltage setpoint",
		Unit:      "V",
		Validator: validate.Numbers(rating.voltageMin, rating.voltageMax),
		GetCmd:    fmt.Sprintf(":VOLT? CH%d", number),
		SetCmd:    fmt.Sprintf(":VOLT CH%d,%%s", number),
		GetParser: instrument.FloatParser,
		SetParser: instrument.FloatFormatter,
	})
	if err != nil {
		return nil, err
	}

	ch.Current, err = instrument.AddParameter[float64](base, "current", instrument.ParameterConfig[float64]{
		Label:     "Current limit",
		Unit:      "A",
		Validator: validate.Numbers(0, rating.currentMax),
		GetCmd:    fmt.Sprintf(":CURR? CH%d", number),
		SetCmd:    fmt.Sprintf(":CURR CH%d,%%s", number),
		GetParser: instrument.FloatParser,
		SetParser: instrument.FloatFormatter,
	})
	if err != nil {
		return nil, err
	}

	ch.OutputEnabled, err = instrument.AddParameter[bool](base, "output_enabled", instrument.ParameterConfig[bool]{
		Label:     "Output enabled",
		GetCmd:    fmt.Sprintf(":OUTP? CH%d", number),
		SetCmd:    fmt.Sprintf(":OUTP CH%d,%%s", number),
		GetParser: instrument.BoolParser,
		SetParser: instrument.OnOffFormatter,
	})
	if err != nil {
		return nil, err
	}

	ch.MeasuredVoltage, err = instrument.AddParameter[float64](base, "measured_voltage", instrument.ParameterConfig[float64]{
		Label:     "Measured voltage",
		Unit:      "V",
		GetCmd:    fmt.Sprintf(":MEAS:VOLT? CH%d", number),
		GetParser: instrument.FloatParser,
	})
	if err != nil {
		return nil, err
	}

	ch.MeasuredCurrent, err = instrument.AddParameter[float64](base, "measured_current", instrument.ParameterConfig[float64]{
		Label:     "Measured current",
		Unit:      "A",
		GetCmd:    fmt.Sprintf(":MEAS:CURR? CH%d", number),
		GetParser: instrument.FloatParser,
	})
	if err != nil {
		return nil, err
	}

	return ch, nil
}
