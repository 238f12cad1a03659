// Package instrument provides the core object model for laboratory
// instrument control: named, typed, validated parameters grouped into
// instruments, with an in-memory cache per parameter and a recursive,
// serializable snapshot of instrument state.
//
// # Key Types
//
//   - Base: a container of parameters and submodules; the building block
//     for instruments, channels, and logical groupings
//   - Parameter: a single named, typed, validated quantity with get/set
//     semantics and a timestamped cache
//   - Registry: the process-wide instrument name registry
//   - ChannelList: an ordered collection of per-channel submodules for
//     multi-channel hardware
//   - Snapshot: a point-in-time capture of instrument/parameter state
//
// # Usage
//
//	psu, _ := instrument.New("psu", instrument.Options{
//	    Label:     "Bench PSU",
//	    Transport: session, // e.g. a visa.Instrument
//	})
//	voltage, _ := instrument.AddParameter(psu, "voltage", instrument.ParameterConfig[float64]{
//	    Unit:      "V",
//	    Validator: validate.Numbers(0, 30),
//	    GetCmd:    ":VOLT?",
//	    SetCmd:    ":VOLT %s",
//	    GetParser: instrument.FloatParser,
//	    SetParser: instrument.FloatFormatter,
//	})
//	_ = voltage.Set(ctx, 12.0)
//	v, _ := voltage.Get(ctx)
//
// AddParameter returns the typed handle so a driver can bind it to a
// declared struct field; downstream code then gets compile-time checking
// of parameter identity and value type despite the dynamic registry.
//
// # Caching
//
// Set updates the cache to the validated setpoint without a readback.
// This optimistic cache favors round-trip performance and can diverge
// from hardware truth if the instrument silently clamps or rejects a
// value; callers that need ground truth must Get. GetLatest never
// touches hardware.
//
// # Thread Safety
//
// The registry and each parameter's cache are internally synchronized.
// Command ordering on a single instrument is the caller's responsibility:
// the core takes no lock across a get/set round trip, because hiding
// ordering from concurrent control scripts would mask real sequencing
// bugs (arm-then-trigger and similar).
package instrument
