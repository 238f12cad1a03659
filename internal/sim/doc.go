// Package sim implements a TCP SCPI instrument simulator.
//
// The simulator speaks the subset of the DP800 power-supply dialect the
// bundled driver uses, so a full service stack can run on a bench with no
// hardware attached: drivers connect to the simulator exactly as they
// would to a real instrument, over a newline-terminated TCP session.
//
// Supported commands (n is a 1-based channel number):
//
//	*IDN?                    identification string
//	:VOLT CHn,<v>            set voltage setpoint
//	:VOLT? CHn               query voltage setpoint
//	:CURR CHn,<i>            set current limit
//	:CURR? CHn               query current limit
//	:OUTP CHn,<ON|OFF>       enable/disable output
//	:OUTP? CHn               query output state
//	:MEAS:VOLT? CHn          measured output voltage
//	:MEAS:CURR? CHn          measured output current
//
// Measurements model a fixed resistive load on each channel: with the
// output on, the measured voltage equals the setpoint and the measured
// current is V/R clamped to the current limit; with the output off both
// read zero. The model is deterministic so driver tests can assert exact
// values.
//
// Unknown queries answer "ERR"; unknown commands are ignored, matching
// the fail-silent convention of real SCPI instruments.
package sim
