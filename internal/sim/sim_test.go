package sim_test

import (
	"testing"
	"time"

	"github.com/openlabctl/labcore/internal/infrastructure/config"
	"github.com/openlabctl/labcore/internal/infrastructure/logging"
	"github.com/openlabctl/labcore/internal/sim"
	"github.com/openlabctl/labcore/internal/visa"
)

func startSim(t *testing.T) *sim.Server {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
	srv := sim.New(log)
	if err := srv.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func dialSim(t *testing.T, srv *sim.Server) *visa.TCPSession {
	t.Helper()

	session, err := visa.Dial(srv.Addr(), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", srv.Addr(), err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func ask(t *testing.T, s *visa.TCPSession, cmd string) string {
	t.Helper()
	resp, err := s.Ask(cmd + "\n")
	if err != nil {
		t.Fatalf("Ask(%q) error = %v", cmd, err)
	}
	return resp
}

func write(t *testing.T, s *visa.TCPSession, cmd string) {
	t.Helper()
	if err := s.Write(cmd + "\n"); err != nil {
		t.Fatalf("Write(%q) error = %v", cmd, err)
	}
}

func TestIdentification(t *testing.T) {
	srv := startSim(t)
	session := dialSim(t, srv)

	idn := ask(t, session, "*IDN?")
	if idn != "RIGOL TECHNOLOGIES,DP832,SIM0000001,00.01.16" {
		t.Errorf("*IDN? = %q", idn)
	}
}

func TestSetpointRoundTrip(t *testing.T) {
	srv := startSim(t)
	session := dialSim(t, srv)

	write(t, session, ":VOLT CH1,5.5")
	write(t, session, ":CURR CH1,1.25")

	if got := ask(t, session, ":VOLT? CH1"); got != "5.500" {
		t.Errorf(":VOLT? CH1 = %q, want 5.500", got)
	}
	if got := ask(t, session, ":CURR? CH1"); got != "1.250" {
		t.Errorf(":CURR? CH1 = %q, want 1.250", got)
	}

	// Other channels are untouched
	if got := ask(t, session, ":VOLT? CH2"); got != "0.000" {
		t.Errorf(":VOLT? CH2 = %q, want 0.000", got)
	}
}

func TestOutputSwitching(t *testing.T) {
	srv := startSim(t)
	session := dialSim(t, srv)

	if got := ask(t, session, ":OUTP? CH2"); got != "OFF" {
		t.Errorf("initial :OUTP? CH2 = %q, want OFF", got)
	}

	write(t, session, ":OUTP CH2,ON")
	if got := ask(t, session, ":OUTP? CH2"); got != "ON" {
		t.Errorf(":OUTP? CH2 = %q, want ON", got)
	}

	write(t, session, ":OUTP CH2,OFF")
	if got := ask(t, session, ":OUTP? CH2"); got != "OFF" {
		t.Errorf(":OUTP? CH2 = %q, want OFF", got)
	}
}

func TestMeasurementsModelResistiveLoad(t *testing.T) {
	srv := startSim(t)
	session := dialSim(t, srv)

	write(t, session, ":VOLT CH1,5")
	write(t, session, ":CURR CH1,2")

	// Output off: everything reads zero
	if got := ask(t, session, ":MEAS:VOLT? CH1"); got != "0.000" {
		t.Errorf("output off :MEAS:VOLT? = %q, want 0.000", got)
	}
	if got := ask(t, session, ":MEAS:CURR? CH1"); got != "0.000" {
		t.Errorf("output off :MEAS:CURR? = %q, want 0.000", got)
	}

	// Output on: V = setpoint, I = V / 50 ohms
	write(t, session, ":OUTP CH1,ON")
	if got := ask(t, session, ":MEAS:VOLT? CH1"); got != "5.000" {
		t.Errorf(":MEAS:VOLT? = %q, want 5.000", got)
	}
	if got := ask(t, session, ":MEAS:CURR? CH1"); got != "0.100" {
		t.Errorf(":MEAS:CURR? = %q, want 0.100", got)
	}
}

func TestMeasuredCurrentClampsToLimit(t *testing.T) {
	srv := startSim(t)
	session := dialSim(t, srv)

	write(t, session, ":VOLT CH1,8")
	write(t, session, ":CURR CH1,0.05") // load would draw 0.16 A
	write(t, session, ":OUTP CH1,ON")

	if got := ask(t, session, ":MEAS:CURR? CH1"); got != "0.050" {
		t.Errorf(":MEAS:CURR? = %q, want 0.050 (clamped)", got)
	}
}

func TestUnknownAndMalformedInput(t *testing.T) {
	srv := startSim(t)
	session := dialSim(t, srv)

	tests := []struct {
		name  string
		query string
	}{
		{name: "unknown query", query: ":FREQ? CH1"},
		{name: "bad channel", query: ":VOLT? CH9"},
		{name: "not a channel", query: ":VOLT? BANANA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ask(t, session, tt.query); got != "ERR" {
				t.Errorf("%q = %q, want ERR", tt.query, got)
			}
		})
	}

	// Malformed set commands are ignored, connection stays usable
	write(t, session, ":VOLT CH1")
	write(t, session, ":VOLT CH1,abc")
	write(t, session, ":NOPE CH1,1")
	if got := ask(t, session, ":VOLT? CH1"); got != "0.000" {
		t.Errorf(":VOLT? CH1 = %q, want 0.000 after malformed sets", got)
	}
}

func TestStateSharedAcrossConnections(t *testing.T) {
	srv := startSim(t)

	first := dialSim(t, srv)
	write(t, first, ":VOLT CH3,2.5")

	second := dialSim(t, srv)
	if got := ask(t, second, ":VOLT? CH3"); got != "2.500" {
		t.Errorf("second connection :VOLT? CH3 = %q, want 2.500", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := startSim(t)
	if err := srv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
