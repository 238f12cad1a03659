package sim

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/openlabctl/labcore/internal/infrastructure/logging"
)

const (
	// channelCount is the number of simulated output channels.
	channelCount = 3

	// loadResistance is the fixed resistive load on each channel, in ohms.
	loadResistance = 50.0

	// identity is the *IDN? response.
	identity = "RIGOL TECHNOLOGIES,DP832,SIM0000001,00.01.16"
)

// channelState holds the setpoints and output state of one channel.
type channelState struct {
	voltage float64
	current float64
	output  bool
}

// Server is a single-instrument SCPI simulator. One Server simulates one
// power supply; all connections share the same channel state.
type Server struct {
	logger *logging.Logger

	ln     net.Listener
	wg     sync.WaitGroup
	closed atomic.Bool

	mu       sync.Mutex
	channels [channelCount]channelState
}

// New creates a simulator. Start must be called before it accepts
// connections.
func New(logger *logging.Logger) *Server {
	return &Server{
		logger: logger.With("component", "sim"),
	}
}

// Start listens on addr and begins accepting connections in the
// background. Use "127.0.0.1:0" to bind an ephemeral port and read it
// back with Addr.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("sim listen on %s: %w", addr, err)
	}
	s.ln = ln
	s.logger.Info("simulator listening", "address", ln.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close stops the listener and waits for connection handlers to finish.
// Idempotent.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !s.closed.Load() {
				s.logger.Error("simulator accept failed", "error", err)
			}
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close() //nolint:errcheck // Best-effort cleanup

	s.logger.Debug("simulator client connected", "remote", conn.RemoteAddr().String())

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp, reply := s.execute(line)
		if !reply {
			continue
		}
		if _, err := fmt.Fprintf(conn, "%s\n", resp); err != nil {
			s.logger.Debug("simulator write failed", "error", err)
			return
		}
	}
}

// execute runs one command line. reply reports whether a response line
// must be sent (queries only).
func (s *Server) execute(line string) (resp string, reply bool) {
	cmd, arg, _ := strings.Cut(line, " ")
	cmd = strings.ToUpper(strings.TrimSpace(cmd))
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "*IDN?":
		return identity, true

	case ":VOLT":
		s.setFloat(arg, func(ch *channelState, v float64) { ch.voltage = v })
		return "", false
	case ":VOLT?":
		return s.queryFloat(arg, func(ch channelState) float64 { return ch.voltage })

	case ":CURR":
		s.setFloat(arg, func(ch *channelState, v float64) { ch.current = v })
		return "", false
	case ":CURR?":
		return s.queryFloat(arg, func(ch channelState) float64 { return ch.current })

	case ":OUTP":
		s.setOutput(arg)
		return "", false
	case ":OUTP?":
		return s.queryOutput(arg)

	case ":MEAS:VOLT?":
		return s.queryFloat(arg, measuredVoltage)
	case ":MEAS:CURR?":
		return s.queryFloat(arg, measuredCurrent)

	default:
		if strings.HasSuffix(cmd, "?") {
			s.logger.Debug("simulator unknown query", "command", cmd)
			return "ERR", true
		}
		s.logger.Debug("simulator unknown command", "command", cmd)
		return "", false
	}
}

// measuredVoltage models the output terminal voltage.
func measuredVoltage(ch channelState) float64 {
	if !ch.output {
		return 0
	}
	return ch.voltage
}

// measuredCurrent models a fixed resistive load, clamped to the limit.
func measuredCurrent(ch channelState) float64 {
	if !ch.output {
		return 0
	}
	i := ch.voltage / loadResistance
	if i > ch.current {
		return ch.current
	}
	if i < -ch.current {
		return -ch.current
	}
	return i
}

// parseChannel extracts the zero-based channel index from a "CHn" token.
func parseChannel(token string) (int, bool) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if !strings.HasPrefix(token, "CH") {
		return 0, false
	}
	n, err := strconv.Atoi(token[2:])
	if err != nil || n < 1 || n > channelCount {
		return 0, false
	}
	return n - 1, true
}

// setFloat handles "CHn,<value>" set commands.
func (s *Server) setFloat(arg string, apply func(*channelState, float64)) {
	chTok, valTok, ok := strings.Cut(arg, ",")
	if !ok {
		return
	}
	idx, ok := parseChannel(chTok)
	if !ok {
		return
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(valTok), 64)
	if err != nil {
		return
	}

	s.mu.Lock()
	apply(&s.channels[idx], v)
	s.mu.Unlock()
}

// queryFloat handles "CHn" float queries.
func (s *Server) queryFloat(arg string, read func(channelState) float64) (string, bool) {
	idx, ok := parseChannel(arg)
	if !ok {
		return "ERR", true
	}

	s.mu.Lock()
	v := read(s.channels[idx])
	s.mu.Unlock()

	return strconv.FormatFloat(v, 'f', 3, 64), true
}

// setOutput handles ":OUTP CHn,<ON|OFF|1|0>".
func (s *Server) setOutput(arg string) {
	chTok, valTok, ok := strings.Cut(arg, ",")
	if !ok {
		return
	}
	idx, ok := parseChannel(chTok)
	if !ok {
		return
	}

	var on bool
	switch strings.ToUpper(strings.TrimSpace(valTok)) {
	case "ON", "1":
		on = true
	case "OFF", "0":
		on = false
	default:
		return
	}

	s.mu.Lock()
	s.channels[idx].output = on
	s.mu.Unlock()
}

// queryOutput handles ":OUTP? CHn".
func (s *Server) queryOutput(arg string) (string, bool) {
	idx, ok := parseChannel(arg)
	if !ok {
		return "ERR", true
	}

	s.mu.Lock()
	on := s.channels[idx].output
	s.mu.Unlock()

	if on {
		return "ON", true
	}
	return "OFF", true
}
