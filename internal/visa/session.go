package visa

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// Session is a synchronous message channel to one physical instrument.
// Implementations serialise access: only one command may be in flight at
// a time on a session.
type Session interface {
	// Write sends a fully terminated command with no response expected.
	Write(cmd string) error

	// Ask sends a fully terminated command and returns one response line
	// with the terminator stripped.
	Ask(cmd string) (string, error)

	// Close releases the underlying channel. Close is idempotent.
	Close() error
}

// TCPSession is a Session over a raw TCP socket, the common transport for
// LAN-attached SCPI instruments.
type TCPSession struct {
	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	closed  bool
}

// Dial connects to a TCP-attached instrument. The timeout bounds the
// initial connect and every subsequent write/read deadline; zero means
// no deadline.
func Dial(addr string, timeout time.Duration) (*TCPSession, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dialling %s: %w", addr, err)
	}
	return NewTCPSession(conn, timeout), nil
}

// NewTCPSession wraps an established connection. Useful for tests and for
// sessions dialled through a gateway.
func NewTCPSession(conn net.Conn, timeout time.Duration) *TCPSession {
	return &TCPSession{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: timeout,
	}
}

// Write implements Session.
func (s *TCPSession) Write(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("session closed")
	}
	if err := s.setDeadline(); err != nil {
		return err
	}
	if _, err := s.conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("writing command: %w", err)
	}
	return nil
}

// Ask implements Session. The write and the read happen under one lock so
// concurrent callers cannot interleave a command between another caller's
// command and its response.
func (s *TCPSession) Ask(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("session closed")
	}
	if err := s.setDeadline(); err != nil {
		return "", err
	}
	if _, err := s.conn.Write([]byte(cmd)); err != nil {
		return "", fmt.Errorf("writing query: %w", err)
	}

	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Close implements Session.
func (s *TCPSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func (s *TCPSession) setDeadline() error {
	if s.timeout <= 0 {
		return nil
	}
	if err := s.conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		return fmt.Errorf("setting deadline: %w", err)
	}
	return nil
}
