package visa

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// echoServer answers every "QRY n" line with "RSP n" and swallows
// everything else.
func echoServer(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close() //nolint:errcheck // Test server
				reader := bufio.NewReader(conn)
				for {
					line, err := reader.ReadString('\n')
					if err != nil {
						return
					}
					line = strings.TrimRight(line, "\r\n")
					if rest, ok := strings.CutPrefix(line, "QRY "); ok {
						if _, err := conn.Write([]byte("RSP " + rest + "\n")); err != nil {
							return
						}
					}
				}
			}()
		}
	}()
	return ln.Addr().String()
}

func TestTCPSessionAsk(t *testing.T) {
	addr := echoServer(t)

	session, err := Dial(addr, 2*time.Second)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer session.Close() //nolint:errcheck // Best-effort cleanup

	resp, err := session.Ask("QRY hello\n")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp != "RSP hello" {
		t.Errorf("Ask() = %q, want %q", resp, "RSP hello")
	}

	if err := session.Write("NOOP\n"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

// Concurrent Ask calls must never pair one caller's command with
// another caller's response.
func TestTCPSessionSerialisesConcurrentAsks(t *testing.T) {
	addr := echoServer(t)

	session, err := Dial(addr, 5*time.Second)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer session.Close() //nolint:errcheck // Best-effort cleanup

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			want := strings.Repeat("x", n+1)
			resp, err := session.Ask("QRY " + want + "\n")
			if err != nil {
				errs <- err
				return
			}
			if resp != "RSP "+want {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Ask: %v", err)
	}
}

func TestTCPSessionCloseIdempotent(t *testing.T) {
	addr := echoServer(t)

	session, err := Dial(addr, time.Second)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := session.Write("QRY after-close\n"); err == nil {
		t.Error("Write() after Close() succeeded, want error")
	}
}

func TestDialFailure(t *testing.T) {
	// Port 1 on loopback is essentially never listening.
	if _, err := Dial("127.0.0.1:1", 200*time.Millisecond); err == nil {
		t.Fatal("Dial() to closed port succeeded, want error")
	}
}
