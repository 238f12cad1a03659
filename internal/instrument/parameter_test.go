package instrument

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openlabctl/labcore/internal/validate"
)

// fakeTransport replays canned responses and records every command.
type fakeTransport struct {
	writes    []string
	asks      []string
	responses map[string]string
	failWith  error
}

func (f *fakeTransport) Write(_ context.Context, cmd string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.writes = append(f.writes, cmd)
	return nil
}

func (f *fakeTransport) Ask(_ context.Context, cmd string) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	f.asks = append(f.asks, cmd)
	return f.responses[cmd], nil
}

func newTestBase(t *testing.T, transport Transport) *Base {
	t.Helper()

	b, err := New("dut", Options{Transport: transport, Registry: NewRegistry()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestAddParameterConfigValidation(t *testing.T) {
	withTransport := &fakeTransport{}

	tests := []struct {
		name      string
		transport Transport
		paramName string
		cfg       ParameterConfig[float64]
		wantErr   error
	}{
		{
			name:      "func backed get only",
			transport: withTransport,
			paramName: "temp",
			cfg: ParameterConfig[float64]{
				GetFunc: func(context.Context) (float64, error) { return 0, nil },
			},
		},
		{
			name:      "command backed",
			transport: withTransport,
			paramName: "voltage",
			cfg: ParameterConfig[float64]{
				GetCmd: ":VOLT?", GetParser: FloatParser,
				SetCmd: ":VOLT %s", SetParser: FloatFormatter,
			},
		},
		{
			name:      "both get sources",
			transport: withTransport,
			paramName: "voltage",
			cfg: ParameterConfig[float64]{
				GetFunc:   func(context.Context) (float64, error) { return 0, nil },
				GetCmd:    ":VOLT?",
				GetParser: FloatParser,
			},
			wantErr: ErrInvalidConfig,
		},
		{
			name:      "no source at all",
			transport: withTransport,
			paramName: "voltage",
			cfg:       ParameterConfig[float64]{Unit: "V"},
			wantErr:   ErrInvalidConfig,
		},
		{
			name:      "get command without parser",
			transport: withTransport,
			paramName: "voltage",
			cfg:       ParameterConfig[float64]{GetCmd: ":VOLT?"},
			wantErr:   ErrInvalidConfig,
		},
		{
			name:      "set command without verb",
			transport: withTransport,
			paramName: "voltage",
			cfg:       ParameterConfig[float64]{SetCmd: ":VOLT 5", SetParser: FloatFormatter},
			wantErr:   ErrInvalidConfig,
		},
		{
			name:      "command without transport",
			transport: nil,
			paramName: "voltage",
			cfg:       ParameterConfig[float64]{GetCmd: ":VOLT?", GetParser: FloatParser},
			wantErr:   ErrInvalidConfig,
		},
		{
			name:      "dotted name",
			transport: withTransport,
			paramName: "a.b",
			cfg: ParameterConfig[float64]{
				GetFunc: func(context.Context) (float64, error) { return 0, nil },
			},
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBase(t, tt.transport)

			_, err := AddParameter[float64](b, tt.paramName, tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddParameter() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddParameterDuplicateName(t *testing.T) {
	b := newTestBase(t, nil)

	cfg := ParameterConfig[float64]{
		GetFunc: func(context.Context) (float64, error) { return 0, nil },
	}
	if _, err := AddParameter[float64](b, "voltage", cfg); err != nil {
		t.Fatalf("first AddParameter() error = %v", err)
	}
	if _, err := AddParameter[float64](b, "voltage", cfg); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("second AddParameter() error = %v, want ErrDuplicateName", err)
	}

	// Same name on a sibling instrument is fine.
	other := newTestBase(t, nil)
	if _, err := AddParameter[float64](other, "voltage", cfg); err != nil {
		t.Errorf("AddParameter() on sibling error = %v", err)
	}
}

func TestGetUpdatesCache(t *testing.T) {
	transport := &fakeTransport{responses: map[string]string{":VOLT?": " 1.25E+00 "}}
	b := newTestBase(t, transport)

	voltage, err := AddParameter[float64](b, "voltage", ParameterConfig[float64]{
		Unit:      "V",
		GetCmd:    ":VOLT?",
		GetParser: FloatParser,
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}

	if _, _, ok := voltage.GetLatest(); ok {
		t.Fatal("cache populated before first read")
	}

	before := time.Now().UTC()
	got, err := voltage.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != 1.25 {
		t.Errorf("Get() = %v, want 1.25", got)
	}

	v, ts, ok := voltage.GetLatest()
	if !ok || v != 1.25 {
		t.Errorf("GetLatest() = (%v, ok=%v), want (1.25, true)", v, ok)
	}
	if ts.Before(before) {
		t.Errorf("cache timestamp %v predates the read", ts)
	}
}

func TestGetRejectsOutOfRangeReadback(t *testing.T) {
	transport := &fakeTransport{responses: map[string]string{":VOLT?": "99"}}
	b := newTestBase(t, transport)

	voltage, err := AddParameter[float64](b, "voltage", ParameterConfig[float64]{
		Validator: validate.Numbers(0, 8),
		GetCmd:    ":VOLT?",
		GetParser: FloatParser,
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}

	if _, err := voltage.Get(context.Background()); !errors.Is(err, validate.ErrInvalidValue) {
		t.Fatalf("Get() error = %v, want ErrInvalidValue", err)
	}
	if _, _, ok := voltage.GetLatest(); ok {
		t.Error("cache updated from a rejected readback")
	}
}

func TestSetValidatesBeforeHardware(t *testing.T) {
	transport := &fakeTransport{}
	b := newTestBase(t, transport)

	voltage, err := AddParameter[float64](b, "voltage", ParameterConfig[float64]{
		Validator: validate.Numbers(0, 8),
		SetCmd:    ":VOLT %s",
		SetParser: FloatFormatter,
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}

	if err := voltage.Set(context.Background(), 12); !errors.Is(err, validate.ErrInvalidValue) {
		t.Fatalf("Set(12) error = %v, want ErrInvalidValue", err)
	}
	if len(transport.writes) != 0 {
		t.Errorf("hardware saw %d writes after invalid set, want 0", len(transport.writes))
	}
	if _, _, ok := voltage.GetLatest(); ok {
		t.Error("cache updated from a rejected set")
	}
}

func TestSetOptimisticCache(t *testing.T) {
	transport := &fakeTransport{}
	b := newTestBase(t, transport)

	voltage, err := AddParameter[float64](b, "voltage", ParameterConfig[float64]{
		SetCmd:    ":VOLT %s",
		SetParser: FloatFormatter,
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}

	if err := voltage.Set(context.Background(), 3.3); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if len(transport.writes) != 1 || transport.writes[0] != ":VOLT 3.3" {
		t.Errorf("writes = %q, want [\":VOLT 3.3\"]", transport.writes)
	}

	// No readback: the setpoint itself is cached.
	if len(transport.asks) != 0 {
		t.Errorf("set issued %d queries, want 0", len(transport.asks))
	}
	v, _, ok := voltage.GetLatest()
	if !ok || v != 3.3 {
		t.Errorf("GetLatest() = (%v, ok=%v), want (3.3, true)", v, ok)
	}
}

func TestSetTransportFailureKeepsCache(t *testing.T) {
	transport := &fakeTransport{}
	b := newTestBase(t, transport)

	voltage, err := AddParameter[float64](b, "voltage", ParameterConfig[float64]{
		SetCmd:    ":VOLT %s",
		SetParser: FloatFormatter,
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}
	if err := voltage.Set(context.Background(), 1.0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	transport.failWith = errors.New("socket gone")
	if err := voltage.Set(context.Background(), 2.0); err == nil {
		t.Fatal("Set() with dead transport succeeded, want error")
	}

	v, _, ok := voltage.GetLatest()
	if !ok || v != 1.0 {
		t.Errorf("GetLatest() = (%v, ok=%v), want the pre-failure setpoint (1, true)", v, ok)
	}
}

func TestDirectionErrors(t *testing.T) {
	b := newTestBase(t, &fakeTransport{})

	getOnly, err := AddParameter[float64](b, "temp", ParameterConfig[float64]{
		GetCmd:    ":TEMP?",
		GetParser: FloatParser,
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}
	setOnly, err := AddParameter[float64](b, "setpoint", ParameterConfig[float64]{
		SetCmd:    ":SETP %s",
		SetParser: FloatFormatter,
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}

	if err := getOnly.Set(context.Background(), 1); !errors.Is(err, ErrNotSettable) {
		t.Errorf("Set() on get-only error = %v, want ErrNotSettable", err)
	}
	if _, err := setOnly.Get(context.Background()); !errors.Is(err, ErrNotGettable) {
		t.Errorf("Get() on set-only error = %v, want ErrNotGettable", err)
	}
}

func TestSetOnlyCacheIsAuthoritative(t *testing.T) {
	transport := &fakeTransport{}
	b := newTestBase(t, transport)

	setpoint, err := AddParameter[float64](b, "setpoint", ParameterConfig[float64]{
		SetCmd:    ":SETP %s",
		SetParser: FloatFormatter,
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}

	if err := setpoint.Set(context.Background(), 4.2); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, _, ok := setpoint.GetLatest()
	if !ok || v != 4.2 {
		t.Errorf("GetLatest() = (%v, ok=%v), want (4.2, true)", v, ok)
	}
}

func TestCacheValidFor(t *testing.T) {
	b := newTestBase(t, nil)

	p, err := AddParameter[int](b, "count", ParameterConfig[int]{
		GetFunc: func(context.Context) (int, error) { return 7, nil },
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}

	if p.CacheValidFor(time.Hour) {
		t.Error("empty cache reported valid")
	}
	if _, err := p.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !p.CacheValidFor(time.Hour) {
		t.Error("fresh cache reported stale")
	}
	if p.CacheValidFor(0) {
		t.Error("cache reported valid for zero max age")
	}
}

func TestOnCacheChange(t *testing.T) {
	b := newTestBase(t, nil)

	var changes []Change[float64]
	p, err := AddParameter[float64](b, "level", ParameterConfig[float64]{
		SetFunc: func(context.Context, float64) error { return nil },
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}
	p.OnCacheChange(func(c Change[float64]) { changes = append(changes, c) })

	if err := p.Set(context.Background(), 1.0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := p.Set(context.Background(), 2.0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(changes))
	}
	if changes[0].OldOK {
		t.Error("first change reports a previous value")
	}
	if changes[0].New != 1.0 {
		t.Errorf("first change New = %v, want 1", changes[0].New)
	}
	if !changes[1].OldOK || changes[1].Old != 1.0 || changes[1].New != 2.0 {
		t.Errorf("second change = %+v, want Old=1 New=2", changes[1])
	}
}

func TestSetAnyConversions(t *testing.T) {
	b := newTestBase(t, nil)

	var gotInt int
	intParam, err := AddParameter[int](b, "points", ParameterConfig[int]{
		SetFunc: func(_ context.Context, v int) error { gotInt = v; return nil },
	})
	if err != nil {
		t.Fatalf("AddParameter() error = %v", err)
	}

	// JSON numbers arrive as float64.
	if err := intParam.SetAny(context.Background(), float64(41)); err != nil {
		t.Fatalf("SetAny(41.0) error = %v", err)
	}
	if gotInt != 41 {
		t.Errorf("SetAny delivered %d, want 41", gotInt)
	}

	// Lossy or impossible conversions are value rejections, not
	// configuration problems.
	if err := intParam.SetAny(context.Background(), 1.5); !errors.Is(err, validate.ErrInvalidValue) {
		t.Errorf("SetAny(1.5) on int parameter error = %v, want ErrInvalidValue", err)
	}
	if err := intParam.SetAny(context.Background(), "41"); !errors.Is(err, validate.ErrInvalidValue) {
		t.Errorf("SetAny(string) on int parameter error = %v, want ErrInvalidValue", err)
	}
}
