package gpio

import (
	"errors"
	"testing"
	"time"
)

func TestSimDriver_LineBusy(t *testing.T) {
	sim := NewSimDriver(2)

	l, err := sim.OpenOutput(0, true, "a")
	if err != nil {
		t.Fatalf("OpenOutput() error = %v", err)
	}
	if _, err := sim.OpenOutput(0, true, "b"); !errors.Is(err, ErrLineBusy) {
		t.Fatalf("second OpenOutput() error = %v, want ErrLineBusy", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := sim.OpenOutput(0, true, "b"); err != nil {
		t.Fatalf("OpenOutput() after close error = %v", err)
	}
}

func TestSimDriver_Notify(t *testing.T) {
	sim := NewSimDriver(2)
	writes := sim.Notify(4)

	l, err := sim.OpenOutput(1, false, "led")
	if err != nil {
		t.Fatalf("OpenOutput() error = %v", err)
	}
	if err := l.SetValue(true); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}

	want := []bool{false, true}
	for i, high := range want {
		select {
		case w := <-writes:
			if w.Pin != 1 || w.High != high {
				t.Errorf("write %d = %+v, want pin 1 high=%v", i, w, high)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for write %d", i)
		}
	}
}

func TestSimDriver_ClosedLineRejectsWrites(t *testing.T) {
	sim := NewSimDriver(1)

	l, err := sim.OpenOutput(0, true, "led")
	if err != nil {
		t.Fatalf("OpenOutput() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.SetValue(false); err == nil {
		t.Error("SetValue() on closed line expected error, got nil")
	}
	if !sim.Level(0) {
		t.Error("level changed through closed line")
	}
}

func TestPinID_String(t *testing.T) {
	if got := PinID(7).String(); got != "7" {
		t.Errorf("PinID(7).String() = %q, want %q", got, "7")
	}
	if got := InvalidPin.String(); got != "invalid" {
		t.Errorf("InvalidPin.String() = %q, want %q", got, "invalid")
	}
}

func TestSimDriver_HistoryBounded(t *testing.T) {
	tests := []struct {
		name    string
		history int
		writes  int
		wantLen int
	}{
		{name: "below limit", history: 8, writes: 5, wantLen: 6},
		{name: "at limit", history: 8, writes: 7, wantLen: 8},
		{name: "far past limit", history: 8, writes: 10_000, wantLen: 8},
		{name: "disabled", history: 0, writes: 100, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewSimDriver(1)
			sim.SetHistory(tt.history)

			l, err := sim.OpenOutput(0, true, "led")
			if err != nil {
				t.Fatalf("OpenOutput() error = %v", err)
			}
			for i := 0; i < tt.writes; i++ {
				if err := l.SetValue(i%2 == 0); err != nil {
					t.Fatalf("SetValue() error = %v", err)
				}
			}

			got := sim.Writes()
			if len(got) != tt.wantLen {
				t.Fatalf("len(Writes()) = %d, want %d", len(got), tt.wantLen)
			}
			if n := sim.WriteCount(); n != uint64(tt.writes+1) {
				t.Errorf("WriteCount() = %d, want %d", n, tt.writes+1)
			}
			if tt.wantLen > 0 {
				last := got[len(got)-1]
				if wantHigh := (tt.writes-1)%2 == 0; last.High != wantHigh {
					t.Errorf("last write high = %v, want %v", last.High, wantHigh)
				}
				if sim.Level(0) != last.High {
					t.Error("Level() disagrees with the newest logged write")
				}
			}
		})
	}
}

func TestSimDriver_DefaultHistory(t *testing.T) {
	sim := NewSimDriver(1)
	l, err := sim.OpenOutput(0, true, "led")
	if err != nil {
		t.Fatalf("OpenOutput() error = %v", err)
	}
	for i := 0; i < 3*DefaultSimHistory; i++ {
		if err := l.SetValue(i%2 == 0); err != nil {
			t.Fatalf("SetValue() error = %v", err)
		}
	}
	if got := len(sim.Writes()); got != DefaultSimHistory {
		t.Errorf("len(Writes()) = %d, want %d", got, DefaultSimHistory)
	}
}

func TestSimDriver_SetHistoryShrinks(t *testing.T) {
	sim := NewSimDriver(1)
	l, err := sim.OpenOutput(0, true, "led")
	if err != nil {
		t.Fatalf("OpenOutput() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := l.SetValue(i%2 == 0); err != nil {
			t.Fatalf("SetValue() error = %v", err)
		}
	}
	before := sim.Writes()

	sim.SetHistory(3)
	got := sim.Writes()
	if len(got) != 3 {
		t.Fatalf("len(Writes()) = %d, want 3", len(got))
	}
	for i, w := range got {
		if w != before[len(before)-3+i] {
			t.Errorf("Writes()[%d] = %+v, want %+v", i, w, before[len(before)-3+i])
		}
	}
}
