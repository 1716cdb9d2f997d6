package blkif

import "testing"

func TestModeRoundTrip(t *testing.T) {
	for _, m := range []Mode{ReadOnly, ReadWrite} {
		s := m.String()
		got, ok := ModeFromString(s)
		if !ok || got != m {
			t.Errorf("Mode %v: of_string(to_string) = %v, %v", m, got, ok)
		}
		if got := ModeFromInt(m.ToInt()); got != m {
			t.Errorf("Mode %v: of_int(to_int) = %v", m, got)
		}
	}
}

func TestMediaRoundTrip(t *testing.T) {
	for _, m := range []Media{CDROM, Disk} {
		s := m.String()
		got, ok := MediaFromString(s)
		if !ok || got != m {
			t.Errorf("Media %v: of_string(to_string) = %v, %v", m, got, ok)
		}
		if got := MediaFromInt(m.ToInt()); got != m {
			t.Errorf("Media %v: of_int(to_int) = %v", m, got)
		}
	}
}

func TestStateRoundTrip(t *testing.T) {
	for _, s := range []State{Initialising, InitWait, Initialised, Connected, Closing, Closed} {
		str := s.String()
		got, err := StateFromString(str)
		if err != nil || got != s {
			t.Errorf("State %v: of_string(to_string) = %v, %v", s, got, err)
		}
		got2, err := StateFromInt(s.ToInt())
		if err != nil || got2 != s {
			t.Errorf("State %v: of_int(to_int) = %v, %v", s, got2, err)
		}
	}
}

func TestStateFromIntUnknown(t *testing.T) {
	if _, err := StateFromInt(0); err == nil {
		t.Fatal("expected error for unknown state code 0")
	}
	if _, err := StateFromInt(7); err == nil {
		t.Fatal("expected error for unknown state code 7")
	}
}

func TestStateNext(t *testing.T) {
	order := []State{Initialising, InitWait, Initialised, Connected, Closing, Closed}
	for i := 0; i < len(order)-1; i++ {
		next, ok := order[i].Next()
		if !ok || next != order[i+1] {
			t.Errorf("State %v: Next() = %v, %v; want %v, true", order[i], next, ok, order[i+1])
		}
	}
	if _, ok := Closed.Next(); ok {
		t.Error("Closed.Next() should have no further transition")
	}
}

func TestProtocolRoundTrip(t *testing.T) {
	for _, p := range []Protocol{Native, X86_64, X86_32} {
		s := p.String()
		got, ok := ProtocolFromString(s)
		if !ok || got != p {
			t.Errorf("Protocol %v: of_string(to_string) = %v, %v", p, got, ok)
		}
	}
	if _, ok := ProtocolFromString("bogus-abi"); ok {
		t.Error("expected ProtocolFromString to reject unknown string")
	}
}

func TestOpRoundTrip(t *testing.T) {
	for _, op := range []Op{OpRead, OpWrite, OpWriteBarrier, OpFlush, OpReserved1, OpTrim, OpIndirect} {
		got, ok := OpFromInt(op.ToInt())
		if !ok || got != op {
			t.Errorf("Op %v: of_int(to_int) = %v, %v", op, got, ok)
		}
	}
}

func TestOpFromIntUnknownIsAbsent(t *testing.T) {
	if _, ok := OpFromInt(0xFF); ok {
		t.Error("0xFF should not decode to a known Op")
	}
	if _, ok := OpFromInt(7); ok {
		t.Error("7 should not decode to a known Op")
	}
}

func TestRspRoundTrip(t *testing.T) {
	for _, r := range []Rsp{RspOK, RspError, RspNotSupported} {
		got, ok := RspFromInt(r.ToInt())
		if !ok || got != r {
			t.Errorf("Rsp %v: of_int(to_int) = %v, %v", r, got, ok)
		}
	}
}

func TestRspSentinelCollision(t *testing.T) {
	// The canonical decoder prefers RspError over absent for 0xFFFF.
	got := wordToRsp(0xFFFF)
	if !got.Valid || got.Rsp != RspError {
		t.Errorf("wordToRsp(0xFFFF) = %+v, want RspError", got)
	}
}
