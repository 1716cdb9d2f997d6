package blkif

import (
	"reflect"
	"testing"
)

func assocToMap(attrs []Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value
	}
	return m
}

func TestFeatureIndirectSentinel(t *testing.T) {
	f := FeatureIndirect{MaxIndirectSegments: 0}
	if got := f.ToAssoc(); len(got) != 0 {
		t.Errorf("ToAssoc() of zero sentinel = %v, want empty", got)
	}
	got, err := FeatureIndirectFromAssoc(map[string]string{})
	if err != nil || got.MaxIndirectSegments != 0 {
		t.Errorf("FeatureIndirectFromAssoc({}) = %+v, %v", got, err)
	}
}

func TestFeatureIndirectRoundTrip(t *testing.T) {
	f := FeatureIndirect{MaxIndirectSegments: 256}
	m := assocToMap(f.ToAssoc())
	got, err := FeatureIndirectFromAssoc(m)
	if err != nil || got != f {
		t.Errorf("round trip of %+v = %+v, %v", f, got, err)
	}
}

func TestDiskInfoInfoPacking(t *testing.T) {
	cases := []struct {
		d    DiskInfo
		info string
	}{
		{DiskInfo{Media: CDROM, Mode: ReadOnly}, "5"},
		{DiskInfo{Media: Disk, Mode: ReadWrite}, "0"},
	}
	for _, c := range cases {
		m := assocToMap(c.d.ToAssoc())
		if m["info"] != c.info {
			t.Errorf("%+v: info = %q, want %q", c.d, m["info"], c.info)
		}
	}
}

func TestDiskInfoRoundTrip(t *testing.T) {
	d := DiskInfo{SectorSize: 512, Sectors: 2097152, Media: CDROM, Mode: ReadOnly}
	m := assocToMap(d.ToAssoc())
	got, err := DiskInfoFromAssoc(m)
	if err != nil || got != d {
		t.Errorf("round trip of %+v = %+v, %v", d, got, err)
	}
}

func TestDiskInfoDecodeScenario(t *testing.T) {
	m := map[string]string{"sector-size": "512", "sectors": "2097152", "info": "5"}
	got, err := DiskInfoFromAssoc(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := DiskInfo{SectorSize: 512, Sectors: 2097152, Media: CDROM, Mode: ReadOnly}
	if got != want {
		t.Errorf("DiskInfoFromAssoc(%v) = %+v, want %+v", m, got, want)
	}
}

func TestRingInfoRoundTrip(t *testing.T) {
	r := RingInfo{Ref: 8, EventChannel: 3, Protocol: X86_64}
	m := assocToMap(r.ToAssoc())
	got, err := RingInfoFromAssoc(m)
	if err != nil || got != r {
		t.Errorf("round trip of %+v = %+v, %v", r, got, err)
	}
}

func TestRingInfoDecodeScenario(t *testing.T) {
	m := map[string]string{"ring-ref": "8", "event-channel": "3", "protocol": "x86_64-abi"}
	got, err := RingInfoFromAssoc(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := RingInfo{Ref: 8, EventChannel: 3, Protocol: X86_64}
	if got != want {
		t.Errorf("RingInfoFromAssoc(%v) = %+v, want %+v", m, got, want)
	}

	delete(m, "protocol")
	_, err = RingInfoFromAssoc(m)
	if err == nil {
		t.Fatal("expected error after removing protocol key")
	}
	if want := "missing protocol key"; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestRingInfoUnknownProtocol(t *testing.T) {
	m := map[string]string{"ring-ref": "1", "event-channel": "2", "protocol": "bogus"}
	if _, err := RingInfoFromAssoc(m); err == nil {
		t.Fatal("expected error for unknown protocol string")
	}
}

func TestFeatureIndirectToAssocNonZero(t *testing.T) {
	f := FeatureIndirect{MaxIndirectSegments: 4}
	got := f.ToAssoc()
	want := []Attr{{Key: keyFeatureMaxIndirectSegments, Value: "4"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToAssoc() = %v, want %v", got, want)
	}
}
