package store

import (
	"testing"

	"github.com/xenproject/goblkif/blkif"
)

func TestApplyAndReadDir(t *testing.T) {
	c := blkif.Connection{
		VirtualDevice: "51712",
		BackendPath:   "/b",
		FrontendPath:  "/f",
		BackendDomid:  0,
		FrontendDomid: 1,
		Mode:          blkif.ReadWrite,
		Media:         blkif.Disk,
	}
	tree := New()
	tree.Apply(c.Emit())

	backend := tree.ReadDir(0, "/b")
	if backend["mode"] != "w" {
		t.Errorf("backend mode = %q, want %q", backend["mode"], "w")
	}
	if backend["state"] != "1" {
		t.Errorf("backend state = %q, want %q", backend["state"], "1")
	}

	frontend := tree.ReadDir(1, "/f")
	if frontend["device-type"] != "disk" {
		t.Errorf("frontend device-type = %q, want %q", frontend["device-type"], "disk")
	}
}

func TestRingInfoThroughStore(t *testing.T) {
	tree := New()
	info := blkif.RingInfo{Ref: 8, EventChannel: 3, Protocol: blkif.X86_64}
	for _, a := range info.ToAssoc() {
		tree.Write(1, "/f/"+a.Key, a.Value)
	}
	got, err := blkif.RingInfoFromAssoc(tree.ReadDir(1, "/f"))
	if err != nil {
		t.Fatalf("RingInfoFromAssoc: %v", err)
	}
	if got != info {
		t.Errorf("got %+v, want %+v", got, info)
	}
}

func TestStateTransitionRoundTrip(t *testing.T) {
	tree := New()
	tree.WriteState(0, "/b", blkif.Initialising)
	got, err := tree.ReadState(0, "/b")
	if err != nil || got != blkif.Initialising {
		t.Fatalf("ReadState = %v, %v", got, err)
	}

	next, ok := got.Next()
	if !ok {
		t.Fatal("Initialising should have a next state")
	}
	tree.WriteState(0, "/b", next)
	got, err = tree.ReadState(0, "/b")
	if err != nil || got != blkif.InitWait {
		t.Fatalf("ReadState after transition = %v, %v", got, err)
	}
}

func TestReadDirDoesNotDescendNestedPaths(t *testing.T) {
	tree := New()
	tree.Write(0, "/b/state", "1")
	tree.Write(0, "/b/nested/deep", "x")
	got := tree.ReadDir(0, "/b")
	if _, ok := got["nested/deep"]; ok {
		t.Error("ReadDir should not return nested paths")
	}
	if got["state"] != "1" {
		t.Errorf("state = %q, want 1", got["state"])
	}
}
