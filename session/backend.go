package session

import (
	"golang.org/x/net/context"

	"github.com/xenproject/goblkif/blkif"
)

// Backend is implemented by the various disk drivers. It is the
// segment-addressed analogue of the teacher's byte-range nbd.Backend
// interface: a blkif Request names sectors via one or more Segments rather
// than a flat byte range, so every I/O method below takes the Segment
// alongside the absolute disk sector at which that segment's data begins:
// the request's starting sector plus the sectors covered by the segments
// before it in the same request.
type Backend interface {
	// ReadSegment fills buf with len(buf) bytes read from the disk starting
	// at sector.
	ReadSegment(ctx context.Context, seg blkif.Segment, sector uint64, buf []byte) error
	// WriteSegment writes buf to the disk starting at sector.
	WriteSegment(ctx context.Context, seg blkif.Segment, sector uint64, buf []byte) error
	// Flush commits any buffered writes to stable storage.
	Flush(ctx context.Context) error
	// Geometry reports the backend's DiskInfo for publication via the KV
	// store.
	Geometry(ctx context.Context) (blkif.DiskInfo, error)
	// Close releases the backend's resources.
	Close(ctx context.Context) error
}

// BackendGenFn makes a Backend from a DeviceConfig's driver parameters.
type BackendGenFn func(ctx context.Context, dc *DeviceConfig) (Backend, error)

// BackendMap is a map between driver names and the generator function for
// them, mirroring the teacher's BackendMap/RegisterBackend pattern.
var BackendMap = make(map[string]BackendGenFn)

// RegisterBackend registers a backend driver generator under name. Drivers
// call this from an init() function in the same style as the teacher's
// backend/file package.
func RegisterBackend(name string, generator BackendGenFn) {
	BackendMap[name] = generator
}

// GetBackendNames returns the names of all registered backend drivers.
func GetBackendNames() []string {
	names := make([]string, 0, len(BackendMap))
	for k := range BackendMap {
		names = append(names, k)
	}
	return names
}
