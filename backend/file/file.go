// Package file implements a session.Backend for serving a device from a
// flat file, using asynchronous I/O for the segment read/write path.
package file

import (
	"fmt"
	"os"

	"github.com/traetox/goaio"
	"golang.org/x/net/context"

	"github.com/xenproject/goblkif/blkif"
	"github.com/xenproject/goblkif/session"
)

// aioQueueDepth sizes the underlying AIO context's queue; a modest depth
// covers one in-flight request's worth of segments. aioChunkSize records the
// largest blkif segment (8 sectors, 4KiB) and is not passed to the AIO
// context.
const (
	aioChunkSize  = 4096
	aioQueueDepth = 64
)

// Backend implements session.Backend over a single open file.
type Backend struct {
	file *os.File
	aio  *goaio.AIO
	size uint64
}

// ReadSegment implements session.Backend.
func (b *Backend) ReadSegment(ctx context.Context, seg blkif.Segment, sector uint64, buf []byte) error {
	offset := int64(sector) * session.SectorBytes
	req, err := b.aio.ReadAt(buf, offset)
	if err != nil {
		return fmt.Errorf("file backend: read at %d: %w", offset, err)
	}
	n, err := b.aio.WaitFor(req)
	if err != nil {
		return fmt.Errorf("file backend: read at %d: %w", offset, err)
	}
	if n != len(buf) {
		return fmt.Errorf("file backend: short read at %d: %d != %d", offset, n, len(buf))
	}
	return nil
}

// WriteSegment implements session.Backend.
func (b *Backend) WriteSegment(ctx context.Context, seg blkif.Segment, sector uint64, buf []byte) error {
	offset := int64(sector) * session.SectorBytes
	req, err := b.aio.WriteAt(buf, offset)
	if err != nil {
		return fmt.Errorf("file backend: write at %d: %w", offset, err)
	}
	n, err := b.aio.WaitFor(req)
	if err != nil {
		return fmt.Errorf("file backend: write at %d: %w", offset, err)
	}
	if n != len(buf) {
		return fmt.Errorf("file backend: short write at %d: %d != %d", offset, n, len(buf))
	}
	return nil
}

// Flush implements session.Backend.
func (b *Backend) Flush(ctx context.Context) error {
	return b.file.Sync()
}

// Close implements session.Backend.
func (b *Backend) Close(ctx context.Context) error {
	b.aio.Close()
	return b.file.Close()
}

// Geometry implements session.Backend, reporting a fixed 512-byte sector
// size for the whole file.
func (b *Backend) Geometry(ctx context.Context) (blkif.DiskInfo, error) {
	return blkif.DiskInfo{
		SectorSize: session.SectorBytes,
		Sectors:    int64(b.size / session.SectorBytes),
	}, nil
}

// New opens dc's "path" driver parameter as a flat file backend. The "sync"
// parameter, if true, opens the file with O_SYNC so every write lands on
// stable storage before WriteSegment returns.
func New(ctx context.Context, dc *session.DeviceConfig) (session.Backend, error) {
	perms := os.O_RDWR
	if dc.ReadOnly {
		perms = os.O_RDONLY
	}
	sync, err := session.IsTrue(dc.DriverParameters["sync"])
	if err != nil {
		return nil, err
	}
	if sync {
		perms |= os.O_SYNC
	}
	f, err := os.OpenFile(dc.DriverParameters["path"], perms, 0666)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	aio, err := goaio.New(f, goaio.AIOExtConfig{QueueDepth: aioQueueDepth})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("file backend: could not start AIO context: %w", err)
	}
	return &Backend{
		file: f,
		aio:  aio,
		size: uint64(stat.Size()),
	}, nil
}

// Register our backend.
func init() {
	session.RegisterBackend("file", New)
}
