package session

import (
	"fmt"
	"log"

	"golang.org/x/net/context"

	"github.com/xenproject/goblkif/blkif"
	"github.com/xenproject/goblkif/store"
)

// Device is one fully wired exported device: its backend, the Dispatcher
// ready to process ring slots for it, and the KV path its state lives
// under.
type Device struct {
	Config     DeviceConfig
	Backend    Backend
	Dispatcher *Dispatcher
}

// Setup opens every device's backend, emits its Connection tuples and
// DiskInfo to tree, and builds a Dispatcher for it using the session's
// negotiated Protocol. It is the cmd-layer equivalent of the core's "data
// flow" in spec section 2: Connection out, then typed descriptors
// observed back.
func Setup(ctx context.Context, logger *log.Logger, cfg SessionConfig, tree *store.Tree, grants GrantMapper) ([]*Device, error) {
	proto, err := cfg.ProtocolValue()
	if err != nil {
		return nil, err
	}
	codec, err := CodecForProtocol(proto)
	if err != nil {
		return nil, err
	}

	devices := make([]*Device, 0, len(cfg.Devices))
	for _, dc := range cfg.Devices {
		if dc.Workers == 0 {
			dc.Workers = DefaultWorkers
		}
		logger.Printf("[INFO] setting up device %s (driver %s, %d worker(s))", dc.Name, dc.Driver, dc.Workers)

		gen, ok := BackendMap[dc.Driver]
		if !ok {
			return nil, fmt.Errorf("unknown backend driver: %s", dc.Driver)
		}
		backend, err := gen(ctx, &dc)
		if err != nil {
			return nil, fmt.Errorf("device %s: could not open backend: %w", dc.Name, err)
		}

		conn, err := dc.Connection()
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", dc.Name, err)
		}
		tree.Apply(conn.Emit())

		info, err := backend.Geometry(ctx)
		if err != nil {
			return nil, fmt.Errorf("device %s: could not read geometry: %w", dc.Name, err)
		}
		info.Media = conn.Media
		info.Mode = conn.Mode
		for _, a := range info.ToAssoc() {
			tree.Write(dc.BackendDomid, dc.BackendPath+"/"+a.Key, a.Value)
		}

		dispatcher := NewDispatcher(logger, codec, backend, grants)
		devices = append(devices, &Device{Config: dc, Backend: backend, Dispatcher: dispatcher})
		logger.Printf("[INFO] device %s ready, state=%s", dc.Name, blkif.Initialised)
	}
	return devices, nil
}

// Close closes every device's backend.
func Close(ctx context.Context, devices []*Device) {
	for _, d := range devices {
		if err := d.Backend.Close(ctx); err != nil {
			// best effort; nothing more to do with this error at shutdown
			_ = err
		}
	}
}
