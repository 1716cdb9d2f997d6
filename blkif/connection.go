package blkif

import "strconv"

// Connection describes one frontend/backend pairing at session setup. It is
// a value type: emitting it produces the KV tuples a caller must write to
// wire a frontend to a backend (see Tuple and Emit below); the core never
// holds a live reference to the store that ends up storing them.
type Connection struct {
	VirtualDevice string
	BackendPath   string
	FrontendPath  string
	BackendDomid  int
	FrontendDomid int
	Mode          Mode
	Media         Media
	Removable     bool
}

// Tuple is one (domid, path, value) triple the caller must write into the
// KV store. Path is already the full node path (parent path plus attribute
// name where applicable); Emit never asks the caller to concatenate.
type Tuple struct {
	Domid int
	Path  string
	Value string
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Emit flattens c into the tuples described in spec section 4.3: the two
// empty parent nodes, then the backend's child attributes, then the
// frontend's. The order here is fixed for reproducibility but is not
// meaningful to a receiver, which is expected to observe the completed set.
func (c Connection) Emit() []Tuple {
	tuples := []Tuple{
		{Domid: c.BackendDomid, Path: c.BackendPath, Value: ""},
		{Domid: c.FrontendDomid, Path: c.FrontendPath, Value: ""},
	}

	backendAttr := func(key, value string) {
		tuples = append(tuples, Tuple{Domid: c.BackendDomid, Path: c.BackendPath + "/" + key, Value: value})
	}
	backendAttr("frontend", c.FrontendPath)
	backendAttr("frontend-id", strconv.Itoa(c.FrontendDomid))
	backendAttr("online", "1")
	backendAttr("removable", boolString(c.Removable))
	backendAttr("state", Initialising.String())
	backendAttr("mode", c.Mode.String())

	frontendAttr := func(key, value string) {
		tuples = append(tuples, Tuple{Domid: c.FrontendDomid, Path: c.FrontendPath + "/" + key, Value: value})
	}
	frontendAttr("backend", c.BackendPath)
	frontendAttr("backend-id", strconv.Itoa(c.BackendDomid))
	frontendAttr("state", Initialising.String())
	frontendAttr("virtual-device", c.VirtualDevice)
	frontendAttr("device-type", c.Media.String())

	return tuples
}
