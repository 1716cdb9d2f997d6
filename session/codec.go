package session

import (
	"fmt"

	"github.com/xenproject/goblkif/blkif"
)

// nativeIs64Bit is a compile-time constant: true when the host's native int
// is 64 bits wide.
const nativeIs64Bit = ^uint(0)>>63 == 1

// CodecForProtocol selects the ring marshaller for a negotiated Protocol.
// Native resolves to whichever ABI matches the host running this process;
// X86_64/X86_32 are explicit regardless of host width, since spec 6.2
// requires supporting either ABI no matter the local word size.
func CodecForProtocol(p blkif.Protocol) (blkif.RequestCodec, error) {
	switch p {
	case blkif.X86_64:
		return blkif.Codec64{}, nil
	case blkif.X86_32:
		return blkif.Codec32{}, nil
	case blkif.Native:
		if nativeIs64Bit {
			return blkif.Codec64{}, nil
		}
		return blkif.Codec32{}, nil
	default:
		return nil, fmt.Errorf("session: unknown protocol %d", p)
	}
}
