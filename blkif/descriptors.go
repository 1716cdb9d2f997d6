package blkif

import (
	"fmt"
	"strconv"
)

// FeatureIndirect is the "feature-max-indirect-segments" negotiation: zero
// means the feature was never advertised.
type FeatureIndirect struct {
	MaxIndirectSegments int
}

const keyFeatureMaxIndirectSegments = "feature-max-indirect-segments"

// ToAssoc encodes f. Per spec 4.4 the key is omitted entirely when the
// value is the zero sentinel, so a feature-less session's KV node carries
// no trace of this attribute.
func (f FeatureIndirect) ToAssoc() []Attr {
	if f.MaxIndirectSegments == 0 {
		return nil
	}
	return []Attr{{Key: keyFeatureMaxIndirectSegments, Value: strconv.Itoa(f.MaxIndirectSegments)}}
}

// FeatureIndirectFromAssoc decodes m; a missing key decodes as the zero
// sentinel rather than an error, the mirror image of ToAssoc's omission.
func FeatureIndirectFromAssoc(m map[string]string) (FeatureIndirect, error) {
	v, ok := m[keyFeatureMaxIndirectSegments]
	if !ok {
		return FeatureIndirect{}, nil
	}
	n, err := parseInt(v)
	if err != nil {
		return FeatureIndirect{}, err
	}
	return FeatureIndirect{MaxIndirectSegments: n}, nil
}

// DiskInfo describes the geometry and access mode of a backend-exported
// disk, as published under the backend's KV node.
type DiskInfo struct {
	SectorSize int
	Sectors    int64
	Media      Media
	Mode       Mode
}

// ToAssoc encodes the sector-size, sectors and info attributes. info packs
// Media into bit 0 and Mode into bit 2, per spec 3's DiskInfo invariant.
func (d DiskInfo) ToAssoc() []Attr {
	info := d.Media.ToInt() | d.Mode.ToInt()
	return []Attr{
		{Key: "sector-size", Value: strconv.Itoa(d.SectorSize)},
		{Key: "sectors", Value: strconv.FormatInt(d.Sectors, 10)},
		{Key: "info", Value: strconv.Itoa(info)},
	}
}

// DiskInfoFromAssoc requires all three attributes; the first missing or
// unparsable one short-circuits the decode.
func DiskInfoFromAssoc(m map[string]string) (DiskInfo, error) {
	sectorSize, err := requireInt(m, "sector-size")
	if err != nil {
		return DiskInfo{}, err
	}
	sectors, err := requireInt64(m, "sectors")
	if err != nil {
		return DiskInfo{}, err
	}
	infoVal, err := requireInt(m, "info")
	if err != nil {
		return DiskInfo{}, err
	}
	return DiskInfo{
		SectorSize: sectorSize,
		Sectors:    sectors,
		Media:      MediaFromInt(infoVal),
		Mode:       ModeFromInt(infoVal),
	}, nil
}

// RingInfo describes where the shared ring lives and which ABI governs it.
type RingInfo struct {
	Ref          int32
	EventChannel int
	Protocol     Protocol
}

func (r RingInfo) ToAssoc() []Attr {
	return []Attr{
		{Key: "ring-ref", Value: strconv.Itoa(int(r.Ref))},
		{Key: "event-channel", Value: strconv.Itoa(r.EventChannel)},
		{Key: "protocol", Value: r.Protocol.String()},
	}
}

// RingInfoFromAssoc requires all three attributes; an unrecognised protocol
// string is an error (unlike Op/Rsp tags, Protocol has no "absent" form).
func RingInfoFromAssoc(m map[string]string) (RingInfo, error) {
	refVal, err := require(m, "ring-ref")
	if err != nil {
		return RingInfo{}, err
	}
	ref, err := parseInt32(refVal)
	if err != nil {
		return RingInfo{}, err
	}
	eventChannel, err := requireInt(m, "event-channel")
	if err != nil {
		return RingInfo{}, err
	}
	protoVal, err := require(m, "protocol")
	if err != nil {
		return RingInfo{}, err
	}
	proto, ok := ProtocolFromString(protoVal)
	if !ok {
		return RingInfo{}, fmt.Errorf("unknown protocol: %s", protoVal)
	}
	return RingInfo{Ref: ref, EventChannel: eventChannel, Protocol: proto}, nil
}
