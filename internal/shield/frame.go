// frame.go is the aether packet codec.  Every frame is little-endian:
//
//	[magic:u32][version:u16][type:u16][src:u16][dst:u16]
//	[seq:u32][offset:u64][generation:u64][sender_time:u64]
//	[vclock_len:u16][vclock entries × 12]
//	[payload_len:u32][payload]
//	[hmac:32]
//
// The MAC covers every byte before it.  Decode is split so the
// validation pipeline can check structure before paying for crypto.
//
// © 2025 seraph authors. MIT License.

package shield

import (
	"encoding/binary"

	"github.com/seraphos/substrate/internal/vclock"
)

// FrameMagic spells "SRPH".
const FrameMagic uint32 = 0x53525048

// FrameVersion is the current protocol revision.
const FrameVersion uint16 = 1

// FrameType enumerates the protocol messages.
type FrameType uint16

const (
	FramePageReq FrameType = iota + 1
	FramePageResp
	FrameWriteReq
	FrameRevoke
	FrameInvalidate
	FrameGenQuery
	FrameGenResp
)

func (t FrameType) valid() bool {
	return t >= FramePageReq && t <= FrameGenResp
}

func (t FrameType) String() string {
	switch t {
	case FramePageReq:
		return "page_req"
	case FramePageResp:
		return "page_resp"
	case FrameWriteReq:
		return "write_req"
	case FrameRevoke:
		return "revoke"
	case FrameInvalidate:
		return "invalidate"
	case FrameGenQuery:
		return "gen_query"
	case FrameGenResp:
		return "gen_resp"
	default:
		return "type?"
	}
}

// Op maps the frame type onto the permission bit its sender needs.
// Responses carry no operation of their own.
func (t FrameType) Op() Op {
	switch t {
	case FramePageReq:
		return OpRead
	case FrameWriteReq:
		return OpWrite
	case FrameInvalidate:
		return OpInvalidate
	case FrameRevoke:
		return OpRevoke
	case FrameGenQuery:
		return OpGenQuery
	default:
		return 0
	}
}

const (
	frameFixedLen = 4 + 2 + 2 + 2 + 2 + 4 + 8 + 8 + 8 // through sender_time
	frameMinLen   = frameFixedLen + 2 + 4 + Size
)

// Frame is a decoded packet.
type Frame struct {
	Type       FrameType
	SrcNode    uint16
	DstNode    uint16
	Seq        uint32
	Offset     uint64
	Generation uint64
	SenderTime uint64
	VClock     *vclock.VClock
	Payload    []byte
}

// Encode serialises the frame and appends the HMAC computed under key.
func (f *Frame) Encode(key [KeySize]byte) []byte {
	size := frameFixedLen
	if f.VClock != nil {
		size += f.VClock.WireSize()
	} else {
		size += 2
	}
	size += 4 + len(f.Payload) + Size
	buf := make([]byte, 0, size)

	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], FrameMagic)
	buf = append(buf, scratch[:4]...)
	binary.LittleEndian.PutUint16(scratch[:2], FrameVersion)
	buf = append(buf, scratch[:2]...)
	binary.LittleEndian.PutUint16(scratch[:2], uint16(f.Type))
	buf = append(buf, scratch[:2]...)
	binary.LittleEndian.PutUint16(scratch[:2], f.SrcNode)
	buf = append(buf, scratch[:2]...)
	binary.LittleEndian.PutUint16(scratch[:2], f.DstNode)
	buf = append(buf, scratch[:2]...)
	binary.LittleEndian.PutUint32(scratch[:4], f.Seq)
	buf = append(buf, scratch[:4]...)
	binary.LittleEndian.PutUint64(scratch[:], f.Offset)
	buf = append(buf, scratch[:]...)
	binary.LittleEndian.PutUint64(scratch[:], f.Generation)
	buf = append(buf, scratch[:]...)
	binary.LittleEndian.PutUint64(scratch[:], f.SenderTime)
	buf = append(buf, scratch[:]...)

	if f.VClock != nil {
		buf = f.VClock.AppendWire(buf)
	} else {
		buf = append(buf, 0, 0)
	}

	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(f.Payload)))
	buf = append(buf, scratch[:4]...)
	buf = append(buf, f.Payload...)

	mac := HMAC(key[:], buf)
	return append(buf, mac[:]...)
}

// DecodeStructure parses everything except the MAC and rejects
// malformed frames: short buffers, a bad magic or version, an unknown
// type, or lengths that disagree with the buffer.
func DecodeStructure(raw []byte) (*Frame, bool) {
	if len(raw) < frameMinLen {
		return nil, false
	}
	if binary.LittleEndian.Uint32(raw[0:4]) != FrameMagic {
		return nil, false
	}
	if binary.LittleEndian.Uint16(raw[4:6]) != FrameVersion {
		return nil, false
	}
	f := &Frame{
		Type:       FrameType(binary.LittleEndian.Uint16(raw[6:8])),
		SrcNode:    binary.LittleEndian.Uint16(raw[8:10]),
		DstNode:    binary.LittleEndian.Uint16(raw[10:12]),
		Seq:        binary.LittleEndian.Uint32(raw[12:16]),
		Offset:     binary.LittleEndian.Uint64(raw[16:24]),
		Generation: binary.LittleEndian.Uint64(raw[24:32]),
		SenderTime: binary.LittleEndian.Uint64(raw[32:40]),
	}
	if !f.Type.valid() {
		return nil, false
	}

	vc, n, ok := vclock.ParseWire(f.SrcNode, raw[frameFixedLen:len(raw)-Size])
	if !ok {
		return nil, false
	}
	f.VClock = vc

	rest := raw[frameFixedLen+n : len(raw)-Size]
	if len(rest) < 4 {
		return nil, false
	}
	payloadLen := int(binary.LittleEndian.Uint32(rest[0:4]))
	if len(rest)-4 != payloadLen {
		return nil, false
	}
	f.Payload = rest[4:]
	return f, true
}

// VerifyFrameMAC checks the trailing MAC under key in constant time.
func VerifyFrameMAC(raw []byte, key [KeySize]byte) bool {
	if len(raw) < Size {
		return false
	}
	body := raw[:len(raw)-Size]
	return VerifyHMAC(key[:], body, raw[len(raw)-Size:])
}
