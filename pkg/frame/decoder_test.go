package frame

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/wifibridge/pkg/ring"
)

type decodeRecorder struct {
	frames []Frame
}

func (r *decodeRecorder) HandleFrame(f *Frame) {
	r.frames = append(r.frames, *f)
}

func (r *decodeRecorder) payloads() [][]byte {
	out := make([][]byte, len(r.frames))
	for n, f := range r.frames {
		out[n] = f.Payload
	}
	return out
}

type decodeTestBuilder struct {
	in     []byte
	expect [][]byte
}

func decodeTest() *decodeTestBuilder {
	return &decodeTestBuilder{}
}

func (b *decodeTestBuilder) raw(in ...byte) *decodeTestBuilder {
	b.in = append(b.in, in...)
	return b
}

func (b *decodeTestBuilder) frame(payload ...byte) *decodeTestBuilder {
	b.in = append(b.in, MustEncode(payload...)...)
	b.expect = append(b.expect, payload)
	return b
}

func (b *decodeTestBuilder) corrupt(payload ...byte) *decodeTestBuilder {
	enc := MustEncode(payload...)
	enc[len(enc)-1] ^= 0xff
	b.in = append(b.in, enc...)
	return b
}

func TestEncode(t *testing.T) {
	out := MustEncode(0xF0, 0x0D)
	expect := []byte{'U', 'N', 'E', 'R', 0x02, ':', 0xF0, 0x0D}
	expect = append(expect, Checksum(expect))
	require.Equal(t, expect, out)
	require.Equal(t, byte(0), Checksum(out))

	_, err := Encode(make([]byte, MaxPayload+1))
	require.Equal(t, ErrPayloadTooLong, err)
}

func TestDecoder(t *testing.T) {
	testCases := []struct {
		name string
		test *decodeTestBuilder
	}{
		{
			name: "single frame",
			test: decodeTest().frame(0xF0, 0x0D),
		},
		{
			name: "back to back",
			test: decodeTest().frame(0xF0).frame(0x0D, 1, 2, 3).frame(0xEE),
		},
		{
			name: "leading noise",
			test: decodeTest().raw(0, 1, 2, 'x', 'U', 'N').frame(0xF0),
		},
		{
			name: "overlapping magic",
			test: decodeTest().raw('U', 'U', 'N', 'U').frame(0xF0, 0x0D),
		},
		{
			name: "token mismatch resyncs",
			test: decodeTest().raw('U', 'N', 'E', 'R', 2, 'U').raw('N', 'E', 'R', 1, ':', 0x0D, 0).frame(0xF0),
		},
		{
			name: "corrupted checksum",
			test: decodeTest().corrupt(0xF0, 0x0D),
		},
		{
			name: "corrupted then valid",
			test: decodeTest().corrupt(0xF0, 0x0D).frame(0x0D),
		},
		{
			name: "payload contains magic",
			test: decodeTest().frame('U', 'N', 'E', 'R', 0, ':').frame(0xF0),
		},
		{
			name: "max payload",
			test: decodeTest().frame(make([]byte, MaxPayload)...),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for _, chunk := range []int{1, 3, len(tc.test.in)} {
				var rec decodeRecorder
				r := ring.New(512)
				d := NewDecoder(&rec)
				for pos := 0; pos < len(tc.test.in); pos += chunk {
					end := pos + chunk
					if end > len(tc.test.in) {
						end = len(tc.test.in)
					}
					r.Write(tc.test.in[pos:end])
					d.Decode(r)
				}
				expect := tc.test.expect
				if expect == nil {
					expect = [][]byte{}
				}
				require.Equal(t, expect, rec.payloads(), "chunk %d", chunk)
				require.Equal(t, AwaitMagic1, d.State())
			}
		})
	}
}

func TestDecoderRejectedFrameBytesResync(t *testing.T) {
	var rec decodeRecorder
	r := ring.New(64)
	d := NewDecoder(&rec)
	// checksum byte is 'U' instead of the expected value and starts the next frame
	bad := []byte{'U', 'N', 'E', 'R', 1, ':', 0x0D}
	require.NotEqual(t, byte('U'), Checksum(bad))
	r.Write(bad)
	r.Write(MustEncode(0xF0))
	require.Equal(t, 1, d.Decode(r))
	require.Equal(t, uint64(1), d.Dropped)
	require.Len(t, rec.frames, 1)
	require.Equal(t, byte(0xF0), rec.frames[0].Command())
}

func TestDecoderKeepsStateAcrossCalls(t *testing.T) {
	var rec decodeRecorder
	r := ring.New(64)
	d := NewDecoder(&rec)
	enc := MustEncode(0xF0, 0x0D, 0x01)
	r.Write(enc[:4])
	require.Equal(t, 0, d.Decode(r))
	require.Equal(t, ReadLength, d.State())
	r.Write(enc[4:7])
	require.Equal(t, 0, d.Decode(r))
	require.Equal(t, ReadPayload, d.State())
	require.Equal(t, 2, d.Remaining())
	r.Write(enc[7:])
	require.Equal(t, 1, d.Decode(r))
	require.Equal(t, AwaitMagic1, d.State())
}

// A zero length frame is accepted when the byte after the token equals the
// XOR of the header alone.
func TestDecoderZeroLengthChecksumsHeaderOnly(t *testing.T) {
	var rec decodeRecorder
	r := ring.New(64)
	d := NewDecoder(&rec)
	hdr := []byte{'U', 'N', 'E', 'R', 0, ':'}
	r.Write(hdr)
	r.Push(Checksum(hdr))
	require.Equal(t, 1, d.Decode(r))
	require.Len(t, rec.frames, 1)
	require.Equal(t, byte(0), rec.frames[0].Length)
	require.Empty(t, rec.frames[0].Payload)
	require.Equal(t, byte(0), rec.frames[0].Command())
}

func TestDecoderFrameStartWrapsStore(t *testing.T) {
	var rec decodeRecorder
	r := ring.New(16)
	d := NewDecoder(&rec)
	r.Write(make([]byte, 12))
	d.Decode(r)
	r.Write(MustEncode(1, 2, 3, 4, 5, 6))
	require.Equal(t, 1, d.Decode(r))
	f := rec.frames[0]
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, f.Payload)
	require.Equal(t, (12+HeaderSize)%16, f.Start)
	store := make([]byte, 6)
	f.Store.CopyAt(store, f.Start)
	require.Equal(t, f.Payload, store)
}

func TestRoundTripGetAlive(t *testing.T) {
	var rec decodeRecorder
	r := ring.New(64)
	require.NoError(t, Write(r, make([]byte, 50), []byte{0xF0, 0x0D}))
	NewDecoder(&rec).Decode(r)
	require.Len(t, rec.frames, 1)
	require.Equal(t, byte(2), rec.frames[0].Length)
	require.Equal(t, []byte{0xF0, 0x0D}, rec.frames[0].Payload)
}
