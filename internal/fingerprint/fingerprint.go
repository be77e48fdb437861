// Package fingerprint computes and compares region-voted perceptual hashes of
// trading card photos.
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"math/bits"

	"github.com/pkg/errors"
)

const (
	RegionCount = 3
	RegionBits  = 64
	Bits        = RegionCount * RegionBits
	ByteLen     = Bits / 8
)

var (
	ErrUnreadableImage = errors.New("unreadable image")
	ErrBadFingerprint  = errors.New("malformed fingerprint")
)

// Fingerprint holds one 64-bit difference hash per region, in region order
// top, mid, bot. Inside a region bit y*8+x is stored most significant first.
type Fingerprint [RegionCount]uint64

func (f Fingerprint) Bytes() []byte {
	out := make([]byte, ByteLen)
	for i, w := range f {
		binary.BigEndian.PutUint64(out[i*8:], w)
	}
	return out
}

func FromBytes(b []byte) (Fingerprint, error) {
	var f Fingerprint
	if len(b) != ByteLen {
		return f, errors.Wrapf(ErrBadFingerprint, "want %d bytes, got %d", ByteLen, len(b))
	}
	for i := range f {
		f[i] = binary.BigEndian.Uint64(b[i*8:])
	}
	return f, nil
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f.Bytes())
}

func Parse(s string) (Fingerprint, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Fingerprint{}, errors.Wrap(ErrBadFingerprint, err.Error())
	}
	return FromBytes(b)
}

func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Fingerprint) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*f = p
	return nil
}

// Bit returns bit i of the 192-bit sequence.
func (f Fingerprint) Bit(i int) bool {
	if i < 0 || i >= Bits {
		return false
	}
	w := f[i/RegionBits]
	return w&(1<<uint(RegionBits-1-i%RegionBits)) != 0
}

// Distance is the Hamming distance between a and b.
func Distance(a, b Fingerprint) int {
	d := 0
	for i := range a {
		d += bits.OnesCount64(a[i] ^ b[i])
	}
	return d
}

// RegionDistances reports the Hamming distance of each region separately.
func RegionDistances(a, b Fingerprint) [RegionCount]int {
	var out [RegionCount]int
	for i := range a {
		out[i] = bits.OnesCount64(a[i] ^ b[i])
	}
	return out
}
