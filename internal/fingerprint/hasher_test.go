package fingerprint

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
	"testing/iotest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// cardLike renders a smooth synthetic photo: a slow diagonal wave plus two
// soft blobs, so neighbouring cells rarely have near-equal brightness.
func cardLike(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 128 + 90*math.Sin(2*math.Pi*(float64(x)+0.5*float64(y))/600)
			v += blob(x, y, w/3, h/4, 60, 40)
			v -= blob(x, y, 2*w/3, 3*h/4, 70, 45)
			c := uint8(math.Max(0, math.Min(255, v)))
			img.Set(x, y, color.RGBA{R: c, G: c / 2, B: 255 - c, A: 255})
		}
	}
	return img
}

func blob(x, y, cx, cy int, r, amp float64) float64 {
	dx, dy := float64(x-cx), float64(y-cy)
	return amp * math.Exp(-(dx*dx+dy*dy)/(2*r*r))
}

func TestHash_Deterministic(t *testing.T) {
	img := cardLike(320, 448)

	a, err := Hash(img)
	require.NoError(t, err)
	b, err := Hash(img)
	require.NoError(t, err)

	require.Equal(t, a, b)
	require.Len(t, a.Bytes(), ByteLen)
	require.Equal(t, 192, Bits)
	require.NotEqual(t, Fingerprint{}, a)
}

func TestHash_ShiftedCropIsClose(t *testing.T) {
	src := cardLike(420, 580)

	base, err := Hash(src.SubImage(image.Rect(10, 10, 390, 550)))
	require.NoError(t, err)
	shifted, err := Hash(src.SubImage(image.Rect(12, 12, 392, 552)))
	require.NoError(t, err)
	jitter, err := Hash(src.SubImage(image.Rect(11, 9, 391, 549)))
	require.NoError(t, err)

	require.Less(t, Distance(base, shifted), Bits*15/100)
	require.Less(t, Distance(base, jitter), Bits*15/100)
}

func TestHash_DifferentImagesDiffer(t *testing.T) {
	a, err := Hash(cardLike(320, 448))
	require.NoError(t, err)

	negative := cardLike(320, 448)
	for i := 0; i < len(negative.Pix); i += 4 {
		negative.Pix[i] = 255 - negative.Pix[i]
		negative.Pix[i+1] = 255 - negative.Pix[i+1]
		negative.Pix[i+2] = 255 - negative.Pix[i+2]
	}
	n, err := Hash(negative)
	require.NoError(t, err)

	require.Greater(t, Distance(a, n), 100)
}

func TestHashBytes_MatchesDecodedImage(t *testing.T) {
	img := cardLike(200, 280)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	fromBytes, err := HashBytes(buf.Bytes())
	require.NoError(t, err)
	direct, err := Hash(img)
	require.NoError(t, err)

	require.Equal(t, direct, fromBytes)
}

func TestHash_Unreadable(t *testing.T) {
	_, err := HashBytes([]byte("definitely not an image"))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnreadableImage))

	_, err = Hash(image.NewRGBA(image.Rect(0, 0, 0, 10)))
	require.True(t, errors.Is(err, ErrUnreadableImage))

	_, err = Hash(nil)
	require.True(t, errors.Is(err, ErrUnreadableImage))
}

// pngHeader returns a PNG signature plus an IHDR chunk declaring w x h
// 8-bit grayscale. There is no pixel data behind it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth

	var b bytes.Buffer
	b.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&b, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	b.Write(chunk)
	_ = binary.Write(&b, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return b.Bytes()
}

func TestHashBytes_RejectsOversizedDimensions(t *testing.T) {
	_, err := HashBytes(pngHeader(16000, 16000))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnreadableImage))
	require.Contains(t, err.Error(), "exceeds")
}

func TestHashReader_ReplaysHeaderBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, cardLike(120, 168)))

	want, err := Hash(cardLike(120, 168))
	require.NoError(t, err)

	got, err := HashReader(iotest.OneByteReader(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestHash_TinyImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)

	fp, err := Hash(img)
	require.NoError(t, err)
	require.Equal(t, Fingerprint{}, fp)
}

func TestRegion_Rect(t *testing.T) {
	b := image.Rect(0, 0, 100, 200)

	require.Equal(t, image.Rect(10, 0, 90, 80), Regions[0].Rect(b))
	require.Equal(t, image.Rect(10, 60, 90, 140), Regions[1].Rect(b))
	require.Equal(t, image.Rect(10, 120, 90, 200), Regions[2].Rect(b))

	// offset bounds, as produced by SubImage
	off := image.Rect(50, 50, 150, 250)
	require.Equal(t, image.Rect(60, 50, 140, 130), Regions[0].Rect(off))
}
