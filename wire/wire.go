// Package wire implements the fixed-layout binary format used to ship raytrace batches to
// workers and to ship their results back. The layout is positional and little-endian; there
// are no type tags, so both ends must agree on field order.
package wire

import (
	"encoding/binary"
	"math"

	"github.com/acoustrace/acoustrace/oerror"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	u8Size   = 1
	u16Size  = 2
	f64Size  = 8
	vec3Size = f64Size * 3

	// SourceSize is the encoded size of one raytrace.Source.
	SourceSize = vec3Size + u16Size
	// RequestSize is the encoded size of one raytrace.Request.
	RequestSize = vec3Size*2 + u16Size
	// resultFixedSize is the encoded size of a raytrace.Result minus its path points.
	resultFixedSize = u8Size + u8Size + f64Size + u8Size + u16Size + u16Size + f64Size

	maxCount      = math.MaxUint16
	maxPathLength = math.MaxUint8
)

// RequestBatchSize returns the exact encoded length of a request batch.
func RequestBatchSize(sources, requests int) int {
	return u16Size + SourceSize*sources + u16Size + RequestSize*requests
}

type writer struct {
	buf []byte
	off int
}

func (w *writer) u8(v uint8) {
	w.buf[w.off] = v
	w.off += u8Size
}

func (w *writer) u16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[w.off:], v)
	w.off += u16Size
}

func (w *writer) f64(v float64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:], math.Float64bits(v))
	w.off += f64Size
}

func (w *writer) vec3(v mgl64.Vec3) {
	w.f64(v[0])
	w.f64(v[1])
	w.f64(v[2])
}

// reader reads fields sequentially. The first out-of-bounds read latches a framing error and
// every later read returns zero values.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) need(n int, what string) bool {
	if r.err != nil {
		return false
	}
	if len(r.buf)-r.off < n {
		r.err = oerror.Framing("%s needs %d bytes at offset %d, buffer holds %d", what, n, r.off, len(r.buf))
		return false
	}
	return true
}

func (r *reader) u8(what string) uint8 {
	if !r.need(u8Size, what) {
		return 0
	}
	v := r.buf[r.off]
	r.off += u8Size
	return v
}

func (r *reader) u16(what string) uint16 {
	if !r.need(u16Size, what) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += u16Size
	return v
}

func (r *reader) f64(what string) float64 {
	if !r.need(f64Size, what) {
		return 0
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(r.buf[r.off:]))
	r.off += f64Size
	return v
}

func (r *reader) vec3(what string) mgl64.Vec3 {
	return mgl64.Vec3{r.f64(what), r.f64(what), r.f64(what)}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}
