package wire

import (
	"bytes"
	"math"
	"time"

	"github.com/acoustrace/acoustrace/oerror"
	"github.com/acoustrace/acoustrace/raytrace"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/zeebo/xxh3"
)

// DecodeRequests decodes a buffer produced by EncodeRequests. The buffer length must match the
// length implied by its counts exactly.
func DecodeRequests(buf []byte) ([]raytrace.Source, []raytrace.Request, error) {
	r := &reader{buf: buf}
	sourceCount, err := sourceSection(r)
	if err != nil {
		return nil, nil, err
	}
	sources := decodeSources(r, sourceCount)
	requests, err := decodeRequests(r)
	if err != nil {
		return nil, nil, err
	}
	return sources, requests, nil
}

// sourceSection reads the source count and checks that the buffer can hold every source plus
// the request count that follows them.
func sourceSection(r *reader) (int, error) {
	count := int(r.u16("source count"))
	if r.err != nil {
		return 0, r.err
	}
	if need := SourceSize*count + u16Size; r.remaining() < need {
		return 0, oerror.Framing("%d sources need %d bytes, %d remain", count, need, r.remaining())
	}
	return count, nil
}

func decodeSources(r *reader, count int) []raytrace.Source {
	sources := make([]raytrace.Source, count)
	for i := range sources {
		sources[i].Position = r.vec3("source position")
		sources[i].Index = r.u16("source index")
	}
	return sources
}

func decodeRequests(r *reader) ([]raytrace.Request, error) {
	count := int(r.u16("request count"))
	if r.err != nil {
		return nil, r.err
	}
	if want := RequestSize * count; r.remaining() != want {
		return nil, oerror.Framing("%d requests need exactly %d bytes, %d remain", count, want, r.remaining())
	}

	requests := make([]raytrace.Request, count)
	for i := range requests {
		requests[i].Origin = r.vec3("request origin")
		requests[i].Direction = r.vec3("request direction")
		requests[i].Correlation = r.u16("request correlation")
	}
	return requests, r.err
}

// RequestDecoder decodes request batches and keeps the last decoded source list. When the next
// batch carries a byte-identical source section the list is reused instead of decoded again,
// which is the common case across the pipeline stages of one frame. A RequestDecoder is not
// safe for concurrent use; returned source slices must be treated as read-only.
type RequestDecoder struct {
	hash    uint64
	section []byte
	sources []raytrace.Source
	valid   bool
}

// Decode decodes buf like DecodeRequests.
func (d *RequestDecoder) Decode(buf []byte) ([]raytrace.Source, []raytrace.Request, error) {
	r := &reader{buf: buf}
	sourceCount, err := sourceSection(r)
	if err != nil {
		return nil, nil, err
	}

	end := u16Size + SourceSize*sourceCount
	h := xxh3.Hash(buf[:end])
	if !d.valid || d.hash != h || !bytes.Equal(d.section, buf[:end]) {
		d.sources = decodeSources(r, sourceCount)
		d.section = append(d.section[:0], buf[:end]...)
		d.hash, d.valid = h, true
	} else {
		r.off = end
	}

	requests, err := decodeRequests(r)
	if err != nil {
		return nil, nil, err
	}
	return d.sources, requests, nil
}

// DecodeResults decodes a buffer produced by EncodeResults. Truncated buffers and trailing
// bytes are framing errors.
func DecodeResults(buf []byte) ([]raytrace.Result, error) {
	r := &reader{buf: buf}
	count := int(r.u16("result count"))
	if r.err != nil {
		return nil, r.err
	}
	if minimum := count * resultFixedSize; r.remaining() < minimum {
		return nil, oerror.Framing("%d results need at least %d bytes, %d remain", count, minimum, r.remaining())
	}

	results := make([]raytrace.Result, count)
	for i := range results {
		res := &results[i]
		pathLength := int(r.u8("path length"))
		if !r.need(vec3Size*pathLength, "path points") {
			return nil, r.err
		}
		res.Path = make([]mgl64.Vec3, pathLength)
		for j := range res.Path {
			res.Path[j] = r.vec3("path point")
		}
		res.TotalBounces = int(r.u8("total bounces"))
		res.DotProduct = r.f64("dot product")
		res.Occluded = r.u8("occluded flag") == 1
		res.SelectedSource = r.u16("selected source")
		res.Correlation = r.u16("correlation")
		res.Elapsed = time.Duration(math.Round(r.f64("elapsed time") * float64(time.Second)))
		if r.err != nil {
			return nil, r.err
		}
	}
	if r.remaining() != 0 {
		return nil, oerror.Framing("%d trailing bytes after %d results", r.remaining(), count)
	}
	return results, nil
}
