package wire

import (
	"github.com/acoustrace/acoustrace/oerror"
	"github.com/acoustrace/acoustrace/raytrace"
)

// EncodeRequests encodes a request batch together with the source list it is traced against.
func EncodeRequests(sources []raytrace.Source, requests []raytrace.Request) ([]byte, error) {
	if len(sources) > raytrace.MaxSources {
		return nil, oerror.Configuration("%d sources exceed the limit of %d", len(sources), raytrace.MaxSources)
	}
	if len(requests) > maxCount {
		return nil, oerror.New("%d requests exceed the limit of %d per batch", len(requests), maxCount)
	}

	w := &writer{buf: make([]byte, RequestBatchSize(len(sources), len(requests)))}
	w.u16(uint16(len(sources)))
	for _, src := range sources {
		if src.Index == raytrace.NoSource {
			return nil, oerror.Configuration("source index %d collides with the absent sentinel", src.Index)
		}
		w.vec3(src.Position)
		w.u16(src.Index)
	}

	w.u16(uint16(len(requests)))
	for _, req := range requests {
		w.vec3(req.Origin)
		w.vec3(req.Direction)
		w.u16(req.Correlation)
	}
	return w.buf, nil
}

// EncodeResults encodes a batch of results.
func EncodeResults(results []raytrace.Result) ([]byte, error) {
	if len(results) > maxCount {
		return nil, oerror.New("%d results exceed the limit of %d per batch", len(results), maxCount)
	}

	size := u16Size
	for i, res := range results {
		if len(res.Path) > maxPathLength {
			return nil, oerror.New("result %d has %d path points, at most %d fit", i, len(res.Path), maxPathLength)
		}
		if res.TotalBounces < 0 || res.TotalBounces > maxPathLength {
			return nil, oerror.New("result %d has %d bounces, expected 0-%d", i, res.TotalBounces, maxPathLength)
		}
		size += resultFixedSize + vec3Size*len(res.Path)
	}

	w := &writer{buf: make([]byte, size)}
	w.u16(uint16(len(results)))
	for _, res := range results {
		w.u8(uint8(len(res.Path)))
		for _, p := range res.Path {
			w.vec3(p)
		}
		w.u8(uint8(res.TotalBounces))
		w.f64(res.DotProduct)
		if res.Occluded {
			w.u8(1)
		} else {
			w.u8(0)
		}
		w.u16(res.SelectedSource)
		w.u16(res.Correlation)
		w.f64(res.Elapsed.Seconds())
	}
	return w.buf, nil
}
