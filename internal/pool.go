package internal

import "sync"

// SlicePool hands out reusable scratch slices. Slices returned by Get have zero length and at
// least the requested capacity.
type SlicePool[T any] struct {
	p sync.Pool
}

func NewSlicePool[T any](initialCap int) *SlicePool[T] {
	sp := &SlicePool[T]{}
	sp.p.New = func() interface{} {
		s := make([]T, 0, initialCap)
		return &s
	}
	return sp
}

func (sp *SlicePool[T]) Get(capacity int) *[]T {
	s := sp.p.Get().(*[]T)
	if cap(*s) < capacity {
		*s = make([]T, 0, capacity)
	}
	*s = (*s)[:0]
	return s
}

func (sp *SlicePool[T]) Put(s *[]T) {
	if s == nil {
		return
	}
	var zero T
	for i := range *s {
		(*s)[i] = zero
	}
	*s = (*s)[:0]
	sp.p.Put(s)
}
