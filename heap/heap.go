// Package heap implements the object heap and mark-sweep collector of
// spec.md §4.5, grounded on original_source/lib/hammer/vm/heap.cpp and
// collector.cpp: one intrusive object list, bump-style allocation (Go's
// own allocator stands in for the original's custom page allocator — see
// DESIGN.md), and a worklist mark phase followed by a list-scanning sweep.
package heap

import (
	"github.com/sirupsen/logrus"

	"github.com/dr8co/hammer/vmvalue"
)

// Roots is anything the collector must trace from: the handle stack,
// global slots, VM singletons, and interpreter state (spec.md §4.5). The
// caller (package hammer's Context) implements this by walking whatever
// it owns.
type Roots interface {
	WalkRoots(fn func(vmvalue.Value))
}

// Heap owns every live heap object and runs collection cycles.
type Heap struct {
	objects   []vmvalue.Object // the intrusive object list, kept as a slice for simplicity
	live      uintptr
	threshold uintptr
	log       *logrus.Logger

	collections int
}

const initialThreshold = 1 << 20 // 1MiB of estimated live-object size

// New creates an empty Heap. log may be nil, in which case a default
// logrus.New() logger (writing to stderr) is used.
func New(log *logrus.Logger) *Heap {
	if log == nil {
		log = logrus.New()
	}
	return &Heap{threshold: initialThreshold, log: log}
}

// Allocate registers obj on the heap's object list and accounts its size
// toward the collection threshold. Unlike the original's bump allocator,
// Go's own allocator performs the actual memory allocation; Allocate's
// job is solely to make obj collectible (spec.md §4.5's allocation
// contract, minus page management Go's GC already subsumes).
func (h *Heap) Allocate(obj vmvalue.Object) vmvalue.Value {
	h.objects = append(h.objects, obj)
	h.live += vmvalue.ObjectSize(obj)
	return vmvalue.FromObject(obj)
}

// ShouldCollect reports whether the live-set estimate has crossed the
// current threshold, per spec.md §4.5's "may trigger a GC if the live set
// has grown past a dynamic threshold."
func (h *Heap) ShouldCollect() bool { return h.live > h.threshold }

// Collect runs one full mark-sweep cycle against roots, mirroring
// Collector::collect's two-phase structure in collector.cpp.
func (h *Heap) Collect(roots Roots) {
	start := len(h.objects)

	var worklist []vmvalue.Object
	mark := func(v vmvalue.Value) {
		if !v.IsHeapPtr() {
			return
		}
		obj := v.Object()
		if obj == nil || obj.Header().Marked {
			return
		}
		obj.Header().Marked = true
		worklist = append(worklist, obj)
	}

	roots.WalkRoots(mark)
	for len(worklist) > 0 {
		obj := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		obj.Walk(mark)
	}

	survivors := h.objects[:0]
	var survivingSize uintptr
	freed := 0
	for _, obj := range h.objects {
		hdr := obj.Header()
		if !hdr.Marked {
			if n, ok := obj.(*vmvalue.NativeObject); ok && n.Finalizer != nil {
				n.Finalizer(n.Payload)
			}
			freed++
			continue
		}
		hdr.Marked = false
		survivingSize += vmvalue.ObjectSize(obj)
		survivors = append(survivors, obj)
	}
	h.objects = survivors
	h.live = survivingSize
	h.collections++

	// Geometric growth (spec.md §4.5: "threshold grows geometrically with
	// the live-set size after a collection").
	h.threshold = h.live*2 + initialThreshold

	h.log.WithFields(logrus.Fields{
		"cycle":    h.collections,
		"before":   start,
		"after":    len(h.objects),
		"freed":    freed,
		"liveSize": h.live,
		"threshold": h.threshold,
	}).Debug("gc: collection complete")
}

// Stats returns the number of collections run so far and the current
// live-set size estimate, for host-visible diagnostics (--gc-stats).
func (h *Heap) Stats() (collections int, liveSize uintptr) {
	return h.collections, h.live
}
