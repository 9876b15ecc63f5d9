// Package discovery finds ingestable media files under directory roots.
//
// A scan walks each root once, filters to recognized media extensions,
// and stats candidates on a small worker pool so large trees on slow
// filesystems do not serialize behind a single stat loop. Results come
// back in a deterministic path order so repeated runs enqueue the same
// batch in the same order.
package discovery
