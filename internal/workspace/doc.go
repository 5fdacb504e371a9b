// Package workspace manages the scratch space used by conversion requests.
//
// A single [Manager] is created at startup from the configured scratch base
// directory. Each request obtains its own [ResourceSet], whose paths are all
// prefixed with a per-request UUID so concurrent requests never collide in
// the shared directory.
//
// Every file or directory a request creates (uploads, staged frame copies,
// palette images, the final artifact) is registered with the set, and
// [ResourceSet.ReleaseAll] removes them all on the request's way out,
// whichever branch it leaves through. Removal failures are logged and
// counted, never returned. [Manager.SweepStale] clears leftovers from a
// previous process that crashed mid-request. It holds a file lock in the
// base directory while it runs, so replicas sharing a scratch volume do not
// sweep at the same time.
package workspace
