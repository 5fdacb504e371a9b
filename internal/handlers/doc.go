// Package handlers provides HTTP request handlers for the conversion API.
//
// It includes handlers for:
//   - Video to animation conversion (POST /convert, field "video")
//   - Frame sequence conversion (POST /convert/frames, field "frames")
//   - Health, liveness, readiness and version endpoints
//
// Uploads are streamed straight into the request's scratch namespace and
// released together with every intermediate file once the response is
// written. Failures are reported as JSON {"error", "stage"}: 400 for bad
// input, 413 for oversize uploads, 503 when no conversion slot frees up
// before the client gives up, and 500 otherwise.
package handlers
