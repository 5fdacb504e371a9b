// Package converter runs one conversion request end to end.
//
// A [Request] names either a single uploaded video or a set of uploaded
// frames, along with the output format, frame rate and transparency flag.
// [Converter.Convert] validates it, waits for a slot from the [Limiter],
// stages frames, builds and executes the encoder plan, and verifies the
// artifact. The result is always an [Outcome]; failures carry the stage
// they stopped at and a message suitable for the caller.
//
// Every file the conversion creates lives in the caller's
// workspace.ResourceSet and is registered before it exists. Releasing the
// set after delivery is the caller's job, which lets the artifact be
// streamed straight from scratch space.
package converter
