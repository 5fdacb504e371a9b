// Package frames orders uploaded image frames and stages them for ffmpeg.
//
// Frames are ordered by byte-wise comparison of their original filenames
// and copied into a per-request directory as frame_00000.ext,
// frame_00001.ext, and so on, so the image2 demuxer can read them with a
// single printf-style pattern. When uploads mix formats they are re-encoded
// to PNG on the way in.
//
// CheckOrdering and ProbeFrames produce non-fatal warnings for frame sets
// that are probably not what the caller intended (unpadded numbering, mixed
// dimensions).
package frames
