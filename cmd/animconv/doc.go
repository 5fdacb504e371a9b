// Command animconv converts a video or an image sequence into an animated
// GIF or a transparent video without running the HTTP service.
//
// Usage:
//
//	animconv video <input> <output>
//	animconv frames <output> <frame>...
//	animconv encoders
//
// Frames are ordered by filename, not by argument order. The encoders
// command shows which codec each output format will use with the
// installed ffmpeg, and whether transparency survives.
//
// Environment:
//
//	FPS          - Output frame rate (default: 30 for video, 10 for frames)
//	TRANSPARENT  - Keep transparency (default: false)
//	FORMAT       - gif, avi or webm (default: taken from the output extension)
//	SCRATCH_DIR  - Directory for temporary files (default: $TMPDIR/animconv)
//	FFMPEG_PATH  - ffmpeg binary (default: ffmpeg)
//
// When stdout is a terminal, per-stage progress is drawn on a single line.
// Temporary files are removed on exit, including after Ctrl+C.
package main
