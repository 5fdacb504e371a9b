// Package encoder plans and runs the ffmpeg invocations behind a conversion.
//
// Planning and execution are separate. [BuildPlan] is a pure function from a
// [PlanInput] to a [Plan], an ordered list of one or two [Stage] values:
//
//   - GIF without transparency: one stage that fuses palettegen and
//     paletteuse with a split filter graph.
//   - GIF with transparency: a palettegen stage that reserves a transparent
//     palette entry keyed to a sentinel colour, then a paletteuse stage that
//     maps pixels below an alpha threshold to that entry.
//   - AVI and WebM: one stage with an alpha-capable codec when transparency
//     is requested and the engine has one, an opaque codec otherwise
//     (reported through Plan.TransparencyDropped).
//
// Video input is resampled to the requested frame rate and scaled and
// padded onto a fixed square canvas; frame sequences are read with the
// image2 demuxer at the requested frame rate.
//
// [Execute] runs a plan stage by stage through a [Runner], reporting start,
// progress and completion to an [Observer], and stops at the first failure.
// [FFmpegRunner] is the subprocess implementation; it applies a per-stage
// timeout, parses -progress output, and keeps stderr as the diagnostic.
//
// Requires ffmpeg (and ffprobe for progress on video input) to be installed.
package encoder
