// Package verify checks encoder output before it is delivered.
//
// ffmpeg can exit zero without writing anything useful, so a conversion is
// only successful once [Artifact] has found a non-empty file at the
// expected path. GIF outputs additionally have their logical screen
// descriptor decoded.
package verify
