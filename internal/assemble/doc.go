// Package assemble joins rendered scene clips into the final video.
//
// A single clip is copied byte for byte. Several clips are joined with the
// ffmpeg concat demuxer in stream-copy mode, so clips are never re-encoded,
// reordered or dropped.
package assemble
