// Package ffprobe inspects rendered clips and assembled videos.
//
// Inspect runs ffprobe and decodes its JSON report; CheckPlayable applies the
// minimal acceptance rule for a produced video: at least one video stream and
// a positive duration.
package ffprobe
