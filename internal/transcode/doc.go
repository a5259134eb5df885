// Package transcode drives the external transcoding engine.
//
// Engine is the seam the assembly pipeline talks to: measure a clip's duration,
// trim and normalize it onto the canonical canvas, concatenate ordered
// segments, and mux a background audio track. FFmpeg implements Engine by
// building command lines with ffmpeg-go and running them through an injectable
// runner with a per-call deadline.
//
// Concatenation order travels as typed Entry values. The ffconcat manifest
// text is produced only here, right before ffmpeg reads it.
package transcode
