// Package assembly turns a narration script into a single vertical video.
//
// An Assembler run moves through fixed stages: planning sizes every sentence
// from its word count, fetching downloads candidate clips, normalizing trims
// each clip to its share of the sentence and conforms it to the canvas,
// concatenating joins clips per sentence and then sentences in script order,
// and overlaying muxes an optional background track. Per-clip failures are
// absorbed and logged; stage failures end the run. Every run owns a private
// staging workspace that is released however the run ends.
package assembly
