// Package chunk plans how a long utterance is cut into fixed-size pieces
// for streaming inference.
//
// Each chunk produces a run of output frames and names the input frame
// range needed to compute them, including the left and right context
// around the run. Where the context reaches past the utterance boundary
// the plan records how many frames to replicate from the first or last
// real frame, so chunks compose into exactly the full-utterance result.
package chunk
