// Package speech provides the speech engine contract and the silence-terminated
// response capture loop for CareVoice.
//
// The engine itself (recognition and synthesis) is an external collaborator;
// this package defines the narrow interface the dialogue engine drives and the
// timing-sensitive capture loop that turns continuous recognition into one
// bounded spoken answer.
package speech

import "context"

// Engine is a pluggable speech recognition/synthesis abstraction.
//
// Implementations accumulate recognized text on their own callback thread;
// Transcript must be safe to call concurrently with recognition and must
// return everything recognized since the last StartListening.
type Engine interface {
	// StartListening begins continuous recognition and clears any previously
	// accumulated transcript.
	StartListening(ctx context.Context) error

	// StopListening halts recognition. Safe to call when not listening.
	StopListening() error

	// Transcript returns the text accumulated since StartListening.
	Transcript() string

	// Speak synthesizes the given text and blocks until playback completes or
	// the context is cancelled.
	Speak(ctx context.Context, text string) error
}
