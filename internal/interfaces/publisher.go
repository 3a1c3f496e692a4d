package interfaces

import "context"

// Publisher posts composed messages to the social platform. Failures are
// surfaced as the typed errors in internal/models: RateLimitError when
// the platform reports limit-exceeded, TransientPublishError for
// recoverable transport failures.
type Publisher interface {
	// Name returns the platform name for logging and post records
	Name() string

	// CharacterLimit returns the platform's maximum post length
	CharacterLimit() int

	// Publish posts the message, optionally attaching an image, and
	// returns the platform post id. In test mode implementations log the
	// post and return a synthetic id without calling the platform.
	Publish(ctx context.Context, text string, image []byte) (string, error)
}
