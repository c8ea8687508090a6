package usecase

import "errors"

var (
	// ErrNoTranscripts ends a run when analysis has nothing to work with.
	ErrNoTranscripts = errors.New("no transcripts to analyze")
	// ErrRunInProgress rejects a trigger while another run holds the persona's token.
	ErrRunInProgress = errors.New("a pipeline run is already in progress for this persona")
	// ErrNotReady rejects chat and script requests against an unfinished persona.
	ErrNotReady = errors.New("persona not ready")
	// ErrNotRefreshable rejects a manual refresh outside ready and error.
	ErrNotRefreshable = errors.New("persona not available for refresh")
	// ErrNotReanalyzable rejects a reanalyze before the first run has started.
	ErrNotReanalyzable = errors.New("persona not available for re-analysis")
	// ErrInvalidInput marks caller mistakes in create/chat requests.
	ErrInvalidInput = errors.New("invalid input")
)

// ItemFailure is an item-level acquisition failure: the item ends in error
// with Reason as its message and the run carries on.
type ItemFailure struct {
	Reason string
}

func (e *ItemFailure) Error() string {
	return e.Reason
}

func isItemFailure(err error) bool {
	var failure *ItemFailure
	return errors.As(err, &failure)
}
