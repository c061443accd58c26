package engine

import "errors"

var (
	// ErrMissingSignature means the webhook request carried no signature header.
	ErrMissingSignature = errors.New("missing signature")
	// ErrInvalidSignature means the signature header did not match the body HMAC.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrNoSubject means the actor's own history could not be fetched, so no
	// generation subject can be established.
	ErrNoSubject = errors.New("no generation subject available")
)

// Outcome classifies how an event left the pipeline. It doubles as the
// metrics label for the event counter.
type Outcome string

const (
	OutcomeIgnored      Outcome = "ignored"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeUnauthorized Outcome = "unauthorized"
	OutcomeCompletion   Outcome = "completion"
	OutcomeLowScore     Outcome = "low_score"
	OutcomeRateLimited  Outcome = "rate_limited"
	OutcomePfpRepeat    Outcome = "pfp_repeat"
	OutcomeReplied      Outcome = "replied"
	OutcomeError        Outcome = "error"
)
