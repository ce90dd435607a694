package playerok

import "fmt"

// TransportError is returned when the remote answered with a non-success
// HTTP status that is not a challenge page or a structured GraphQL error.
// A zero Status with a non-nil Err means the request never got a response
// (timeout, connection reset).
type TransportError struct {
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return "playerok: request failed: " + e.Err.Error()
	}
	return fmt.Sprintf("playerok: request failed with HTTP %d", e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ChallengeError is returned after the anti-bot challenge page was served
// for every allowed attempt. LastBody holds the final challenge response
// for diagnostics.
type ChallengeError struct {
	Attempts int
	Status   int
	LastBody string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("playerok: anti-bot challenge persisted after %d attempts", e.Attempts)
}

// RemoteError wraps a structured GraphQL error payload returned by the remote.
type RemoteError struct {
	Messages []string
}

func (e *RemoteError) Error() string {
	if len(e.Messages) == 0 {
		return "playerok: remote returned an error payload"
	}
	return "playerok: remote error: " + e.Messages[0]
}

// UnauthorizedError means the remote reports no active session for the
// configured token. Retrying cannot help; the token must be replaced.
type UnauthorizedError struct{}

func (e *UnauthorizedError) Error() string {
	return "playerok: session token is invalid or expired"
}
