package port

import "net/http"

// FailureRedirector answers a request with the uncompressed resource
type FailureRedirector interface {
	// Redirect sends the client to target. It does nothing once a response
	// was started.
	Redirect(w http.ResponseWriter, r *http.Request, target string)
}
