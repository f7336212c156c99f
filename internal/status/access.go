package status

// Access describes whether the chat for a request is available and writable.
// It is derived, never stored: recompute on every status change.
type Access struct {
	Enabled  bool
	ReadOnly bool
	// StatusMessage is the user-facing explanation when the chat is not
	// writable. Empty for writable states.
	StatusMessage string
}

// Evaluate derives chat availability from a request status. Pure and total
// over the status set: unrecognized values disable the chat with a generic
// message.
func Evaluate(st Status) Access {
	switch st {
	case Pending:
		return Access{StatusMessage: "Chat opens once the provider accepts the request."}
	case Rejected:
		return Access{StatusMessage: "Chat is not available for rejected requests."}
	case Completed:
		return Access{Enabled: true, ReadOnly: true, StatusMessage: "This request is completed. The conversation is read-only."}
	case Cancelled:
		return Access{Enabled: true, ReadOnly: true, StatusMessage: "This request was cancelled. The conversation is read-only."}
	case Accepted, QuoteSent, QuoteAccepted, PaymentPending, PaymentConfirmed, Scheduled:
		return Access{Enabled: true}
	default:
		return Access{StatusMessage: "Chat is not available for this request."}
	}
}
