// Package status models the service request lifecycle owned by the external
// service-request collaborator, and derives chat availability from it.
package status

// Status is the business transaction status of a service request. The set is
// closed; values outside it are mapped to Unknown and treated as disabled.
type Status string

const (
	Unknown          Status = ""
	Pending          Status = "pending"
	Rejected         Status = "rejected"
	Accepted         Status = "accepted"
	QuoteSent        Status = "quote_sent"
	QuoteAccepted    Status = "quote_accepted"
	PaymentPending   Status = "payment_pending"
	PaymentConfirmed Status = "payment_confirmed"
	Scheduled        Status = "scheduled"
	Completed        Status = "completed"
	Cancelled        Status = "cancelled"
)

var known = map[Status]bool{
	Pending:          true,
	Rejected:         true,
	Accepted:         true,
	QuoteSent:        true,
	QuoteAccepted:    true,
	PaymentPending:   true,
	PaymentConfirmed: true,
	Scheduled:        true,
	Completed:        true,
	Cancelled:        true,
}

// Parse maps a raw status string to a Status, yielding Unknown for any value
// outside the closed set.
func Parse(s string) Status {
	st := Status(s)
	if known[st] {
		return st
	}
	return Unknown
}

// All lists every member of the closed status set.
func All() []Status {
	return []Status{
		Pending, Rejected, Accepted, QuoteSent, QuoteAccepted,
		PaymentPending, PaymentConfirmed, Scheduled, Completed, Cancelled,
	}
}
