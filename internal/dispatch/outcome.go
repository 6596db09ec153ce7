package dispatch

// Kind classifies the result of one delivery attempt to one destination.
type Kind string

const (
	// KindDelivered: the transport accepted the post and the ledger
	// recorded it.
	KindDelivered Kind = "delivered"
	// KindAlreadyDelivered: the ledger already held a record for the
	// key; no outbound call was made (or a concurrent dispatcher won
	// the record race).
	KindAlreadyDelivered Kind = "already_delivered"
	// KindSkippedStale: the event was older than the staleness window.
	// Success-equivalent, nothing was or will be published.
	KindSkippedStale Kind = "skipped_stale"
	// KindFailed: the attempt did not complete; no ledger record was
	// written unless Reason says otherwise, so a retry is safe.
	KindFailed Kind = "failed"
)

// Outcome is the per-destination result of Dispatcher.Deliver.
type Outcome struct {
	Kind        Kind
	ProviderRef string // set only for KindDelivered
	Reason      string // set only for KindFailed
}

// Success reports whether the destination needs no further attempt.
func (o Outcome) Success() bool { return o.Kind != KindFailed }

func delivered(ref string) Outcome { return Outcome{Kind: KindDelivered, ProviderRef: ref} }
func alreadyDelivered() Outcome    { return Outcome{Kind: KindAlreadyDelivered} }
func skippedStale() Outcome        { return Outcome{Kind: KindSkippedStale} }
func failed(reason string) Outcome { return Outcome{Kind: KindFailed, Reason: reason} }

// Report is the outcome map for one Deliver invocation, keyed by
// destination name.
type Report map[string]Outcome

// Failed reports whether any destination in the report failed.
func (r Report) Failed() bool {
	for _, o := range r {
		if !o.Success() {
			return true
		}
	}
	return false
}
