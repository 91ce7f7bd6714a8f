package orchestrator

// Outcome classifies how a submission ended.
type Outcome int

// Possible submission outcomes.
const (
	// OutcomeCompleted means every job reached a terminal state and no
	// hand-off failed.
	OutcomeCompleted Outcome = iota

	// OutcomeFailed means every job reached a terminal state but at least
	// one failed on the node or during result hand-off.
	OutcomeFailed

	// OutcomeIncomplete means the poll retry budget was exhausted with
	// jobs still outstanding. Completed jobs were still handed off; the
	// outstanding ones were left as-is on the node.
	OutcomeIncomplete

	// OutcomeCancelled means operator shutdown interrupted the submission
	// and the unwind path ran.
	OutcomeCancelled
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeIncomplete:
		return "incomplete"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result is the per-submission tally returned by SubmitAndWait.
type Result struct {
	Outcome Outcome

	// Completed counts jobs whose output was handed off successfully.
	Completed int

	// Failed counts jobs that failed on the node or whose hand-off failed.
	Failed int

	// Pending counts jobs never observed in a terminal state. Non-zero
	// only for OutcomeIncomplete and OutcomeCancelled.
	Pending int
}
