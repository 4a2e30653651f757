package constants

// GroupStatus is the lifecycle state of a page group.
type GroupStatus string

const (
	GroupPendingResolution GroupStatus = "PENDING_RESOLUTION" // produced by grouping
	GroupMatched           GroupStatus = "MATCHED"            // one roster student
	GroupUnmatched         GroupStatus = "UNMATCHED"          // no identity or unknown student
	GroupAmbiguous         GroupStatus = "AMBIGUOUS"          // several roster students
	GroupWritten           GroupStatus = "WRITTEN"            // artifacts on disk
	GroupFailed            GroupStatus = "FAILED"             // write or lookup failure
)

// Confidence is the qualitative strength of a page's identity signal.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// BatchStatus is the canonical status for rows in lotes.
type BatchStatus string

const (
	BatchQueued  BatchStatus = "QUEUED"
	BatchRunning BatchStatus = "RUNNING"
	BatchDone    BatchStatus = "DONE"
	BatchFailed  BatchStatus = "FAILED"
)

var allBatchStatuses = []BatchStatus{BatchQueued, BatchRunning, BatchDone, BatchFailed}

// BatchStatusStrings lists every BatchStatus for schema validation.
func BatchStatusStrings() []string {
	out := make([]string, len(allBatchStatuses))
	for i, s := range allBatchStatuses {
		out[i] = string(s)
	}
	return out
}
