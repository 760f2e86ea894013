package constants

// JobStatus is the canonical status for a document moving through the pipeline.
type JobStatus string

// Stable values (stored verbatim in extract_job.status).
const (
	JobStatusRunning       JobStatus = "RUNNING"
	JobStatusTextExtracted JobStatus = "TEXT_EXTRACTED"
	JobStatusImageFallback JobStatus = "IMAGE_FALLBACK"
	JobStatusRequestSent   JobStatus = "REQUEST_SENT"
	JobStatusNormalized    JobStatus = "NORMALIZED" // row appended
	JobStatusFailed        JobStatus = "FAILED"     // terminal failure, no row
)

// Terminal reports whether no further transition is expected.
func (s JobStatus) Terminal() bool {
	return s == JobStatusNormalized || s == JobStatusFailed
}

// Extraction methods recorded per document.
const (
	MethodText  = "pdf-text"
	MethodImage = "pdf-image"
)
