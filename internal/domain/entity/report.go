package entity

// ReportEntry is one detected issue tagged with the frame it was found at.
// A frame with N issues produces N entries.
type ReportEntry struct {
	FrameNumber int         `json:"frame_number"`
	Timestamp   string      `json:"timestamp"`
	Details     SafetyIssue `json:"issue_details"`
}

// SafetyReport is the consumer-facing scan result. DetectedIssues is sorted
// ascending by frame number before serialization.
type SafetyReport struct {
	VideoFile         string        `json:"video_file"`
	AnalysisTimestamp string        `json:"analysis_timestamp"`
	FrameInterval     int           `json:"frame_interval"`
	DetectedIssues    []ReportEntry `json:"detected_issues"`
}

// ScanSummary is what a completed scan reports back to its caller: the
// operator-visible counters plus the snapshot paths written for flagged
// frames. AnalysisErrors counts frames whose analysis failed; those frames
// contribute no report entries.
type ScanSummary struct {
	FrameCount     int
	FramesAnalyzed int
	IssuesDetected int
	AnalysisErrors int
	VideoDuration  float64
	IssueFrames    []string
}
