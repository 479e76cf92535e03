package entity

// SafetyIssue is one hazard detected on a single frame.
type SafetyIssue struct {
	IssueType   string `json:"issue_type"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// Analysis is the outcome of analyzing one frame. A failed analysis carries
// Err and no issues; a clean frame carries neither. The analyzer is an
// external collaborator, so both fields set at once is tolerated downstream.
type Analysis struct {
	Issues []SafetyIssue `json:"safety_issues"`
	Err    string        `json:"error,omitempty"`
}

// Failed reports whether the analysis itself failed, regardless of any
// issues the collaborator may still have attached.
func (a Analysis) Failed() bool {
	return a.Err != ""
}
