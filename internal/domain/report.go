package domain

// Report summarizes one coordinator run for the log sink and the
// scheduled-trigger response.
type Report struct {
	Processed int  `json:"total_processed"`
	Eligible  int  `json:"total_eligible"`
	Sent      int  `json:"total_sent"`
	Errors    int  `json:"errors"`
	Success   bool `json:"success"`
}
