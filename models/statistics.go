package models

type ResponseStatistics struct {
	TotalResponses     int64 `json:"total_responses"`
	CompletedResponses int64 `json:"completed_responses"`
	// CompletionRate is completed/total in [0,1]; 0 when there are no responses.
	CompletionRate           float64 `json:"completion_rate"`
	AverageCompletionSeconds float64 `json:"average_completion_seconds"`
}
