package api

// Non-streaming campaign result artifact

// ScoredInput is one of the best inputs found
type ScoredInput struct {
	Input string  `json:"input"`
	Score float64 `json:"score"`
	Size  int     `json:"size"`
}

// GenerationRecord summarises one round of the campaign
type GenerationRecord struct {
	Generation int `json:"generation"`

	// best score of the elite pool after this round
	BestScore float64 `json:"best_score"`
	// average over the round's selected set
	AvgScore  float64 `json:"avg_score"`
	NumInputs int     `json:"num_inputs"`

	NumRejected int   `json:"num_rejected"`
	DurationMs  int64 `json:"duration_ms"`
}

// Stats counts executions over the whole campaign
type Stats struct {
	TotalExecutions      int64 `json:"total_executions"`
	SuccessfulExecutions int64 `json:"successful_executions"`
	FormatRejections     int64 `json:"format_rejections"`
	Timeouts             int64 `json:"timeouts"`
	OracleFailures       int64 `json:"oracle_failures"`
}

type CampaignStatus string

const (
	StatusConverged CampaignStatus = "converged"
	StatusExhausted CampaignStatus = "exhausted"
	StatusCancelled CampaignStatus = "cancelled"
	StatusFailed    CampaignStatus = "failed"
)

// Result is the persisted outcome of a campaign
type Result struct {
	CampaignUuid string          `json:"campaign_uuid"`
	Request      CampaignRequest `json:"request"`
	Status       CampaignStatus  `json:"status"`

	// top inputs by descending score
	BestInputs        []ScoredInput      `json:"best_inputs"`
	GenerationHistory []GenerationRecord `json:"generation_history"`

	TotalIterations int     `json:"total_iterations"`
	TotalTimeSec    float64 `json:"total_time_sec"`
	// 1-based generation at which the campaign converged, null if it did not
	ConvergenceGeneration *int `json:"convergence_generation"`

	Stats Stats `json:"stats"`

	StartTime  string `json:"start_time"`
	FinishTime string `json:"finish_time"`

	// effective configuration the campaign ran with
	Config any `json:"config,omitempty"`
}
