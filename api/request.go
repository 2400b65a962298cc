package api

// CampaignRequest names what a campaign searches over
type CampaignRequest struct {
	Program       string `json:"program"`
	InputSpecPath string `json:"input_spec"`
	InputSpecName string `json:"input_spec_name"`
	Metric        string `json:"metric"`
	MaxIterations int    `json:"max_iterations"`

	Oracle string `json:"oracle"`
	Seed   *int64 `json:"seed,omitempty"`
}
