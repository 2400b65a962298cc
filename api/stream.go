package api

import "time"

// MsgType is a message type for streaming progress
type MsgType string

// Streaming message type constants
const (
	StartCampaignMsg     MsgType = "campaign_start"
	StartGenerationMsg   MsgType = "generation_start"
	RejectCandidateMsg   MsgType = "candidate_reject"
	EvaluateCandidateMsg MsgType = "candidate_evaluate"
	FinishGenerationMsg  MsgType = "generation_finish"
	FinishCampaignMsg    MsgType = "campaign_finish"
)

// Size constraints for inputs and program output in streamed messages
const (
	MaxStreamTextHeight = 40
	MaxStreamTextWidth  = 80
)

// Header is the common header for all streaming messages
type Header struct {
	CampaignUuid string  `json:"campaign_uuid"`
	MsgType      MsgType `json:"msg_type"`
}

// StartCampaign message sent when the generation loop begins
type StartCampaign struct {
	Header
	Request     CampaignRequest `json:"request"`
	StartedTime string          `json:"started_time"`
}

// StartGeneration message sent before candidates are requested
type StartGeneration struct {
	Header
	Generation  int   `json:"generation"`
	TargetSizes []int `json:"target_sizes"`
}

// RejectCandidate message sent when an input is discarded as malformed
type RejectCandidate struct {
	Header
	Generation int    `json:"generation"`
	Input      string `json:"input"`
	Stderr     string `json:"stderr"`
}

// Evaluation is one scored candidate of a generation
type Evaluation struct {
	Input         string  `json:"input"`
	Size          int     `json:"size"`
	ResourceValue int64   `json:"resource_value"`
	Score         float64 `json:"score"`
	ExitCode      int     `json:"exit_code"`
	TimedOut      bool    `json:"timed_out"`
	Error         *string `json:"error,omitempty"`
}

// EvaluateCandidate message sent after a candidate was measured and scored
type EvaluateCandidate struct {
	Header
	Generation int        `json:"generation"`
	Evaluation Evaluation `json:"evaluation"`
}

// FinishGeneration message sent after selection
type FinishGeneration struct {
	Header
	Record GenerationRecord `json:"record"`
}

// FinishCampaign message sent when the campaign stops for any reason
type FinishCampaign struct {
	Header
	Status                CampaignStatus `json:"status"`
	ErrorMessage          *string        `json:"error_message"`
	TotalIterations       int            `json:"total_iterations"`
	ConvergenceGeneration *int           `json:"convergence_generation"`
	BestInput             *ScoredInput   `json:"best_input"`
	TotalTimeSec          float64        `json:"total_time_sec"`
}

func NewHeader(campaignUuid string, msgType MsgType) Header {
	return Header{
		CampaignUuid: campaignUuid,
		MsgType:      msgType,
	}
}

func NewStartCampaign(campaignUuid string, req CampaignRequest) StartCampaign {
	return StartCampaign{
		Header:      NewHeader(campaignUuid, StartCampaignMsg),
		Request:     req,
		StartedTime: time.Now().Format(time.RFC3339),
	}
}

func NewStartGeneration(campaignUuid string, generation int, targetSizes []int) StartGeneration {
	return StartGeneration{
		Header:      NewHeader(campaignUuid, StartGenerationMsg),
		Generation:  generation,
		TargetSizes: targetSizes,
	}
}

func NewRejectCandidate(campaignUuid string, generation int, input string, stderr string) RejectCandidate {
	return RejectCandidate{
		Header:     NewHeader(campaignUuid, RejectCandidateMsg),
		Generation: generation,
		Input:      input,
		Stderr:     stderr,
	}
}

func NewEvaluateCandidate(campaignUuid string, generation int, eval Evaluation) EvaluateCandidate {
	return EvaluateCandidate{
		Header:     NewHeader(campaignUuid, EvaluateCandidateMsg),
		Generation: generation,
		Evaluation: eval,
	}
}

func NewFinishGeneration(campaignUuid string, record GenerationRecord) FinishGeneration {
	return FinishGeneration{
		Header: NewHeader(campaignUuid, FinishGenerationMsg),
		Record: record,
	}
}

func NewFinishCampaign(campaignUuid string, res *Result, errMsg *string) FinishCampaign {
	msg := FinishCampaign{
		Header:       NewHeader(campaignUuid, FinishCampaignMsg),
		Status:       StatusFailed,
		ErrorMessage: errMsg,
	}
	if res != nil {
		msg.Status = res.Status
		msg.TotalIterations = res.TotalIterations
		msg.ConvergenceGeneration = res.ConvergenceGeneration
		msg.TotalTimeSec = res.TotalTimeSec
		if len(res.BestInputs) > 0 {
			best := res.BestInputs[0]
			msg.BestInput = &best
		}
	}
	return msg
}
