package sqsgath

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/programme-lv/pathogen/api"
	"github.com/programme-lv/pathogen/internal/gatherer"
)

const (
	DefaultRegion = "eu-central-1"
	sendTimeout   = 10 * time.Second
)

// Sender is the part of *sqs.Client the gatherer uses.
type Sender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

var _ Sender = (*sqs.Client)(nil)

// Result is the message carrying the final campaign artifact.
type Result struct {
	api.Header
	Result *api.Result `json:"result"`
	Error  *string     `json:"error_message"`
}

// resultQueue publishes campaign milestones to an SQS queue.
// Per-candidate events stay local; only generation summaries and the
// final result are sent.
type resultQueue struct {
	sqsClient    Sender
	queueUrl     string
	campaignUuid string
	logger       *slog.Logger
}

func New(client Sender, queueUrl string, logger *slog.Logger) *resultQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &resultQueue{
		sqsClient: client,
		queueUrl:  queueUrl,
		logger:    logger,
	}
}

// NewClient loads the default AWS configuration for region.
func NewClient(ctx context.Context, region string) (*sqs.Client, error) {
	if region == "" {
		region = DefaultRegion
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return sqs.NewFromConfig(cfg), nil
}

func (s *resultQueue) send(msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal message", slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	_, err = s.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueUrl),
		MessageBody: aws.String(string(b)),
	})
	if err != nil {
		s.logger.Error("failed to send message to SQS", slog.Any("error", err))
	}
}

func (s *resultQueue) StartCampaign(campaignUuid string, req api.CampaignRequest) {
	s.campaignUuid = campaignUuid
	s.send(api.NewStartCampaign(campaignUuid, req))
}

func (s *resultQueue) StartGeneration(int, []int) {}

func (s *resultQueue) RejectCandidate(int, string, string) {}

func (s *resultQueue) EvaluateCandidate(int, api.Evaluation) {}

func (s *resultQueue) FinishGeneration(record api.GenerationRecord) {
	s.send(api.NewFinishGeneration(s.campaignUuid, record))
}

func (s *resultQueue) FinishCampaign(res *api.Result, err error) {
	msg := Result{
		Header: api.NewHeader(s.campaignUuid, api.FinishCampaignMsg),
		Result: trimResult(res),
	}
	if err != nil {
		errMsg := err.Error()
		msg.Error = &errMsg
	}
	s.send(msg)
}

// trimResult shortens inputs so the message stays under the SQS size limit.
func trimResult(res *api.Result) *api.Result {
	if res == nil {
		return nil
	}
	trimmed := *res
	trimmed.Config = nil
	trimmed.BestInputs = make([]api.ScoredInput, len(res.BestInputs))
	for i, in := range res.BestInputs {
		in.Input = gatherer.TrimToRect(in.Input, api.MaxStreamTextHeight, api.MaxStreamTextWidth)
		trimmed.BestInputs[i] = in
	}
	return &trimmed
}
