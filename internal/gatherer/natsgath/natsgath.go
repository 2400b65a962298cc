package natsgath

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/programme-lv/pathogen/api"
	"github.com/programme-lv/pathogen/internal/gatherer"
)

// Publisher is the part of *nats.Conn the gatherer uses.
type Publisher interface {
	Publish(subj string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

type natsGatherer struct {
	nc           Publisher
	subject      string
	campaignUuid string
	logger       *slog.Logger
}

// New creates a gatherer that streams progress messages to subject.
func New(nc Publisher, subject string, logger *slog.Logger) *natsGatherer {
	if logger == nil {
		logger = slog.Default()
	}
	return &natsGatherer{
		nc:      nc,
		subject: subject,
		logger:  logger,
	}
}

// Connect dials url and returns the connection; the caller drains it.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url, nats.Name("pathogen"))
}

func (s *natsGatherer) send(msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal message", slog.Any("error", err))
		return
	}

	if err := s.nc.Publish(s.subject, b); err != nil {
		s.logger.Error("failed to publish message to NATS", slog.Any("error", err))
	}
}

func (s *natsGatherer) StartCampaign(campaignUuid string, req api.CampaignRequest) {
	s.campaignUuid = campaignUuid
	s.send(api.NewStartCampaign(campaignUuid, req))
}

func (s *natsGatherer) StartGeneration(generation int, targetSizes []int) {
	s.send(api.NewStartGeneration(s.campaignUuid, generation, targetSizes))
}

func (s *natsGatherer) RejectCandidate(generation int, input string, stderr string) {
	s.send(api.NewRejectCandidate(
		s.campaignUuid,
		generation,
		gatherer.TrimToRect(input, api.MaxStreamTextHeight, api.MaxStreamTextWidth),
		gatherer.TrimToRect(stderr, api.MaxStreamTextHeight, api.MaxStreamTextWidth),
	))
}

func (s *natsGatherer) EvaluateCandidate(generation int, eval api.Evaluation) {
	s.send(api.NewEvaluateCandidate(s.campaignUuid, generation, gatherer.TrimEvaluation(eval)))
}

func (s *natsGatherer) FinishGeneration(record api.GenerationRecord) {
	s.send(api.NewFinishGeneration(s.campaignUuid, record))
}

func (s *natsGatherer) FinishCampaign(res *api.Result, err error) {
	var errMsg *string
	if err != nil {
		msg := err.Error()
		errMsg = &msg
	}
	s.send(api.NewFinishCampaign(s.campaignUuid, res, errMsg))
}
