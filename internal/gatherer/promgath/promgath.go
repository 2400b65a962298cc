// Package promgath exports campaign progress as Prometheus metrics.
package promgath

import (
	"net/http"

	"github.com/programme-lv/pathogen/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pathogen"

type Gatherer struct {
	evaluations  *prometheus.CounterVec
	rejections   prometheus.Counter
	generations  prometheus.Counter
	generation   prometheus.Gauge
	bestScore    prometheus.Gauge
	avgScore     prometheus.Gauge
	maxResource  prometheus.Gauge
	genDuration  prometheus.Histogram
	campaignsFin *prometheus.CounterVec

	maxSeen float64
}

// New registers the campaign metrics on reg.
func New(reg prometheus.Registerer) (*Gatherer, error) {
	g := &Gatherer{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Candidate evaluations by result (success, failure, timeout).",
		}, []string{"result"}),
		rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "format_rejections_total",
			Help:      "Candidates discarded because the target could not parse them.",
		}),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Completed generations.",
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation",
			Help:      "Generation currently running.",
		}),
		bestScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_score",
			Help:      "Best score in the elite pool.",
		}),
		avgScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_avg_score",
			Help:      "Average score of the last selected set.",
		}),
		maxResource: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_resource_value",
			Help:      "Highest raw resource value measured.",
		}),
		genDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of one generation.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		campaignsFin: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaigns_finished_total",
			Help:      "Finished campaigns by status.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{
		g.evaluations, g.rejections, g.generations, g.generation,
		g.bestScore, g.avgScore, g.maxResource, g.genDuration, g.campaignsFin,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Handler serves the metrics gathered by reg.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (g *Gatherer) StartCampaign(string, api.CampaignRequest) {}

func (g *Gatherer) StartGeneration(generation int, _ []int) {
	g.generation.Set(float64(generation))
}

func (g *Gatherer) RejectCandidate(int, string, string) {
	g.rejections.Inc()
}

func (g *Gatherer) EvaluateCandidate(_ int, eval api.Evaluation) {
	switch {
	case eval.TimedOut:
		g.evaluations.WithLabelValues("timeout").Inc()
	case eval.ExitCode == 0 && eval.Error == nil:
		g.evaluations.WithLabelValues("success").Inc()
	default:
		g.evaluations.WithLabelValues("failure").Inc()
	}
	if v := float64(eval.ResourceValue); v > g.maxSeen {
		g.maxSeen = v
		g.maxResource.Set(v)
	}
}

func (g *Gatherer) FinishGeneration(record api.GenerationRecord) {
	g.generations.Inc()
	g.bestScore.Set(record.BestScore)
	g.avgScore.Set(record.AvgScore)
	g.genDuration.Observe(float64(record.DurationMs) / 1000)
}

func (g *Gatherer) FinishCampaign(res *api.Result, _ error) {
	status := api.StatusFailed
	if res != nil {
		status = res.Status
	}
	g.campaignsFin.WithLabelValues(string(status)).Inc()
}
