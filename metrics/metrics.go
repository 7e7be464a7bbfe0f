package metrics

import (
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/eclipsabot/eclipsa/api"
	"github.com/eclipsabot/eclipsa/api/env"
	"github.com/eclipsabot/eclipsa/api/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eclipsa_votes_total",
		Help: "Votes handled, by workflow and ledger result.",
	}, []string{"kind", "result"})

	Closures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eclipsa_closures_total",
		Help: "Terminal transitions, by workflow, outcome and trigger.",
	}, []string{"kind", "outcome", "trigger"})

	SchedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eclipsa_scheduler_runs_total",
		Help: "Scheduled job executions.",
	}, []string{"job"})
)

type Module struct {
	api.Module
}

func (*Module) Load(ds *discordgo.Session) {
	addr := env.GetOr("metrics.listen", ":9120")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logger.Out().Printf("Serving metrics on %s", addr)
		err := http.ListenAndServe(addr, mux)
		if err != nil {
			logger.Err().Printf("Metrics server stopped: %s", err.Error())
		}
	}()
}

func (Module) Name() string {
	return "metrics"
}
