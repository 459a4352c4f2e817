package mainboilerplate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	log "github.com/sirupsen/logrus"
)

// MetricsConfig configures the push of run metrics to a Prometheus Pushgateway.
type MetricsConfig struct {
	PushGateway string `long:"push-gateway" env:"PUSH_GATEWAY" description:"URL of a Prometheus Pushgateway to which run metrics are pushed. Metrics are not pushed if empty"`
	Job         string `long:"job" env:"JOB" default:"permalaunch" description:"Job name of pushed metrics"`
	Instance    string `long:"instance" env:"INSTANCE" description:"Optional instance grouping label of pushed metrics"`
}

// PushMetrics pushes all metrics of |gatherer| to the configured Pushgateway.
// It's a no-op if no Pushgateway is configured. Failures are logged.
func PushMetrics(cfg MetricsConfig, gatherer prometheus.Gatherer) error {
	if cfg.PushGateway == "" {
		return nil
	}
	var pusher = push.New(cfg.PushGateway, cfg.Job).Gatherer(gatherer)
	if cfg.Instance != "" {
		pusher = pusher.Grouping("instance", cfg.Instance)
	}
	var err = pusher.Push()
	if err != nil {
		log.WithFields(log.Fields{"err": err, "gateway": cfg.PushGateway}).Warn("failed to push metrics")
	}
	return err
}
