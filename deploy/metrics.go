package deploy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status labels of deployFilesTotal.
const (
	statusUploaded = "uploaded"
	statusSkipped  = "skipped"
)

var (
	deployFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permalaunch_deploy_files_total",
		Help: "Total number of files walked by deployments, by outcome",
	}, []string{"status"})

	deployBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "permalaunch_deploy_bytes_total",
		Help: "Total bytes of files uploaded by deployments",
	})

	deployManifestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permalaunch_deploy_manifests_total",
		Help: "Total number of manifest uploads, by status",
	}, []string{"status"})
)
