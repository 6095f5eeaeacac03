package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alure_activations_total",
		Help: "License activation attempts by result.",
	}, []string{"result"})

	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alure_verifications_total",
		Help: "Receipt verification outcomes by result/reason.",
	}, []string{"result"})

	LicensesIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alure_licenses_issued_total",
		Help: "Licenses minted, split by single vs bulk issuance.",
	}, []string{"bulk"})
)
