package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var synchronizedHosts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "inventoried_synchronized_hosts_total",
	Help: "Hosts re-emitted to the bus by synchronization runs.",
})
