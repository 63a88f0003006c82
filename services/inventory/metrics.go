package inventory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventoried_hosts_created_total",
		Help: "Hosts created by upsert submissions.",
	})
	hostsUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventoried_hosts_updated_total",
		Help: "Hosts updated by upsert submissions.",
	})
	factsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventoried_facts_merged_total",
		Help: "Per-host namespace merge operations applied.",
	})
	factsReplaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventoried_facts_replaced_total",
		Help: "Per-host namespace replace operations applied.",
	})
	ambiguousMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventoried_ambiguous_matches_total",
		Help: "Resolutions aborted because one canonical fact matched multiple hosts.",
	})
)
