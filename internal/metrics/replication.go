package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Métricas de replicación active → passive. Viven en un paquete aparte para
// que replication, entity y http no se importen entre sí.

var (
	ReplicationAckLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tier_replication_ack_latency_ms",
		Help:    "Latencia entre encolar un mensaje STRONG y recibir el ack de todos los passives",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 14),
	})

	ReplicatedMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tier_replicated_messages_total",
		Help: "Mensajes replicados a passives, por opcode",
	}, []string{"op"})

	UnreachablePassives = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tier_unreachable_passives_total",
		Help: "Passives removidos por timeout o error de entrega",
	})

	PassiveSyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tier_passive_syncs_total",
		Help: "Sincronizaciones de passives, por modo (journal|full)",
	}, []string{"mode"})

	ConnectedPassives = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tier_connected_passives",
		Help: "Passives conectados al active",
	})

	TrackedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tier_tracked_clients",
		Help: "Clientes adjuntos al tier manager del active",
	})

	JournalLastSeq = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tier_journal_last_seq",
		Help: "Última secuencia escrita en el journal de replicación",
	})
)

// Register registra las métricas del tier en reg (o el default si es nil).
// Registrar dos veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		ReplicationAckLatency,
		ReplicatedMessages,
		UnreachablePassives,
		PassiveSyncs,
		ConnectedPassives,
		TrackedClients,
		JournalLastSeq,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
