package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulingMetrics exposes counters/histograms for slot planning, booking
// writes and schedule event delivery. It satisfies scheduling.PlanObserver.
type SchedulingMetrics struct {
	planTotal       *prometheus.CounterVec
	slotsGenerated  prometheus.Counter
	planLatency     *prometheus.HistogramVec
	validationTotal *prometheus.CounterVec
	bookingTotal    *prometheus.CounterVec
	deliveryTotal   *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		planTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medicalpro",
			Subsystem: "scheduling",
			Name:      "slot_queries_total",
			Help:      "Slot queries by outcome (open, clinic_closed, no_availability)",
		}, []string{"outcome"}),
		slotsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medicalpro",
			Subsystem: "scheduling",
			Name:      "slots_generated_total",
			Help:      "Slots returned by slot queries",
		}),
		planLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medicalpro",
			Subsystem: "scheduling",
			Name:      "plan_duration_seconds",
			Help:      "Time to fetch inputs and compute a day plan",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		validationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medicalpro",
			Subsystem: "scheduling",
			Name:      "booking_validations_total",
			Help:      "Booking validations by result",
		}, []string{"result"}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medicalpro",
			Subsystem: "scheduling",
			Name:      "booking_writes_total",
			Help:      "Appointment writes by operation and status",
		}, []string{"operation", "status"}),
		deliveryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medicalpro",
			Subsystem: "scheduling",
			Name:      "event_deliveries_total",
			Help:      "Schedule events delivered from the outbox",
		}, []string{"event_type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.planTotal, m.slotsGenerated, m.planLatency, m.validationTotal, m.bookingTotal, m.deliveryTotal)
	return m
}

func (m *SchedulingMetrics) ObservePlan(outcome string, slots int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.planTotal.WithLabelValues(outcome).Inc()
	m.slotsGenerated.Add(float64(slots))
	m.planLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *SchedulingMetrics) ObserveValidation(result string) {
	if m == nil {
		return
	}
	m.validationTotal.WithLabelValues(result).Inc()
}

func (m *SchedulingMetrics) ObserveBooking(operation string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.bookingTotal.WithLabelValues(operation, status).Inc()
}

func (m *SchedulingMetrics) ObserveDelivery(eventType string, err error) {
	if m == nil {
		return
	}
	status := "delivered"
	if err != nil {
		status = "failed"
	}
	m.deliveryTotal.WithLabelValues(eventType, status).Inc()
}
