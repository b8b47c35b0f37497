// Package metrics exposes prometheus counters for the billing core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ReferralsAssigned  prometheus.Counter
	DebitsRejected     prometheus.Counter
	DepositsApproved   prometheus.Counter
	InvoicesGenerated  *prometheus.CounterVec
	InvoicesIssued     prometheus.Counter
	InvoiceTransitions *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReferralsAssigned: factory.NewCounter(prometheus.CounterOpts{
			Name: "billing_referrals_assigned_total",
			Help: "Referrals successfully assigned to partners.",
		}),
		DebitsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "billing_deposit_debits_rejected_total",
			Help: "Deposit debits rejected for insufficient balance.",
		}),
		DepositsApproved: factory.NewCounter(prometheus.CounterOpts{
			Name: "billing_deposit_requests_approved_total",
			Help: "Deposit requests approved by an administrator.",
		}),
		InvoicesGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_invoices_generated_total",
			Help: "Company invoices generated, by mode.",
		}, []string{"mode"}),
		InvoicesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "billing_invoices_issued_total",
			Help: "Company invoices issued to partners.",
		}),
		InvoiceTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_invoice_transitions_total",
			Help: "Invoice status transitions, by target status.",
		}, []string{"to"}),
	}
}

// NewDefault registers against the default prometheus registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
