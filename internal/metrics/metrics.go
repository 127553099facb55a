// Package metrics — счётчики Prometheus для выпуска и проверки токенов.
// Все методы безопасны для nil-получателя: сервис без метрик просто их не пишет.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth"

// Результаты проверки токена (label result).
const (
	VerifyOK        = "ok"
	VerifyMalformed = "malformed"
	VerifySignature = "signature_mismatch"
	VerifyExpired   = "expired"
	VerifyRevoked   = "revoked"
	VerifyError     = "error"
)

type Metrics struct {
	issued   *prometheus.CounterVec
	verified *prometheus.CounterVec
	revoked  prometheus.Counter
}

// New регистрирует счётчики в reg (обычно prometheus.DefaultRegisterer).
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		issued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Signup/login attempts by operation and outcome.",
		}, []string{"op", "result"}),
		verified: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_verifications_total",
			Help:      "Bearer token verifications by outcome.",
		}, []string{"result"}),
		revoked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_revoked_total",
			Help:      "Tokens put on the denylist by logout.",
		}),
	}
}

// Issued учитывает попытку выпуска сессии: op — signup|login, result — код исхода.
func (m *Metrics) Issued(op, result string) {
	if m == nil {
		return
	}
	m.issued.WithLabelValues(op, result).Inc()
}

// Verified учитывает исход проверки токена.
func (m *Metrics) Verified(result string) {
	if m == nil {
		return
	}
	m.verified.WithLabelValues(result).Inc()
}

// Revoked учитывает отзыв токена.
func (m *Metrics) Revoked() {
	if m == nil {
		return
	}
	m.revoked.Inc()
}
