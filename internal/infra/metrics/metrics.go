package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	PublishRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publish_runs_total",
		Help: "Количество запусков пайплайна публикации по исходам",
	}, []string{"outcome"})

	PublishRunSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "publish_run_seconds",
		Help:    "Длительность одного запуска пайплайна",
		Buckets: prometheus.DefBuckets,
	})

	QuotaRemaining = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "publish_quota_remaining",
		Help: "Остаток дневной квоты публикаций",
	})

	ReconciliationHazards = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_hazards_total",
		Help: "Сбои фиксации после успешной внешней публикации",
	})

	IngestedPostsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingested_posts_total",
		Help: "Принятые и отклонённые кандидаты по результату",
	}, []string{"result"})

	NotifyErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notify_errors_total",
		Help: "Ошибки доставки оповещений оператору",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации подписи LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		PublishRunsTotal,
		PublishRunSeconds,
		QuotaRemaining,
		ReconciliationHazards,
		IngestedPostsTotal,
		NotifyErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// ObserveNetworkRequest фиксирует исход сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	elapsed := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(elapsed)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMUsage фиксирует длительность и токены генерации.
func ObserveLLMUsage(model string, start time.Time, promptTokens, completionTokens int) {
	LLMGenerationDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: сервер остановился с ошибкой")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
