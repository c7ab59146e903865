package grpc

import (
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// PaymentsServiceName is the health-checked service; it only reports SERVING
// while the payment provider is configured.
const PaymentsServiceName = "payments.stripe"

type providerStatus interface {
	ProviderConfigured() bool
}

func NewHealthServer(paymentService providerStatus) *health.Server {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	servingStatus := healthpb.HealthCheckResponse_NOT_SERVING
	if paymentService.ProviderConfigured() {
		servingStatus = healthpb.HealthCheckResponse_SERVING
	}
	srv.SetServingStatus(PaymentsServiceName, servingStatus)

	return srv
}
