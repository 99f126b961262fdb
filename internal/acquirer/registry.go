package acquirer

import (
	"net/http"
	"strings"

	"github.com/smallbiznis/paygate/internal/acquirer/domain"
	"github.com/smallbiznis/paygate/internal/acquirer/httpclient"
	"github.com/smallbiznis/paygate/internal/acquirer/simulator"
	"github.com/smallbiznis/paygate/internal/config"
	"github.com/smallbiznis/paygate/internal/observability/metrics"
	"go.uber.org/zap"
)

// Factory builds an acquirer client for one mode.
type Factory interface {
	Mode() string
	NewClient() (domain.Client, error)
}

type factoryFunc struct {
	mode string
	fn   func() (domain.Client, error)
}

func (f factoryFunc) Mode() string { return f.mode }
func (f factoryFunc) NewClient() (domain.Client, error) { return f.fn() }

type Registry struct {
	factories map[string]Factory
}

func NewRegistry(factories ...Factory) *Registry {
	registry := &Registry{factories: map[string]Factory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		mode := strings.ToLower(strings.TrimSpace(factory.Mode()))
		if mode == "" {
			continue
		}
		registry.factories[mode] = factory
	}
	return registry
}

func (r *Registry) ModeExists(mode string) bool {
	if r == nil {
		return false
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	_, ok := r.factories[mode]
	return ok
}

func (r *Registry) NewClient(mode string) (domain.Client, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	factory, ok := r.factories[mode]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return factory.NewClient()
}

// DefaultRegistry wires the HTTP and simulated acquirers. Simulated mode keeps
// the resilient HTTP client in front of the simulator.
func DefaultRegistry(cfg config.Config, engine *simulator.Engine, handler *simulator.Handler, log *zap.Logger, gm *metrics.GatewayMetrics) *Registry {
	return NewRegistry(
		factoryFunc{mode: config.AcquirerModeHTTP, fn: func() (domain.Client, error) {
			return httpclient.New(httpclient.ConfigFrom(cfg.Acquirer), &http.Client{}, log, gm)
		}},
		factoryFunc{mode: config.AcquirerModeSimulated, fn: func() (domain.Client, error) {
			transport := &http.Client{Transport: simulator.NewTransport(handler)}
			return httpclient.New(httpclient.ConfigFrom(cfg.Acquirer), transport, log, gm)
		}},
		factoryFunc{mode: config.AcquirerModeSimulatedDirect, fn: func() (domain.Client, error) {
			return simulator.NewClient(engine, cfg.Acquirer.Timeout, log, gm), nil
		}},
	)
}

// NewClient resolves the client for the configured acquirer mode.
func NewClient(cfg config.Config, registry *Registry, log *zap.Logger) (domain.Client, error) {
	client, err := registry.NewClient(cfg.Acquirer.Mode)
	if err != nil {
		return nil, err
	}
	log.Info("acquirer client ready", zap.String("mode", cfg.Acquirer.Mode))
	return client, nil
}
