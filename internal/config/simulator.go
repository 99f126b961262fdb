package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Forced simulator outcomes, keyed by card last four digits.
const (
	SimulatedApprove   = "approve"
	SimulatedDecline   = "decline"
	SimulatedTimeout   = "timeout"
	SimulatedError     = "error"
	SimulatedMalformed = "malformed"
)

// SimulatorSettings drives the simulated acquirer.
type SimulatorSettings struct {
	ApprovalRate   float64           `mapstructure:"approvalRate"`
	Seed           uint64            `mapstructure:"seed"`
	Latency        time.Duration     `mapstructure:"latency"`
	DeclineReasons []string          `mapstructure:"declineReasons"`
	ForcedOutcomes map[string]string `mapstructure:"forcedOutcomes"`
}

func DefaultSimulatorSettings() SimulatorSettings {
	return SimulatorSettings{
		ApprovalRate: 0.8,
		DeclineReasons: []string{
			"Insufficient funds",
			"Card expired",
			"Suspected fraud",
			"Card reported lost or stolen",
			"Card issuer declined transaction",
		},
		ForcedOutcomes: map[string]string{},
	}
}

type SimulatorSettingsHolder struct {
	current atomic.Value // holds SimulatorSettings
}

// NewStaticSimulatorSettings returns a holder that never reloads.
func NewStaticSimulatorSettings(settings SimulatorSettings) *SimulatorSettingsHolder {
	holder := &SimulatorSettingsHolder{}
	holder.current.Store(settings)
	return holder
}

func NewSimulatorSettingsHolder(cfg Config, log *zap.Logger) (*SimulatorSettingsHolder, error) {
	log = log.Named("acquirer.simulator.config")
	v := viper.New()

	if path := strings.TrimSpace(cfg.Acquirer.SimulatorConfig); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("acquirer-simulator")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/paygate")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PAYGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSimulatorSettings()
	v.SetDefault("simulator.approvalRate", defaults.ApprovalRate)
	v.SetDefault("simulator.declineReasons", defaults.DeclineReasons)

	loaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		loaded = false
	}

	var settings SimulatorSettings
	if err := v.UnmarshalKey("simulator", &settings); err != nil {
		return nil, err
	}
	if err := validateSimulatorSettings(settings); err != nil {
		return nil, err
	}

	holder := NewStaticSimulatorSettings(settings)
	if !loaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SimulatorSettings
		if err := v.UnmarshalKey("simulator", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateSimulatorSettings(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *SimulatorSettingsHolder) Get() SimulatorSettings {
	return h.current.Load().(SimulatorSettings)
}

func validateSimulatorSettings(s SimulatorSettings) error {
	if s.ApprovalRate < 0 || s.ApprovalRate > 1 {
		return fmt.Errorf("simulator.approvalRate must be within [0,1], got %v", s.ApprovalRate)
	}
	if len(s.DeclineReasons) == 0 {
		return errors.New("simulator.declineReasons cannot be empty")
	}
	if s.Latency < 0 {
		return errors.New("simulator.latency cannot be negative")
	}
	for last4, outcome := range s.ForcedOutcomes {
		switch outcome {
		case SimulatedApprove, SimulatedDecline, SimulatedTimeout, SimulatedError, SimulatedMalformed:
		default:
			return fmt.Errorf("simulator.forcedOutcomes[%s]: unknown outcome %q", last4, outcome)
		}
	}
	return nil
}
