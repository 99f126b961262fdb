package simulator

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/paygate/internal/clock"
	"github.com/smallbiznis/paygate/internal/config"
)

const referencePrefix = "ACQ_"

// Decision is what the simulated acquirer does with one request.
type Decision struct {
	Kind      string
	Reference string
	Reason    string
	Latency   time.Duration
}

// Engine picks simulated outcomes. Forced outcomes keyed by card last four
// digits win over the random approval rate.
type Engine struct {
	settings *config.SimulatorSettingsHolder
	clock    clock.Clock

	mu  sync.Mutex
	rng *rand.Rand
}

func NewEngine(settings *config.SimulatorSettingsHolder, clk clock.Clock) *Engine {
	seed := settings.Get().Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Engine{
		settings: settings,
		clock:    clk,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (e *Engine) Decide(cardNumber string) Decision {
	s := e.settings.Get()
	d := Decision{Latency: s.Latency}

	if forced, ok := s.ForcedOutcomes[lastFour(cardNumber)]; ok {
		d.Kind = forced
	} else {
		e.mu.Lock()
		roll := e.rng.Float64()
		e.mu.Unlock()
		d.Kind = config.SimulatedDecline
		if roll < s.ApprovalRate {
			d.Kind = config.SimulatedApprove
		}
	}

	switch d.Kind {
	case config.SimulatedApprove:
		d.Reference = e.newReference()
	case config.SimulatedDecline:
		e.mu.Lock()
		d.Reason = s.DeclineReasons[e.rng.IntN(len(s.DeclineReasons))]
		e.mu.Unlock()
	}
	return d
}

func (e *Engine) newReference() string {
	id := ulid.MustNew(ulid.Timestamp(e.clock.Now()), ulid.DefaultEntropy())
	return referencePrefix + id.String()
}

func lastFour(cardNumber string) string {
	digits := make([]byte, 0, len(cardNumber))
	for i := 0; i < len(cardNumber); i++ {
		if c := cardNumber[i]; c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}
	if len(digits) <= 4 {
		return string(digits)
	}
	return string(digits[len(digits)-4:])
}
