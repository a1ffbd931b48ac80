// Package dialguard holds the checks a session must pass before a call is placed.
package dialguard

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/interview"
)

// Guard represents a single pre-dial check.
type Guard interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Check(ctx context.Context, s *interview.Session) error
}

// Status represents runtime information about a guard.
type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type statusProvider interface {
	Status() Status
}

// Config contains the settings consumed by the default guards.
type Config struct {
	AllowedNumbers []string `mapstructure:"allowed-numbers"`
	DoNotCallFile  string   `mapstructure:"do-not-call-file"`
}

// Defaults builds the standard guard chain.
func Defaults(cfg Config) []Guard {
	return []Guard{
		NewQuestions(),
		NewE164(),
		NewAllowList(cfg.AllowedNumbers),
		NewDoNotCall(cfg.DoNotCallFile),
	}
}

// DisableByName marks a guard with the provided name as disabled while keeping it in the list.
func DisableByName(guards []Guard, name, reason string) {
	for _, g := range guards {
		if g.Name() == name {
			g.Disable(reason)
		}
	}
}

// Run executes the guards in order and stops on the first refusal.
// Refusals are wrapped with interview.ErrProviderRejected so callers treat
// them like a provider rejecting the call.
func Run(ctx context.Context, logger *zap.Logger, guards []Guard, s *interview.Session) error {
	for _, g := range guards {
		if !g.IsEnabled() {
			if logger != nil {
				logger.Debug("dial guard disabled", zap.String("name", g.Name()))
			}
			continue
		}

		if err := g.Check(ctx, s); err != nil {
			if logger != nil {
				logger.Warn("dial refused by guard",
					zap.String("name", g.Name()),
					zap.String("session_id", s.ID),
					zap.Error(err),
				)
			}
			return fmt.Errorf("%w: %s: %w", interview.ErrProviderRejected, g.Name(), err)
		}
	}
	return nil
}

// Describe returns status entries for the provided guards.
func Describe(guards []Guard) []Status {
	statuses := make([]Status, 0, len(guards))
	for _, g := range guards {
		if reporter, ok := g.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    g.Name(),
			Enabled: g.IsEnabled(),
		})
	}
	return statuses
}

// toggle carries the enable state shared by all guards.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }
