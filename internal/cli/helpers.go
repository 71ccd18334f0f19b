package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lockin-app/lockin/internal/app/engagement"
	"github.com/lockin-app/lockin/internal/daemon"
	"github.com/lockin-app/lockin/internal/domain"
)

// openEngine loads the config and opens the engine over the configured
// store. The returned func closes the store.
func openEngine(ctx context.Context) (*engagement.Engine, func(), error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := daemon.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	eng, err := daemon.NewEngine(cfg, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return eng, func() { store.Close() }, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBadges(badges []domain.Badge) {
	for _, b := range badges {
		fmt.Printf("  %s %s (+%d XP)\n", b.Emoji, b.Name, b.XPReward)
	}
}

func printShield(s *domain.Shield) {
	if s != nil {
		fmt.Printf("  🛡️  Shield earned for a %d-day streak\n", s.Milestone)
	}
}
