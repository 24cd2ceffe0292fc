package cli

import (
	"fmt"

	"github.com/lumen-app/lumen/internal/app/progression"
	"github.com/lumen-app/lumen/internal/daemon"
	"github.com/lumen-app/lumen/internal/infra/sqlite"
)

// openService opens the local database and wires the progression engine.
// The caller must Close the returned DB.
func openService() (*sqlite.DB, *progression.Service, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	dataDir := cfg.Data.Dir
	if dataDir == "" {
		dataDir = daemon.LumenHome()
	}
	db, err := sqlite.Open(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	return db, progression.NewServiceWithPolicy(db, cfg.Notifications.Policy()), nil
}

// bar renders a simple progress bar, e.g. "████░░░░░░".
func bar(current, target, width int) string {
	if target <= 0 {
		target = 1
	}
	filled := current * width / target
	if filled > width {
		filled = width
	}
	out := ""
	for i := 0; i < width; i++ {
		if i < filled {
			out += "█"
		} else {
			out += "░"
		}
	}
	return out
}
