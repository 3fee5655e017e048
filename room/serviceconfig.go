// room/serviceconfig.go
package room

import (
	"context"
	"errors"

	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/persistence"
)

// ServiceConfigKey is the well-known key of the live service configuration.
const ServiceConfigKey = "serviceConfig/global"

// ServiceConfig is operator-editable runtime configuration. It can raise the
// room capacity on a live service and flip maintenance mode without a deploy.
type ServiceConfig struct {
	MaxPlayersPerRoom int         `json:"maxPlayersPerRoom"`
	Maintenance       Maintenance `json:"maintenance"`
}

type Maintenance struct {
	IsMaintenance      bool   `json:"isMaintenance"`
	MaintenanceMessage string `json:"maintenanceMessage"`
}

// MaxPlayersTx reads the live room capacity inside a transaction so the value
// stays consistent with the membership write it drives. A missing or broken
// config document falls back to the configured default.
func MaxPlayersTx(tx persistence.Tx, fallback int) int {
	var cfg ServiceConfig
	err := tx.Get(ServiceConfigKey, &cfg)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			logger.Log.Warnf("serviceConfig read failed, using default capacity: %v", err)
		}
		return fallback
	}
	if cfg.MaxPlayersPerRoom <= 0 {
		return fallback
	}
	return cfg.MaxPlayersPerRoom
}

// GetMaintenance is a best-effort read used by the maintenance middleware;
// staleness is tolerable there so it runs outside any transaction.
func GetMaintenance(ctx context.Context, db persistence.DocStore) Maintenance {
	var cfg ServiceConfig
	if err := db.Get(ctx, ServiceConfigKey, &cfg); err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			logger.Log.Warnf("serviceConfig read failed, assuming no maintenance: %v", err)
		}
		return Maintenance{}
	}
	return cfg.Maintenance
}
