package main

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
	"github.com/nvme-mi/nvme-mi-go/pkg/sim"
)

const simulationInterval = 5 * time.Second

// runSimulation drifts the composite temperature and wears the drive until
// ctx is done, raising the matching change flags in the controller status.
func runSimulation(ctx context.Context, target *sim.Endpoint, cfg sim.Config, logger *slog.Logger) {
	ticker := time.NewTicker(simulationInterval)
	defer ticker.Stop()

	health := cfg.Health
	smart := cfg.SMART
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		health = step(health, rand.IntN(5)-2)
		smart.TemperatureKelvin = uint16(int(health.CompositeTemperature) + 273)
		smart.PercentUsed = health.PercentDriveLifeUsed
		smart.PowerOnHours++

		target.SetHealth(health)
		target.SetLog(nvme.LogSMART, smart.Encode())
		logger.Debug("simulated health", "status", health.String())
	}
}

// step moves the temperature by delta degrees within 20..85 C and sets the
// change flags the move implies.
func step(h nvme.SubsystemHealthStatus, delta int) nvme.SubsystemHealthStatus {
	temp := min(max(int(h.CompositeTemperature)+delta, 20), 85)
	if uint8(temp) != h.CompositeTemperature {
		h.CompositeTemperature = uint8(temp)
		h.ControllerStatus |= nvme.CCSTemperatureChanged
	}
	if temp >= 80 {
		h.SMARTWarnings &^= 0x02
		h.ControllerStatus |= nvme.CCSCriticalWarning
	} else {
		h.SMARTWarnings |= 0x02
	}
	return h
}
