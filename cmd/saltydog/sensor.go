package main

import (
	"fmt"
	"log/slog"
	"time"

	"saltydog/pkg/config"
	"saltydog/pkg/sensor"
	"saltydog/pkg/sensor/mock"
	"saltydog/pkg/sensor/replay"
)

// initSensor builds the configured positioning sensor.
func initSensor(cfg *config.SensorConfig) (sensor.Source, error) {
	switch cfg.Provider {
	case "mock":
		m := cfg.Mock
		slog.Info("Using simulated sensor", "lat", m.StartLat, "lon", m.StartLon, "authorization", m.Authorization)
		return mock.NewSource(mock.Config{
			StartLat:        m.StartLat,
			StartLon:        m.StartLon,
			StartAlt:        m.StartAlt,
			StartHeading:    m.StartHeading,
			Interval:        time.Duration(m.Interval),
			DurationParked:  time.Duration(m.DurationParked),
			DurationWalking: time.Duration(m.DurationWalking),
			DurationDriving: time.Duration(m.DurationDriving),
			WalkingSpeed:    float64(m.WalkingSpeed),
			DrivingSpeed:    float64(m.DrivingSpeed),
			PositionNoise:   float64(m.PositionNoise),
			BadFixRate:      m.BadFixRate,
			ErrorRate:       m.ErrorRate,
			Grant:           m.Authorization != "deny",
			AuthDelay:       time.Duration(m.AuthDelay),
			Seed:            m.Seed,
		}), nil

	case "replay":
		slog.Info("Replaying recorded track", "file", cfg.Replay.File, "rate", cfg.Replay.Rate, "loop", cfg.Replay.Loop)
		src, err := replay.Open(replay.Config{
			File: cfg.Replay.File,
			Rate: cfg.Replay.Rate,
			Loop: cfg.Replay.Loop,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("unknown sensor provider %q", cfg.Provider)
}
