package main

import (
	"iobot/internal/config"
)

const configEnv = "IOBOT_CONFIG"

func loadSettings(path, logLevel, logFormat string) (*config.Settings, error) {
	settings, err := config.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		settings.Logger.Level = logLevel
	}
	if logFormat != "" {
		settings.Logger.Format = logFormat
	}
	return settings, nil
}
