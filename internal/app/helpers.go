package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nine3/versions/internal/config"
	jwtpkg "github.com/nine3/versions/internal/pkg/jwt"
	"github.com/nine3/versions/internal/pkg/nativelog"
	"go.uber.org/zap"
)

// applyRuntimeSettings pushes process-wide settings before anything is built:
// log directory, editor token key and the zone page dates are shown in.
func applyRuntimeSettings(cfg *config.AppConfig, logger *zap.Logger) error {
	_ = os.Setenv(nativelog.EnvLogDir, cfg.LogDir())

	if cfg.JWTSecret == "" {
		if logger != nil {
			logger.Warn("jwt_secret is empty, editor tokens use the built-in key")
		}
	} else {
		jwtpkg.SetSecret(cfg.JWTSecret)
	}

	if cfg.Timezone == "" {
		return nil
	}
	loc, err := parseTimezoneLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	time.Local = loc
	_ = os.Setenv("TZ", cfg.Timezone)
	return nil
}

// parseTimezoneLocation accepts an IANA name or a fixed "+hh:mm" offset.
func parseTimezoneLocation(raw string) (*time.Location, error) {
	tz := strings.TrimSpace(raw)
	if tz == "" {
		return time.Local, nil
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc, nil
	}
	offset, err := time.Parse("-07:00", tz)
	if err != nil || (tz[0] != '+' && tz[0] != '-') {
		return nil, fmt.Errorf("expect IANA zone (e.g. Europe/Berlin) or UTC offset (e.g. +02:00)")
	}
	_, seconds := offset.Zone()
	return time.FixedZone(tz, seconds), nil
}
