package config

import (
	"fmt"
	"strings"
	"time"

	"ChannelBoard/internal/host"
)

func mapConfig(path string, dto yamlConfig) (Config, error) {
	cfg := Default()

	cfg.WorkdirRoot = strings.TrimSpace(dto.WorkdirRoot)
	if dto.OverlayOpacity != nil {
		if *dto.OverlayOpacity < 0 || *dto.OverlayOpacity > 255 {
			return Config{}, invalidField(path, "overlay_opacity", "must be within 0..255")
		}
		cfg.OverlayOpacity = uint8(*dto.OverlayOpacity)
	}

	if dto.Settle.Attempts != nil {
		if *dto.Settle.Attempts < 1 {
			return Config{}, invalidField(path, "settle.attempts", "must be at least 1")
		}
		cfg.Settle.Attempts = *dto.Settle.Attempts
	}
	if dto.Settle.Backoff != "" {
		d, err := parseDuration(dto.Settle.Backoff)
		if err != nil {
			return Config{}, invalidField(path, "settle.backoff", err.Error())
		}
		cfg.Settle.Backoff = d
	}

	if dto.Binarize.Passes != nil {
		if len(dto.Binarize.Passes) == 0 {
			return Config{}, invalidField(path, "binarize.passes", "at least one pass is required")
		}
		cfg.Binarize.Passes = make([]host.LevelsCurve, 0, len(dto.Binarize.Passes))
		for i, p := range dto.Binarize.Passes {
			c := mapCurve(p.Alpha)
			if err := c.Validate(); err != nil {
				return Config{}, invalidField(path, fmt.Sprintf("binarize.passes[%d].alpha", i), err.Error())
			}
			cfg.Binarize.Passes = append(cfg.Binarize.Passes, c)
		}
	}

	cfg.Service.Address = strings.TrimSpace(dto.Service.Address)
	if dto.Service.DiscoverTimeout != "" {
		d, err := parseDuration(dto.Service.DiscoverTimeout)
		if err != nil {
			return Config{}, invalidField(path, "service.discover_timeout", err.Error())
		}
		cfg.Service.DiscoverTimeout = d
	}

	if dir := strings.TrimSpace(dto.Log.Dir); dir != "" {
		cfg.Log.Dir = dir
	}
	cfg.Log.Debug = dto.Log.Debug

	return cfg, nil
}

// mapCurve fills unset fields from a steep default curve.
func mapCurve(y yamlCurve) host.LevelsCurve {
	c := host.LevelsCurve{InBlack: 0, InWhite: 1, Gamma: 10, OutBlack: 0, OutWhite: 1}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.InBlack, y.InBlack)
	set(&c.InWhite, y.InWhite)
	set(&c.Gamma, y.Gamma)
	set(&c.OutBlack, y.OutBlack)
	set(&c.OutWhite, y.OutWhite)
	return c
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %s is negative", d)
	}
	return d, nil
}

func invalidField(path, field, msg string) error {
	return &FieldError{Path: path, Field: field, Msg: msg}
}
