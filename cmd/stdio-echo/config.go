package main

import (
	"encoding/json"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk configuration surface for stdio-echo, loaded
// from either JSON or YAML (by file extension) and used to override the
// flag-derived stdio.Config before Start. Grounded on server/config.go's
// parseJSONConfig, generalized to also accept YAML the way moai-adk's
// config loader does.
type fileConfig struct {
	TimeoutMs          uint64 `json:"timeout_ms" yaml:"timeout_ms"`
	IdleReadTimeoutMs  uint64 `json:"idle_read_timeout_ms" yaml:"idle_read_timeout_ms"`
	WriteTimeoutMs     uint64 `json:"write_timeout_ms" yaml:"write_timeout_ms"`
	WriteQueueMaxBytes int    `json:"write_queue_max_bytes" yaml:"write_queue_max_bytes"`
	StatsLog           string `json:"stats_log" yaml:"stats_log"`
	StatsPeriodSeconds int    `json:"stats_period_seconds" yaml:"stats_period_seconds"`
}

func parseFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	f, err := os.Open(path)
	if err != nil {
		return fc, err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		err = yaml.NewDecoder(f).Decode(&fc)
	} else {
		err = json.NewDecoder(f).Decode(&fc)
	}
	return fc, err
}
