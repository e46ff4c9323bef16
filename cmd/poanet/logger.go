package main

import (
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
)

func newLogger(level string, json bool, out io.Writer) (hclog.Logger, error) {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "poanet",
		Level:      lvl,
		JSONFormat: json,
		Output:     out,
	}), nil
}
