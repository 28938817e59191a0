// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

// Package main implements an example importer plugin that echoes data
// back through the import operation. It exists to exercise the dynamic
// loading path end to end.
//
// Build with:
//
//	go build -o echo-importer ./plugins/echo-importer
//
// and place the binary next to its plugin.yaml in a plugin directory.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/ddway2/magnum/pkg/pluginsdk"
)

// importResult is what the echo importer returns from an "import" op.
type importResult struct {
	Size int    `json:"size"`
	Data string `json:"data"`
}

type echoInstance struct{}

func (echoInstance) Invoke(op string, payload []byte) ([]byte, error) {
	switch op {
	case "import":
		return json.Marshal(importResult{Size: len(payload), Data: string(payload)})
	case "formats":
		return json.Marshal([]string{"echo"})
	default:
		return nil, fmt.Errorf("unknown op %q", op)
	}
}

func (echoInstance) Close() error { return nil }

func main() {
	pluginsdk.Serve(&pluginsdk.ServeConfig{
		Provider: pluginsdk.NewProvider(
			pluginsdk.Manifest{
				Name:      "echo-importer",
				Interface: "magnum.importer/1.0",
				Version:   "1.0.0",
			},
			func() (pluginsdk.Handler, error) { return echoInstance{}, nil },
		),
	})
}
