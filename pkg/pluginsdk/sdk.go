// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

// Package pluginsdk provides the SDK for building Magnum dynamic plugins.
//
// Dynamic plugins are standalone executables that communicate with the host
// manager via net/rpc using the HashiCorp go-plugin framework. A plugin
// binary declares its metadata next to itself in a plugin.yaml manifest and
// serves a Provider that the host dispenses after the handshake.
//
// Example usage:
//
//	package main
//
//	import "github.com/ddway2/magnum/pkg/pluginsdk"
//
//	type echoInstance struct{}
//
//	func (echoInstance) Invoke(op string, payload []byte) ([]byte, error) {
//		return payload, nil
//	}
//
//	func (echoInstance) Close() error { return nil }
//
//	func main() {
//		pluginsdk.Serve(&pluginsdk.ServeConfig{
//			Provider: pluginsdk.NewProvider(
//				pluginsdk.Manifest{
//					Name:      "echo-importer",
//					Interface: "magnum.importer/1.0",
//					Version:   "1.0.0",
//				},
//				func() (pluginsdk.Handler, error) { return echoInstance{}, nil },
//			),
//		})
//	}
package pluginsdk

import (
	"net/rpc"

	hashiplug "github.com/hashicorp/go-plugin"
)

// Manifest is the plugin's self-description sent to the host after the
// handshake. The host cross-checks it against the plugin.yaml descriptor
// it scanned; a mismatch aborts the load.
type Manifest struct {
	// Name of the plugin, unique within a plugin directory.
	Name string
	// Interface tag the plugin implements (e.g. "magnum.importer/1.0").
	Interface string
	// Version is the plugin's semantic version.
	Version string
	// Dependencies lists plugin names that must be loaded first.
	Dependencies []string
}

// Provider is the wire contract every dynamic plugin binary serves.
//
// Instances are identified by opaque IDs so that a single plugin process
// can serve multiple live instances concurrently. The host never
// interprets ops or payloads; the abstract capability surfaces (importer,
// font, converter) are layered on top of Invoke by the embedding
// application.
type Provider interface {
	// Describe returns the plugin's manifest.
	Describe() (Manifest, error)

	// NewInstance creates a new plugin instance and returns its ID.
	NewInstance() (uint64, error)

	// Invoke calls an operation on an instance.
	Invoke(id uint64, op string, payload []byte) ([]byte, error)

	// DisposeInstance releases an instance.
	DisposeInstance(id uint64) error
}

// HandshakeConfig is the go-plugin handshake configuration.
// Host and plugins must use identical values.
var HandshakeConfig = hashiplug.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "MAGNUM_PLUGIN",
	MagicCookieValue: "magnum-v1",
}

// DispenseName is the key under which the provider is registered with
// go-plugin on both sides of the connection.
const DispenseName = "provider"

// PluginMap returns the go-plugin plugin map served by a plugin binary.
// The host uses PluginMap(nil) since only the client end is exercised.
func PluginMap(p Provider) map[string]hashiplug.Plugin {
	return map[string]hashiplug.Plugin{
		DispenseName: &providerPlugin{impl: p},
	}
}

// ServeConfig configures the plugin server.
type ServeConfig struct {
	// Provider is the plugin implementation. Required; Serve panics if nil.
	Provider Provider
}

// Serve starts the plugin server. It should be called from main() of a
// plugin binary; it blocks and never returns under normal operation.
func Serve(config *ServeConfig) {
	if config == nil {
		panic("pluginsdk: config cannot be nil")
	}
	if config.Provider == nil {
		panic("pluginsdk: config.Provider cannot be nil")
	}
	hashiplug.Serve(&hashiplug.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginMap(config.Provider),
	})
}

// providerPlugin adapts a Provider to go-plugin's net/rpc protocol.
type providerPlugin struct {
	impl Provider
}

// Server returns the RPC server for the plugin process side.
func (p *providerPlugin) Server(*hashiplug.MuxBroker) (any, error) {
	return &providerServer{impl: p.impl}, nil
}

// Client returns the host-side proxy implementing Provider.
func (p *providerPlugin) Client(_ *hashiplug.MuxBroker, c *rpc.Client) (any, error) {
	return &providerClient{client: c}, nil
}
