// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

package pluginsdk

import (
	"net/rpc"
)

// InvokeArgs carries an Invoke call over the wire.
type InvokeArgs struct {
	ID      uint64
	Op      string
	Payload []byte
}

// InvokeReply carries an Invoke result over the wire.
type InvokeReply struct {
	Payload []byte
}

// providerServer exposes a Provider over net/rpc inside the plugin process.
type providerServer struct {
	impl Provider
}

func (s *providerServer) Describe(_ struct{}, reply *Manifest) error {
	m, err := s.impl.Describe()
	if err != nil {
		return err
	}
	*reply = m
	return nil
}

func (s *providerServer) NewInstance(_ struct{}, reply *uint64) error {
	id, err := s.impl.NewInstance()
	if err != nil {
		return err
	}
	*reply = id
	return nil
}

func (s *providerServer) Invoke(args InvokeArgs, reply *InvokeReply) error {
	out, err := s.impl.Invoke(args.ID, args.Op, args.Payload)
	if err != nil {
		return err
	}
	reply.Payload = out
	return nil
}

func (s *providerServer) DisposeInstance(id uint64, _ *struct{}) error {
	return s.impl.DisposeInstance(id)
}

// providerClient is the host-side Provider proxy.
type providerClient struct {
	client *rpc.Client
}

// Compile-time interface check.
var _ Provider = (*providerClient)(nil)

func (c *providerClient) Describe() (Manifest, error) {
	var m Manifest
	if err := c.client.Call("Plugin.Describe", struct{}{}, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func (c *providerClient) NewInstance() (uint64, error) {
	var id uint64
	if err := c.client.Call("Plugin.NewInstance", struct{}{}, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func (c *providerClient) Invoke(id uint64, op string, payload []byte) ([]byte, error) {
	var reply InvokeReply
	args := InvokeArgs{ID: id, Op: op, Payload: payload}
	if err := c.client.Call("Plugin.Invoke", args, &reply); err != nil {
		return nil, err
	}
	return reply.Payload, nil
}

func (c *providerClient) DisposeInstance(id uint64) error {
	return c.client.Call("Plugin.DisposeInstance", id, &struct{}{})
}
