package core

import "context"

// HealthProbe checks one dependency the service cannot work without.
type HealthProbe interface {
	Name() string
	// Check must respect the context deadline.
	Check(ctx context.Context) error
}

// PingProbe adapts a ping function, such as pgxpool.Pool.Ping, to HealthProbe.
type PingProbe struct {
	Component string
	Ping      func(ctx context.Context) error
}

func (p PingProbe) Name() string { return p.Component }

func (p PingProbe) Check(ctx context.Context) error { return p.Ping(ctx) }
