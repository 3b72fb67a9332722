package core

import "context"

// Renderer produces the domain-specific, on-disk configuration text consumed
// by the simulation binaries. The core treats its output as opaque bytes. It
// is invoked once per unit, before execution, with the unit's directory
// already created.
type Renderer interface {
	Render(ctx context.Context, entry *ConfigEntry, dir string) error
}

// RendererFunc adapts a plain function to the Renderer interface.
type RendererFunc func(ctx context.Context, entry *ConfigEntry, dir string) error

// Render implements the Renderer interface.
func (f RendererFunc) Render(ctx context.Context, entry *ConfigEntry, dir string) error {
	return f(ctx, entry, dir)
}
