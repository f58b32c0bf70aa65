package session

import (
	"context"

	"github.com/go-go-golems/turnweaver/pkg/config"
	"github.com/go-go-golems/turnweaver/pkg/stream"
)

// CoordinatorBuilder builds the coordinator that renders one turn of a session.
//
// The builder is responsible for wiring the renderer, the indicator host and the
// settings. identity reports the session the turn belongs to.
type CoordinatorBuilder interface {
	Build(ctx context.Context, identity stream.SessionIdentity) (*stream.Coordinator, error)
}

// CoordinatorBuilderFunc adapts a function to CoordinatorBuilder.
type CoordinatorBuilderFunc func(ctx context.Context, identity stream.SessionIdentity) (*stream.Coordinator, error)

func (f CoordinatorBuilderFunc) Build(ctx context.Context, identity stream.SessionIdentity) (*stream.Coordinator, error) {
	return f(ctx, identity)
}

// NewRendererBuilder builds coordinators drawing to renderer. When the renderer is
// also an indicator host, it displays the indicator as well.
func NewRendererBuilder(renderer stream.Renderer, settings *config.Settings, options ...stream.CoordinatorOption) CoordinatorBuilder {
	return CoordinatorBuilderFunc(func(ctx context.Context, identity stream.SessionIdentity) (*stream.Coordinator, error) {
		opts := []stream.CoordinatorOption{stream.WithSessionIdentity(identity)}
		if host, ok := renderer.(stream.IndicatorHost); ok {
			opts = append(opts, stream.WithIndicatorHost(host))
		}
		opts = append(opts, options...)
		return stream.NewCoordinator(renderer, settings, opts...)
	})
}
