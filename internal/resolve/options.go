package resolve

import (
	"io"
	"log/slog"

	"github.com/jward/lsifq/internal/uris"
)

// Options are the settings every backend accepts.
type Options struct {
	Logger        *slog.Logger
	URIs          uris.Transformer
	MaxChainDepth int
	// VersionTag selects the build version of blob databases. Empty means
	// the most recent version.
	VersionTag string
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.URIs == nil {
		o.URIs = uris.Identity{}
	}
	if o.MaxChainDepth <= 0 {
		o.MaxChainDepth = DefaultMaxChainDepth
	}
	return o
}

// EngineOptions converts o into engine options.
func (o Options) EngineOptions() []EngineOption {
	o = o.WithDefaults()
	return []EngineOption{
		WithLogger(o.Logger),
		WithTransformer(o.URIs),
		WithMaxChainDepth(o.MaxChainDepth),
	}
}
