package bridgegen

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/config"
	"github.com/wippyai/bridgegen/errors"
	"github.com/wippyai/bridgegen/gen/managed"
	"github.com/wippyai/bridgegen/gen/native"
	"github.com/wippyai/bridgegen/model"
	"github.com/wippyai/bridgegen/normalize"
	"github.com/wippyai/bridgegen/resolve"
	"github.com/wippyai/bridgegen/surface"
	"github.com/wippyai/bridgegen/witimport"
)

// Options configures a generation run.
type Options struct {
	// Config selects the ABI version, namespace, target, and primitive set.
	// Nil uses config.Default().
	Config *config.Config
	// Layouts supplies opaque type layouts measured by their side of origin.
	// They take precedence over layouts in Config. May be nil.
	Layouts abi.LayoutSource
}

// Artifacts is the generated pair.
type Artifacts struct {
	// Native is the C++ header.
	Native string
	// Managed is the Rust module.
	Managed string
	// Model is the resolved model both artifacts were generated from.
	Model *model.Resolved
}

// layouts consults each source in turn.
type layouts []abi.LayoutSource

func (ls layouts) OpaqueLayout(name string) (abi.Layout, bool) {
	for _, s := range ls {
		if s == nil {
			continue
		}
		if l, ok := s.OpaqueLayout(name); ok {
			return l, true
		}
	}
	return abi.Layout{}, false
}

// Generate compiles f into both artifacts. On failure it returns no
// artifacts and an error combining every diagnostic; use errors.All to list
// them.
func Generate(ctx context.Context, f *surface.File, opts Options) (*Artifacts, error) {
	if f == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "nil surface")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := Logger().With(zap.String("file", f.Name))

	log.Debug("normalizing", zap.Int("items", len(f.Items)))
	m, err := normalize.Normalize(f, cfg)
	if err != nil {
		return nil, failed(log, errors.PhaseNormalize, err)
	}

	log.Debug("resolving", zap.String("module", m.Name), zap.Int("items", len(m.Items)))
	r, err := resolve.Resolve(m, resolve.Options{
		Target:  cfg.Target(),
		Mangler: cfg.Mangler(),
		Layouts: layouts{opts.Layouts, cfg},
	})
	if err != nil {
		return nil, failed(log, errors.PhaseResolve, err)
	}

	art := &Artifacts{Model: r}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		out, err := native.Generate(r)
		art.Native = out
		return err
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		out, err := managed.Generate(r)
		art.Managed = out
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, failed(log, errors.PhaseGenerate, err)
	}

	log.Debug("generated",
		zap.String("module", m.Name),
		zap.Int("instantiations", len(r.Instantiations)),
		zap.Int("native_bytes", len(art.Native)),
		zap.Int("managed_bytes", len(art.Managed)))
	return art, nil
}

func failed(log *zap.Logger, phase errors.Phase, err error) error {
	log.Warn("generation failed",
		zap.String("phase", string(phase)),
		zap.Int("diagnostics", len(errors.All(err))))
	return err
}

// GenerateFile loads the YAML declaration at path and compiles it.
func GenerateFile(ctx context.Context, path string, opts Options) (*Artifacts, error) {
	f, err := surface.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Generate(ctx, f, opts)
}

// GenerateWIT imports WIT definitions and compiles them.
func GenerateWIT(ctx context.Context, iface witimport.Interface, opts Options) (*Artifacts, error) {
	f, err := witimport.Import(iface)
	if err != nil {
		return nil, err
	}
	return Generate(ctx, f, opts)
}
