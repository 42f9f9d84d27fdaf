package resolve

import (
	"go.uber.org/zap"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
	"github.com/wippyai/bridgegen/model"
)

// Options configures a resolution run.
type Options struct {
	Target abi.Target
	// Mangler builds link symbols. An empty namespace defaults to the
	// module name so two modules never export the same symbol.
	Mangler abi.Mangler
	// Layouts supplies opaque type layouts measured by their side of
	// origin. May be nil.
	Layouts abi.LayoutSource
}

type resolver struct {
	opts Options
	idx  *model.Index
	errs error

	// containers holds every container reference seen, by canonical key.
	containers map[string]model.Container
	structs    map[string]abi.StructLayout
	failed     map[string]bool
	opaque     map[string]abi.Layout
}

// Resolve resolves and validates m. On failure the returned error combines
// every diagnostic found; use errors.All to list them.
func Resolve(m *model.Module, opts Options) (*model.Resolved, error) {
	if m == nil {
		return nil, errors.InvalidInput(errors.PhaseResolve, "nil module")
	}
	if len(opts.Mangler.Namespace) == 0 {
		opts.Mangler.Namespace = []string{m.Name}
	}

	r := &resolver{
		opts:       opts,
		idx:        model.NewIndex(m),
		containers: make(map[string]model.Container),
		structs:    make(map[string]abi.StructLayout),
		failed:     make(map[string]bool),
		opaque:     make(map[string]abi.Layout),
	}

	out := &model.Module{Name: m.Name, Items: make([]model.Item, 0, len(m.Items))}
	for _, it := range m.Items {
		if res := r.item(it); res != nil {
			out.Items = append(out.Items, res)
		}
	}

	idx := model.NewIndex(out)
	r.idx = idx
	r.layoutStructs(out)
	insts := r.instantiate()

	if r.errs != nil {
		n := len(errors.All(r.errs))
		Logger().Debug("resolution failed", zap.String("module", m.Name), zap.Int("errors", n))
		return nil, r.errs
	}

	Logger().Debug("resolved module",
		zap.String("module", m.Name),
		zap.Int("items", len(out.Items)),
		zap.Int("types", idx.Len()),
		zap.Int("instantiations", len(insts)))

	return &model.Resolved{
		Module:         out,
		Index:          idx,
		Target:         opts.Target,
		Mangler:        opts.Mangler,
		Structs:        r.structs,
		Opaque:         r.opaque,
		Instantiations: insts,
	}, nil
}

func (r *resolver) fail(err *errors.Error) {
	r.errs = errors.Append(r.errs, err)
}

func (r *resolver) item(it model.Item) model.Item {
	switch v := it.(type) {
	case *model.OpaqueType:
		r.opaqueLayout(v)
		cp := *v
		return &cp
	case *model.SharedStruct:
		s := &model.SharedStruct{Name: v.Name, Location: v.Location, Fields: make([]model.Field, len(v.Fields))}
		for i, f := range v.Fields {
			t, _ := r.resolve(f.Type, use{pos: posField, loc: f.Location, path: []string{v.Name, f.Name}})
			s.Fields[i] = model.Field{Name: f.Name, Type: t, Location: f.Location}
		}
		return s
	case *model.Enum:
		cp := *v
		cp.Variants = append([]model.Variant(nil), v.Variants...)
		return &cp
	case *model.ExternBlock:
		b := &model.ExternBlock{Side: v.Side, Location: v.Location, Includes: append([]string(nil), v.Includes...)}
		for _, fn := range v.Functions {
			b.Functions = append(b.Functions, r.function(fn))
		}
		return b
	default:
		r.fail(errors.Internal(errors.PhaseResolve, "unknown item %T", it))
		return nil
	}
}

func (r *resolver) opaqueLayout(o *model.OpaqueType) {
	if r.opts.Layouts == nil {
		return
	}
	l, ok := r.opts.Layouts.OpaqueLayout(o.Name)
	if !ok {
		return
	}
	if err := l.Validate(); err != nil {
		r.fail(errors.New(errors.PhaseResolve, errors.KindInvalidLayout).
			At(o.Location).Path(o.Name).Cause(err).Detail("supplied layout of %q is unusable", o.Name).Build())
		return
	}
	r.opaque[o.Name] = l
}

func (r *resolver) function(fn *model.Function) *model.Function {
	out := &model.Function{
		Name:     fn.Name,
		Fallible: fn.Fallible,
		Location: fn.Location,
		Params:   make([]model.Param, len(fn.Params)),
	}
	for i, p := range fn.Params {
		t, _ := r.resolve(p.Type, use{pos: posParam, loc: p.Location, path: []string{fn.Name, p.Name}})
		out.Params[i] = model.Param{Name: p.Name, Type: t, Mode: p.Mode, Location: p.Location}
	}
	if fn.Return != nil {
		out.Return, _ = r.resolve(fn.Return, use{
			pos:      posReturn,
			loc:      fn.Location,
			path:     []string{fn.Name, "return"},
			fallible: fn.Fallible,
		})
	}
	if fn.Fallible {
		// The failure message travels as a string.
		r.register(model.Container{Kind: abi.DynString})
	}
	r.checkSignature(out)
	return out
}
