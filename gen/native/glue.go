package native

import (
	"strings"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/model"
)

// text writes a multi-line template at the current indentation. The
// placeholder RT names the prelude namespace.
func (g *generator) text(tmpl string) {
	tmpl = strings.ReplaceAll(tmpl, "RT::", "::"+g.prefix+"::")
	for _, l := range strings.Split(strings.Trim(tmpl, "\n"), "\n") {
		if l == "" {
			g.w.Line("")
			continue
		}
		g.w.Line("%s", l)
	}
}

func (g *generator) forward() {
	w := g.w
	w.Blank()
	for _, it := range g.r.Module.Items {
		switch v := it.(type) {
		case *model.SharedStruct:
			w.Line("struct %s;", ident(v.Name))
		case *model.OpaqueType:
			w.Line("struct %s;", ident(v.Name))
		case *model.Enum:
			w.Line("enum class %s : %s;", ident(v.Name), v.EffectiveRepr().NativeName())
		}
	}

	fams := g.families()
	if len(fams) == 0 {
		return
	}
	w.Blank()
	w.Line("namespace detail {")
	w.Line("template <typename H>")
	w.Line("struct Glue;")
	w.Line("} // namespace detail")

	for _, k := range []abi.ContainerKind{abi.DynString, abi.DynSequence, abi.Optional, abi.OwningUnique, abi.OwningShared} {
		if !hasFamily(fams, k) {
			continue
		}
		w.Blank()
		switch k {
		case abi.DynString:
			g.text(stringClass)
		case abi.DynSequence:
			g.text(vecClass)
		case abi.Optional:
			g.text(optionClass)
		case abi.OwningUnique:
			g.text(uniqueClass)
		case abi.OwningShared:
			g.text(sharedClass)
		}
	}
}

func hasFamily(fams []abi.ContainerKind, k abi.ContainerKind) bool {
	for _, f := range fams {
		if f == k {
			return true
		}
	}
	return false
}

// rawRepr is the prelude type holding the handle of family k.
func (g *generator) rawRepr(k abi.ContainerKind) string {
	switch k {
	case abi.OwningUnique:
		return g.rt("RawUnique")
	case abi.OwningShared:
		return g.rt("RawShared")
	case abi.DynString, abi.DynSequence:
		return g.rt("RawVec")
	default:
		return "void"
	}
}

type opSig struct {
	ret    string
	params []param
}

// opSignature returns the type-erased signature of op in family k.
func (g *generator) opSignature(k abi.ContainerKind, op abi.Op) opSig {
	r := g.rawRepr(k)
	self := param{"const " + r + " *", "self"}
	mut := param{r + " *", "self"}
	out := param{r + " *", "out"}

	switch op {
	case abi.OpNew:
		if k.Indirect() {
			return opSig{"void", []param{out, {"void *", "value"}}}
		}
		return opSig{"void", []param{out}}
	case abi.OpFromRawParts:
		return opSig{"void", []param{out, {"const void *", "ptr"}, {"std::size_t", "len"}}}
	case abi.OpLen:
		return opSig{"std::size_t", []param{self}}
	case abi.OpGet:
		if k.Indirect() {
			return opSig{"void *", []param{self}}
		}
		return opSig{"const void *", []param{self, {"std::size_t", "index"}}}
	case abi.OpPush:
		return opSig{"void", []param{mut, {"void *", "value"}}}
	case abi.OpRelease:
		return opSig{"void *", []param{mut}}
	case abi.OpClone:
		return opSig{"void", []param{self, out}}
	case abi.OpDrop:
		return opSig{"void", []param{mut}}
	}
	g.fail("unknown container operation %q", op)
	return opSig{ret: "void"}
}

func opMember(op abi.Op) string {
	if op == abi.OpNew {
		return "create"
	}
	return string(op)
}

func names(ps []param) string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.name
	}
	return strings.Join(out, ", ")
}

func (g *generator) declareOp(sym string, sig opSig) string {
	return "extern \"C\" " + declarator(sig.ret, sym) + "(" + joinParams(sig.params) + ") noexcept;"
}

// declarator joins a return type and a name the way clang-format would.
func declarator(ret, name string) string {
	if strings.HasSuffix(ret, "*") {
		return ret + name
	}
	return ret + " " + name
}

// glue renders the raw operation declarations of every instantiation and
// binds them to the handle classes.
func (g *generator) glue() {
	ins := g.glues()
	if len(ins) == 0 {
		return
	}
	w := g.w
	w.Blank()
	w.Line("// Container glue.")
	for _, in := range ins {
		for _, s := range in.Symbols {
			w.Line("%s", g.declareOp(s.Name, g.opSignature(in.Kind, s.Op)))
		}
	}

	w.Blank()
	w.Line("namespace detail {")
	for _, in := range ins {
		w.Blank()
		w.Line("template <>")
		w.Block("struct Glue<"+g.handle(in.c)+"> {", "};", func() {
			for _, s := range in.Symbols {
				sig := g.opSignature(in.Kind, s.Op)
				body := s.Name + "(" + names(sig.params) + ");"
				if sig.ret != "void" {
					body = "return " + body
				}
				w.Line("static %s(%s) noexcept { %s }", declarator(sig.ret, opMember(s.Op)), joinParams(sig.params), body)
			}
		})
	}
	w.Blank()
	w.Line("} // namespace detail")

	if _, ok := g.stringGlue(); ok {
		w.Blank()
		g.text(stringMembers)
	}
	if g.fallible() {
		w.Blank()
		g.text(outcomeHelpers)
	}
}

func (g *generator) stringGlue() (abi.Glue, bool) {
	return g.r.Glue(model.Container{Kind: abi.DynString})
}

// nativeOps defines the operations of an instantiation the native side
// implements: owning handles of native-origin opaque types.
func (g *generator) nativeOps(in instance) {
	o, ok := in.c.Elem.(model.OpaqueRef)
	if !ok || !in.Kind.Indirect() {
		g.fail("instantiation %s cannot be implemented natively", in.Key())
		return
	}
	w := g.w
	name := ident(o.Name)
	deleter := g.r.Mangler.Deleter(o.Name)
	release := "release_" + in.Key()

	if in.Kind == abi.OwningShared {
		w.Blank()
		w.Block("static void "+release+"(void *ctrl) noexcept {", "}", func() {
			w.Line("auto *block = static_cast<%s *>(ctrl);", g.rt("ControlBlock"))
			w.Line("delete static_cast<%s *>(block->ptr);", name)
			w.Line("delete block;")
		})
	}

	for _, s := range in.Symbols {
		sig := g.opSignature(in.Kind, s.Op)
		w.Blank()
		w.Block("extern \"C\" "+declarator(sig.ret, s.Name)+"("+joinParams(sig.params)+") noexcept {", "}", func() {
			g.nativeOpBody(in.Kind, s.Op, deleter, release)
		})
	}
}

func (g *generator) nativeOpBody(k abi.ContainerKind, op abi.Op, deleter, release string) {
	w := g.w
	switch {
	case op == abi.OpNew && k == abi.OwningUnique:
		w.Line("out->ptr = value;")
		w.Line("out->drop = &%s;", deleter)
	case op == abi.OpNew:
		w.Line("auto *ctrl = new %s;", g.rt("ControlBlock"))
		w.Line("ctrl->count.store(1, std::memory_order_relaxed);")
		w.Line("ctrl->drop = &%s;", release)
		w.Line("ctrl->ptr = value;")
		w.Line("out->ptr = value;")
		w.Line("out->ctrl = ctrl;")
	case op == abi.OpGet:
		w.Line("return self->ptr;")
	case op == abi.OpRelease:
		w.Line("void *ptr = self->ptr;")
		w.Line("self->ptr = nullptr;")
		w.Line("return ptr;")
	case op == abi.OpClone:
		w.Block("if (self->ctrl != nullptr) {", "}", func() {
			w.Line("self->ctrl->count.fetch_add(1, std::memory_order_relaxed);")
		})
		w.Line("*out = *self;")
	case op == abi.OpDrop && k == abi.OwningUnique:
		w.Block("if (self->ptr != nullptr) {", "}", func() {
			w.Line("self->drop(self->ptr);")
		})
		w.Line("self->ptr = nullptr;")
	case op == abi.OpDrop:
		w.Block("if (self->ctrl != nullptr && self->ctrl->count.fetch_sub(1, std::memory_order_acq_rel) == 1) {", "}", func() {
			w.Line("self->ctrl->drop(self->ctrl);")
		})
		w.Line("self->ptr = nullptr;")
		w.Line("self->ctrl = nullptr;")
	default:
		g.fail("%s has no native %s operation", k, op)
	}
}

const stringClass = `
class String final {
 public:
  String() noexcept;
  String(const char *s);
  String(const char *s, std::size_t len);
  String(const std::string &s) : String(s.data(), s.size()) {}
  explicit String(RT::RawVec raw) noexcept : raw_(raw) {}
  String(String &&other) noexcept : raw_(other.raw_) { other.raw_ = RT::RawVec{nullptr, 0, 0}; }
  String &operator=(String &&other) noexcept;
  String(const String &) = delete;
  String &operator=(const String &) = delete;
  ~String();

  std::size_t size() const noexcept { return raw_.len; }
  bool empty() const noexcept { return raw_.len == 0; }
  const char *data() const noexcept { return static_cast<const char *>(raw_.ptr); }
  std::string str() const { return empty() ? std::string() : std::string(data(), size()); }
  explicit operator std::string() const { return str(); }

  RT::RawVec into_raw() noexcept {
    RT::RawVec raw = raw_;
    raw_ = RT::RawVec{nullptr, 0, 0};
    return raw;
  }

 private:
  RT::RawVec raw_;
};
`

const stringMembers = `
inline String::String() noexcept { detail::Glue<String>::create(&raw_); }
inline String::String(const char *s) : String(s, std::strlen(s)) {}
inline String::String(const char *s, std::size_t len) { detail::Glue<String>::from_raw_parts(&raw_, s, len); }
inline String::~String() { detail::Glue<String>::drop(&raw_); }

inline String &String::operator=(String &&other) noexcept {
  if (this != &other) {
    detail::Glue<String>::drop(&raw_);
    raw_ = other.raw_;
    other.raw_ = RT::RawVec{nullptr, 0, 0};
  }
  return *this;
}
`

const outcomeHelpers = `
namespace detail {
inline RT::Outcome ok() noexcept { return RT::Outcome{0, RT::RawVec{nullptr, 0, 0}}; }

inline RT::Outcome fail(const char *msg) noexcept {
  String text(msg);
  return RT::Outcome{1, text.into_raw()};
}

inline void check(RT::Outcome &out) {
  if (out.tag != 0) {
    String msg(out.msg);
    throw RT::Error(msg.str());
  }
}
} // namespace detail
`

const vecClass = `
template <typename T>
class Vec final {
 public:
  Vec() noexcept { detail::Glue<Vec>::create(&raw_); }
  Vec(Vec &&other) noexcept : raw_(other.raw_) { other.raw_ = RT::RawVec{nullptr, 0, 0}; }
  Vec &operator=(Vec &&other) noexcept {
    if (this != &other) {
      detail::Glue<Vec>::drop(&raw_);
      raw_ = other.raw_;
      other.raw_ = RT::RawVec{nullptr, 0, 0};
    }
    return *this;
  }
  Vec(const Vec &) = delete;
  Vec &operator=(const Vec &) = delete;
  ~Vec() { detail::Glue<Vec>::drop(&raw_); }

  std::size_t size() const noexcept { return raw_.len; }
  bool empty() const noexcept { return raw_.len == 0; }
  const T *data() const noexcept { return static_cast<const T *>(raw_.ptr); }
  const T &operator[](std::size_t i) const noexcept { return data()[i]; }
  const T *begin() const noexcept { return data(); }
  const T *end() const noexcept { return data() + size(); }

  void push_back(T value) {
    RT::Slot<T> slot(std::move(value));
    detail::Glue<Vec>::push(&raw_, slot.get());
  }

 private:
  RT::RawVec raw_;
};
`

const optionClass = `
template <typename T>
class Option final {
 public:
  Option() noexcept : present_(0) {}
  Option(T value) : present_(1) { new (&value_) T(std::move(value)); }
  Option(Option &&other) noexcept : present_(other.present_) {
    if (present_ != 0) {
      new (&value_) T(std::move(other.value_));
      other.reset();
    }
  }
  Option &operator=(Option &&other) noexcept {
    if (this != &other) {
      reset();
      if (other.present_ != 0) {
        new (&value_) T(std::move(other.value_));
        present_ = 1;
        other.reset();
      }
    }
    return *this;
  }
  Option(const Option &) = delete;
  Option &operator=(const Option &) = delete;
  ~Option() { reset(); }

  bool has_value() const noexcept { return present_ != 0; }
  explicit operator bool() const noexcept { return has_value(); }

  const T &value() const {
    if (present_ == 0) {
      throw std::logic_error("empty option");
    }
    return value_;
  }

  T &value() {
    if (present_ == 0) {
      throw std::logic_error("empty option");
    }
    return value_;
  }

  void reset() noexcept {
    if (present_ != 0) {
      value_.~T();
      present_ = 0;
    }
  }

 private:
  std::uint8_t present_;
  union {
    T value_;
  };
};
`

const uniqueClass = `
template <typename T>
class Unique final {
 public:
  Unique() noexcept : raw_{nullptr, nullptr} {}
  Unique(Unique &&other) noexcept : raw_(other.raw_) { other.raw_ = RT::RawUnique{nullptr, nullptr}; }
  Unique &operator=(Unique &&other) noexcept {
    if (this != &other) {
      reset();
      raw_ = other.raw_;
      other.raw_ = RT::RawUnique{nullptr, nullptr};
    }
    return *this;
  }
  Unique(const Unique &) = delete;
  Unique &operator=(const Unique &) = delete;
  ~Unique() { reset(); }

  // adopt takes ownership of an opaque object allocated by its own side.
  static Unique adopt(T *ptr) noexcept {
    Unique u;
    detail::Glue<Unique>::create(&u.raw_, ptr);
    return u;
  }

  template <typename... Args>
  static Unique make(Args &&...args) {
    RT::Slot<T> slot(T(std::forward<Args>(args)...));
    Unique u;
    detail::Glue<Unique>::create(&u.raw_, slot.get());
    return u;
  }

  T *get() const noexcept { return static_cast<T *>(raw_.ptr); }
  T &operator*() const noexcept { return *get(); }
  T *operator->() const noexcept { return get(); }
  explicit operator bool() const noexcept { return raw_.ptr != nullptr; }

  T *release() noexcept { return static_cast<T *>(detail::Glue<Unique>::release(&raw_)); }

  void reset() noexcept {
    if (raw_.ptr != nullptr) {
      detail::Glue<Unique>::drop(&raw_);
    }
    raw_ = RT::RawUnique{nullptr, nullptr};
  }

 private:
  RT::RawUnique raw_;
};
`

const sharedClass = `
template <typename T>
class Shared final {
 public:
  Shared() noexcept : raw_{nullptr, nullptr} {}
  Shared(const Shared &other) noexcept : raw_{nullptr, nullptr} {
    if (other.raw_.ctrl != nullptr) {
      detail::Glue<Shared>::clone(&other.raw_, &raw_);
    }
  }
  Shared(Shared &&other) noexcept : raw_(other.raw_) { other.raw_ = RT::RawShared{nullptr, nullptr}; }
  Shared &operator=(Shared other) noexcept {
    std::swap(raw_, other.raw_);
    return *this;
  }
  ~Shared() { reset(); }

  static Shared adopt(T *ptr) noexcept {
    Shared s;
    detail::Glue<Shared>::create(&s.raw_, ptr);
    return s;
  }

  template <typename... Args>
  static Shared make(Args &&...args) {
    RT::Slot<T> slot(T(std::forward<Args>(args)...));
    Shared s;
    detail::Glue<Shared>::create(&s.raw_, slot.get());
    return s;
  }

  T *get() const noexcept { return static_cast<T *>(raw_.ptr); }
  T &operator*() const noexcept { return *get(); }
  T *operator->() const noexcept { return get(); }
  explicit operator bool() const noexcept { return raw_.ptr != nullptr; }

  std::uint64_t use_count() const noexcept {
    return raw_.ctrl == nullptr ? 0 : raw_.ctrl->count.load(std::memory_order_acquire);
  }

  void reset() noexcept {
    if (raw_.ctrl != nullptr) {
      detail::Glue<Shared>::drop(&raw_);
    }
    raw_ = RT::RawShared{nullptr, nullptr};
  }

 private:
  RT::RawShared raw_;
};
`
