package syscalls

import (
	"unicode/utf8"

	"github.com/jingkaihe/whatif/internal/errx"
)

// ArgKind is the semantic type of one syscall argument. It tells the tracer
// how to fetch the raw value (plain register word vs. string read out of the
// tracee's memory) and the decoder how to interpret it.
type ArgKind int

const (
	ArgPath ArgKind = iota // null-terminated string in tracee memory
	ArgFD                  // file descriptor
	ArgDirFD               // directory descriptor of the *at variants
	ArgFlags               // bit-flag integer
	ArgMode                // mode_t bits
	ArgUID                 // uid_t, -1 means unchanged
	ArgGID                 // gid_t, -1 means unchanged
	ArgSize                // byte count
	ArgOffset              // file offset
	ArgPointer             // opaque address, never dereferenced
	ArgInt                 // plain integer
)

// IsString reports whether the tracer must dereference this argument from
// the traced process's memory.
func (k ArgKind) IsString() bool { return k == ArgPath }

// ArgSpec pairs a semantic kind with the parameter name from the syscall's
// calling convention. Order within a signature is significant.
type ArgSpec struct {
	Kind ArgKind
	Name string
}

// Raw is one argument as delivered by the tracer: the register word, plus
// the dereferenced string when the signature declares a string kind.
type Raw struct {
	Word  uint64
	Str   string
	IsStr bool
}

// Word wraps a plain register value.
func Word(v uint64) Raw { return Raw{Word: v} }

// Str wraps a string read out of the tracee's memory.
func Str(s string) Raw { return Raw{Str: s, IsStr: true} }

type value struct {
	spec ArgSpec
	str  string
	num  int64
}

// Args is an ordered tuple of decoded argument values, scoped to a single
// intercepted call.
type Args []value

// Str returns the string value of argument i.
func (a Args) Str(i int) string { return a[i].str }

// Int returns the numeric value of argument i.
func (a Args) Int(i int) int64 { return a[i].num }

// FD returns argument i as a file descriptor.
func (a Args) FD(i int) int { return int(a[i].num) }

// Flags returns argument i as a flag set.
func (a Args) Flags(i int) int { return int(a[i].num) }

// Mode returns argument i as mode bits.
func (a Args) Mode(i int) uint32 { return uint32(a[i].num) }

// Decode checks raw values against the spec's signature and produces the
// typed argument tuple. A mismatch is a decoding error: the tracer must
// abort mediation of the call rather than guess.
func Decode(spec Spec, raw []Raw) (Args, error) {
	if len(raw) != len(spec.Args) {
		return nil, errx.With(ErrBadArity, ": %s takes %d arguments, got %d",
			spec.Name, len(spec.Args), len(raw))
	}

	args := make(Args, len(raw))
	for i, as := range spec.Args {
		v := value{spec: as}
		switch {
		case as.Kind.IsString():
			if !raw[i].IsStr {
				return nil, errx.With(ErrBadArgument, ": %s argument %q requires a string", spec.Name, as.Name)
			}
			if !utf8.ValidString(raw[i].Str) {
				return nil, errx.With(ErrBadArgument, ": %s argument %q is not valid UTF-8", spec.Name, as.Name)
			}
			v.str = raw[i].Str
		case as.Kind == ArgFD || as.Kind == ArgDirFD || as.Kind == ArgUID ||
			as.Kind == ArgGID || as.Kind == ArgFlags || as.Kind == ArgInt:
			// Narrow types arrive zero-extended in a 64-bit register word.
			// Sign-extend from 32 bits so -1 sentinels survive.
			if raw[i].IsStr {
				return nil, errx.With(ErrBadArgument, ": %s argument %q requires an integer", spec.Name, as.Name)
			}
			v.num = int64(int32(uint32(raw[i].Word)))
		case as.Kind == ArgSize:
			if raw[i].IsStr {
				return nil, errx.With(ErrBadArgument, ": %s argument %q requires an integer", spec.Name, as.Name)
			}
			// A size is unsigned; a word that would read as negative is
			// garbage and must not flow into descriptions or forged
			// return values.
			if int64(raw[i].Word) < 0 {
				return nil, errx.With(ErrBadArgument, ": %s argument %q is negative", spec.Name, as.Name)
			}
			v.num = int64(raw[i].Word)
		default:
			if raw[i].IsStr {
				return nil, errx.With(ErrBadArgument, ": %s argument %q requires an integer", spec.Name, as.Name)
			}
			v.num = int64(raw[i].Word)
		}
		args[i] = v
	}
	return args, nil
}
