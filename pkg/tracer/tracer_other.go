//go:build !linux

package tracer

// Tracer is a stub on platforms without ptrace syscall tracing.
type Tracer struct{}

func New(Mediator, Options) *Tracer { return &Tracer{} }

func (t *Tracer) Run([]string) (int, error) { return 0, ErrUnsupportedPlatform }
