package main

import (
	"github.com/jingkaihe/whatif/pkg/api"
	"github.com/jingkaihe/whatif/pkg/fdtab"
	"github.com/jingkaihe/whatif/pkg/mediate"
	"github.com/jingkaihe/whatif/pkg/policy"
	"github.com/jingkaihe/whatif/pkg/syscalls"
	"github.com/jingkaihe/whatif/pkg/tracer"
)

// traceMediator routes every intercepted syscall through a per-pid mediation
// session and the policy engine. Operations the policy does not decide are
// blocked and collected for the rerun prompt. The tracer delivers calls
// strictly in order from a single goroutine, so no locking is needed.
type traceMediator struct {
	engine   *policy.Engine
	workDir  string
	sessions map[int]*mediate.Session

	seq    int
	events []api.Event

	// prompted holds operations blocked because no rule decided them;
	// ruleDenied holds operations a deny rule blocked outright.
	prompted   []api.Operation
	ruleDenied []api.Operation
}

func newTraceMediator(engine *policy.Engine, workDir string) *traceMediator {
	return &traceMediator{
		engine:   engine,
		workDir:  workDir,
		sessions: make(map[int]*mediate.Session),
	}
}

func (m *traceMediator) session(pid int) *mediate.Session {
	s, ok := m.sessions[pid]
	if !ok {
		s = mediate.NewSession(mediate.Options{WorkingDir: m.workDir})
		m.sessions[pid] = s
	}
	return s
}

func (m *traceMediator) Enter(pid int, name string, raw []syscalls.Raw) (tracer.Verdict, error) {
	s := m.session(pid)

	spec, args, mediated, err := s.Decode(name, raw)
	if err != nil {
		return tracer.Verdict{}, err
	}
	if !mediated {
		return tracer.Verdict{}, nil
	}

	op, err := s.Describe(spec, args)
	if err != nil {
		return tracer.Verdict{}, err
	}
	if op == nil {
		// Nothing to surface, but descriptor bookkeeping may still demand
		// a forged result: write-capable opens and dups of forged
		// descriptors must not reach the kernel with made-up values.
		if value, ok := s.Substitute(spec, args); ok {
			return tracer.Verdict{Suppress: true, Return: value}, nil
		}
		return tracer.Verdict{}, nil
	}

	action := m.engine.Decide(op)
	value, substitutable := s.Substitute(spec, args)

	if action == policy.ActionAllow {
		m.record(pid, op, api.DecisionAllow)
		if substitutable && spec.ReturnsDescriptor && fdtab.Synthetic(int(value)) {
			// The call runs for real and returns a descriptor; re-key the
			// synthetic one to the kernel's once it returns. Substitute
			// values of non-descriptor calls (byte counts, plain zeroes)
			// must never be bound.
			return tracer.Verdict{BindSynthetic: int(value)}, nil
		}
		return tracer.Verdict{}, nil
	}

	m.record(pid, op, api.DecisionDeny)
	if action == policy.ActionDeny {
		m.ruleDenied = append(m.ruleDenied, *op)
	} else {
		m.prompted = append(m.prompted, *op)
	}

	var ret int64
	if substitutable {
		ret = value
	}
	return tracer.Verdict{Suppress: true, Return: ret}, nil
}

func (m *traceMediator) Bind(pid int, synthetic, real int) {
	m.session(pid).BindDescriptor(synthetic, real)
}

func (m *traceMediator) record(pid int, op *api.Operation, decision api.Decision) {
	m.seq++
	m.events = append(m.events, api.Event{
		Seq:       m.seq,
		PID:       pid,
		Operation: *op,
		Decision:  decision,
	})
}
