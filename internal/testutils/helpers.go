package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
)

// Call is one request recorded by a FakeCompute.
type Call struct {
	Method string
	Path   string
	Body   any
}

// String renders the call as "METHOD path".
func (c Call) String() string {
	return c.Method + " " + c.Path
}

type rule struct {
	method string
	suffix string
	reply  func(body any) (*ports.Response, error)
}

// FakeCompute is an in-process ports.ComputeClient that records every call.
// Unmatched calls are answered with 200 and an empty JSON object.
type FakeCompute struct {
	id   string
	host string

	mu    sync.Mutex
	calls []Call
	rules []rule
}

var _ ports.ComputeClient = (*FakeCompute)(nil)

// NewFakeCompute creates a fake agent with the given identity.
func NewFakeCompute(id, host string) *FakeCompute {
	return &FakeCompute{id: id, host: host}
}

func (f *FakeCompute) ID() string   { return f.id }
func (f *FakeCompute) Host() string { return f.host }

// On registers a reply for calls whose method matches and whose path ends with suffix.
// Later rules win over earlier ones.
func (f *FakeCompute) On(method, suffix string, reply func(body any) (*ports.Response, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{method: method, suffix: suffix, reply: reply})
}

// Fail makes matching calls return err.
func (f *FakeCompute) Fail(method, suffix string, err error) {
	f.On(method, suffix, func(any) (*ports.Response, error) { return nil, err })
}

// Reply makes matching calls answer 200 with body.
func (f *FakeCompute) Reply(method, suffix string, body map[string]any) {
	f.On(method, suffix, func(any) (*ports.Response, error) {
		return &ports.Response{Status: 200, Body: body}, nil
	})
}

func (f *FakeCompute) Call(ctx context.Context, method, path string, body any) (*ports.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ConnectionError(method+" "+path, err)
	}
	if w, ok := body.(ports.WireMarshaler); ok {
		body = w.WireBody()
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, Path: path, Body: body})
	var match *rule
	for i := len(f.rules) - 1; i >= 0; i-- {
		if f.rules[i].method == method && strings.HasSuffix(path, f.rules[i].suffix) {
			match = &f.rules[i]
			break
		}
	}
	f.mu.Unlock()

	if match != nil {
		return match.reply(body)
	}
	return &ports.Response{Status: 200, Body: map[string]any{}}, nil
}

// Calls returns a copy of the recorded calls.
func (f *FakeCompute) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Requests returns the recorded calls as "METHOD path" strings.
func (f *FakeCompute) Requests() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Reset forgets recorded calls, keeping the rules.
func (f *FakeCompute) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
