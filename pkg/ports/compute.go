package ports

import (
	"context"
)

// Response is what a compute answered to one call.
type Response struct {
	Status int    // HTTP status code
	Body   any    // Decoded JSON body; nil when the body was empty
	Raw    []byte // Undecoded body
}

// JSON returns the decoded body as an object, or nil if it is not one.
func (r *Response) JSON() map[string]any {
	if r == nil {
		return nil
	}
	m, _ := r.Body.(map[string]any)
	return m
}

// WireMarshaler is implemented by domain objects that own a canonical wire form.
// The compute proxy serializes WireBody() instead of the object itself.
type WireMarshaler interface {
	WireBody() any
}

// ComputeClient is the contract the topology core needs from a compute agent proxy.
// Every remote effect on a node or link goes through it.
type ComputeClient interface {
	// ID returns the unique compute identifier.
	ID() string

	// Host returns the address other computes use to reach this agent.
	Host() string

	// Call issues one request. Conflicts, rejections and unreachable agents are
	// reported as *domain.Error of the matching Kind.
	Call(ctx context.Context, method, path string, body any) (*Response, error)
}
