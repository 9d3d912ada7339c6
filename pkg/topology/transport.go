package topology

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/nio"
	"github.com/aretw0/topolab/pkg/ports"
)

// TransportPolicy chooses how two ports on different computes are wired together.
type TransportPolicy interface {
	// Bind prepares one NIO per side. It may allocate resources on either compute.
	Bind(ctx context.Context, projectID string, a, b ports.ComputeClient) (nio.Spec, nio.Spec, error)
}

// UDPTunnel connects two computes with a pair of UDP sockets, each side sending
// to the port the other side reserved.
type UDPTunnel struct{}

var _ TransportPolicy = UDPTunnel{}

func (UDPTunnel) Bind(ctx context.Context, projectID string, a, b ports.ComputeClient) (nio.Spec, nio.Spec, error) {
	portA, err := reserveUDPPort(ctx, projectID, a)
	if err != nil {
		return nil, nil, err
	}
	portB, err := reserveUDPPort(ctx, projectID, b)
	if err != nil {
		return nil, nil, err
	}

	return nio.UDPBinding(portA, b.Host(), portB), nio.UDPBinding(portB, a.Host(), portA), nil
}

func reserveUDPPort(ctx context.Context, projectID string, c ports.ComputeClient) (int, error) {
	path := fmt.Sprintf("/projects/%s/ports/udp", projectID)
	resp, err := c.Call(ctx, http.MethodPost, path, map[string]any{})
	if err != nil {
		return 0, err
	}
	port, ok := intField(resp.JSON(), "udp_port")
	if !ok {
		return 0, domain.BackendCommandError("POST "+path, resp.Status, "reply carries no udp_port")
	}
	return port, nil
}
