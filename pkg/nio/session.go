package nio

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aretw0/topolab/internal/logging"
)

// ControlChannel is the command/acknowledgment link to one backend session.
type ControlChannel interface {
	// Send issues one command line and blocks until the backend acknowledges or rejects it.
	// Rejections are reported as a domain error of kind BackendCommand.
	Send(ctx context.Context, command string) ([]string, error)
}

// Allocator hands out NIO identifiers for one backend session, one sequence per variant.
//
// It has no locking: all allocation for a session must happen on a single flow,
// because the order of commands on the session decides the identifiers.
type Allocator struct {
	next map[Kind]int
}

// NewAllocator creates an allocator starting every sequence at 0.
func NewAllocator() *Allocator {
	return &Allocator{next: make(map[Kind]int)}
}

// Peek returns the identifier the next NIO of kind k will get.
func (a *Allocator) Peek(k Kind) int {
	return a.next[k]
}

func (a *Allocator) commit(k Kind) {
	a.next[k]++
}

// Session binds a control channel to its allocator.
type Session struct {
	ID      string
	Channel ControlChannel
	Alloc   *Allocator
	Logger  *slog.Logger
}

// NewSession creates a session with a fresh allocator.
func NewSession(id string, ch ControlChannel) *Session {
	return &Session{ID: id, Channel: ch, Alloc: NewAllocator(), Logger: logging.NewNop()}
}

// create sends one construction command. The identifier is only consumed once
// the backend acknowledged, so a rejected command leaves the sequence untouched.
func (s *Session) create(ctx context.Context, k Kind, args ...string) (base, error) {
	b := base{id: s.Alloc.Peek(k), kind: k, session: s.ID}
	command := "nio " + createVerb(k) + " " + b.Name()
	for _, arg := range args {
		command += " " + arg
	}

	if _, err := s.Channel.Send(ctx, command); err != nil {
		return base{}, err
	}
	s.Alloc.commit(k)

	s.logger().Info("NIO created", "session", s.ID, "nio", b.Name(), "args", args)
	return b, nil
}

func (s *Session) logger() *slog.Logger {
	if s.Logger == nil {
		return logging.NewNop()
	}
	return s.Logger
}

func createVerb(k Kind) string {
	switch k {
	case KindNull:
		return "create_null"
	case KindUDP:
		return "create_udp"
	case KindTAP:
		return "create_tap"
	case KindEthernet:
		return "create_gen_eth"
	case KindVDE:
		return "create_vde"
	case KindMulticast:
		return "create_mcast"
	case KindUnix:
		return "create_unix"
	default:
		panic(fmt.Sprintf("nio: unknown kind %d", int(k)))
	}
}

// CreateNull creates a NIO that drops every frame.
func CreateNull(ctx context.Context, s *Session) (*Null, error) {
	b, err := s.create(ctx, KindNull)
	if err != nil {
		return nil, err
	}
	return &Null{base: b}, nil
}

// CreateUDP creates a UDP tunnel endpoint.
func CreateUDP(ctx context.Context, s *Session, lport int, rhost string, rport int) (*UDP, error) {
	b, err := s.create(ctx, KindUDP, strconv.Itoa(lport), rhost, strconv.Itoa(rport))
	if err != nil {
		return nil, err
	}
	return &UDP{base: b, lport: lport, rhost: rhost, rport: rport}, nil
}

// CreateTAP attaches to a TAP device.
func CreateTAP(ctx context.Context, s *Session, device string) (*TAP, error) {
	b, err := s.create(ctx, KindTAP, device)
	if err != nil {
		return nil, err
	}
	return &TAP{base: b, device: device}, nil
}

// CreateEthernet attaches to a generic Ethernet interface.
func CreateEthernet(ctx context.Context, s *Session, device string) (*Ethernet, error) {
	b, err := s.create(ctx, KindEthernet, device)
	if err != nil {
		return nil, err
	}
	return &Ethernet{base: b, device: device}, nil
}

// CreateVDE attaches to a VDE switch (Unix hosts only).
func CreateVDE(ctx context.Context, s *Session, controlFile, localFile string) (*VDE, error) {
	b, err := s.create(ctx, KindVDE, controlFile, localFile)
	if err != nil {
		return nil, err
	}
	return &VDE{base: b, controlFile: controlFile, localFile: localFile}, nil
}

// CreateMulticast joins a multicast group.
func CreateMulticast(ctx context.Context, s *Session, group string, port int) (*Multicast, error) {
	b, err := s.create(ctx, KindMulticast, group, strconv.Itoa(port))
	if err != nil {
		return nil, err
	}
	return &Multicast{base: b, group: group, port: port}, nil
}

// CreateUnix creates a unix datagram socket pair endpoint.
func CreateUnix(ctx context.Context, s *Session, localFile, remoteFile string) (*Unix, error) {
	b, err := s.create(ctx, KindUnix, localFile, remoteFile)
	if err != nil {
		return nil, err
	}
	return &Unix{base: b, local: localFile, remote: remoteFile}, nil
}

// Delete tears the NIO down on its session.
func Delete(ctx context.Context, s *Session, n NIO) error {
	if n.Session() != s.ID {
		return fmt.Errorf("nio %s belongs to session %q, not %q", n.Name(), n.Session(), s.ID)
	}
	if _, err := s.Channel.Send(ctx, "nio delete "+n.Name()); err != nil {
		return err
	}
	s.logger().Info("NIO deleted", "session", s.ID, "nio", n.Name())
	return nil
}
