package nio_test

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/nio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHypervisor answers each command line with the scripted reply for its verb.
func fakeHypervisor(t *testing.T, replies map[string]string) (addr string, received chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	received = make(chan string, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSpace(line)
			received <- line
			fields := strings.Fields(line)
			reply, ok := replies[fields[0]+" "+fields[1]]
			if !ok {
				reply = "100-OK\r\n"
			}
			if _, err := conn.Write([]byte(reply)); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String(), received
}

func TestHypervisor_AckAndReject(t *testing.T) {
	addr, received := fakeHypervisor(t, map[string]string{
		"nio create_vde":     "100-NIO 'nio_vde0' created\r\n",
		"nio create_tap":     "209-unable to open TAP device\r\n",
		"hypervisor version": "100-0.2.16\r\n",
	})

	hv := nio.NewHypervisor(addr)
	defer hv.Close()
	sess := nio.NewSession("hv1", hv)
	ctx := context.Background()

	n, err := nio.CreateVDE(ctx, sess, "/tmp/ctl", "/tmp/local")
	require.NoError(t, err)
	assert.Equal(t, "nio_vde0", n.Name())
	assert.Equal(t, "nio create_vde nio_vde0 /tmp/ctl /tmp/local", <-received)

	_, err = nio.CreateTAP(ctx, sess, "tap9")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBackendCommand)
	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 209, derr.Status)
	assert.Equal(t, "unable to open TAP device", derr.Message)
	<-received

	lines, err := hv.Send(ctx, "hypervisor version")
	require.NoError(t, err)
	assert.Equal(t, []string{"0.2.16"}, lines)
}

func TestHypervisor_MultiLineReply(t *testing.T) {
	addr, _ := fakeHypervisor(t, map[string]string{
		"nio list": "101 nio_vde0\r\n101 nio_udp0\r\n100-OK\r\n",
	})
	hv := nio.NewHypervisor(addr)
	defer hv.Close()

	lines, err := hv.Send(context.Background(), "nio list")
	require.NoError(t, err)
	assert.Equal(t, []string{"nio_vde0", "nio_udp0", "OK"}, lines)
}

func TestHypervisor_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = nio.NewHypervisor(addr).Send(context.Background(), "hypervisor version")
	assert.ErrorIs(t, err, domain.ErrConnection)
}

func TestHypervisor_RejectsMultiLineCommand(t *testing.T) {
	_, err := nio.NewHypervisor("127.0.0.1:1").Send(context.Background(), "nio delete a\nnio delete b")
	assert.Error(t, err)
}
