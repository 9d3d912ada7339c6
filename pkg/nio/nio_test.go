package nio_test

import (
	"context"
	"testing"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/nio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingChannel acknowledges every command unless reject is set.
type recordingChannel struct {
	commands []string
	reject   bool
}

func (c *recordingChannel) Send(ctx context.Context, command string) ([]string, error) {
	c.commands = append(c.commands, command)
	if c.reject {
		return nil, domain.BackendCommandError(command, 206, "unable to create NIO")
	}
	return []string{"OK"}, nil
}

func TestCreateVDE(t *testing.T) {
	ch := &recordingChannel{}
	sess := nio.NewSession("hv1", ch)

	n, err := nio.CreateVDE(context.Background(), sess, "/tmp/vde.ctl", "/tmp/vde.local")
	require.NoError(t, err)

	assert.Equal(t, []string{"nio create_vde nio_vde0 /tmp/vde.ctl /tmp/vde.local"}, ch.commands)
	assert.Equal(t, 0, n.ID())
	assert.Equal(t, "nio_vde0", n.Name())
	assert.Equal(t, nio.KindVDE, n.Kind())
	assert.Equal(t, "hv1", n.Session())
	assert.Equal(t, "/tmp/vde.ctl", n.ControlFile())
	assert.Equal(t, "/tmp/vde.local", n.LocalFile())
}

func TestCreate_CommandPerVariant(t *testing.T) {
	ch := &recordingChannel{}
	sess := nio.NewSession("hv1", ch)
	ctx := context.Background()

	_, err := nio.CreateNull(ctx, sess)
	require.NoError(t, err)
	udp, err := nio.CreateUDP(ctx, sess, 10000, "192.168.1.2", 10001)
	require.NoError(t, err)
	_, err = nio.CreateTAP(ctx, sess, "tap0")
	require.NoError(t, err)
	_, err = nio.CreateEthernet(ctx, sess, "eth0")
	require.NoError(t, err)
	_, err = nio.CreateMulticast(ctx, sess, "224.0.0.1", 5000)
	require.NoError(t, err)
	_, err = nio.CreateUnix(ctx, sess, "/tmp/a.sock", "/tmp/b.sock")
	require.NoError(t, err)
	udp2, err := nio.CreateUDP(ctx, sess, 10002, "192.168.1.2", 10003)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"nio create_null nio_null0",
		"nio create_udp nio_udp0 10000 192.168.1.2 10001",
		"nio create_tap nio_tap0 tap0",
		"nio create_gen_eth nio_gen_eth0 eth0",
		"nio create_mcast nio_mcast0 224.0.0.1 5000",
		"nio create_unix nio_unix0 /tmp/a.sock /tmp/b.sock",
		"nio create_udp nio_udp1 10002 192.168.1.2 10003",
	}, ch.commands)

	assert.Equal(t, map[string]any{"type": "nio_udp", "lport": 10000, "rhost": "192.168.1.2", "rport": 10001}, udp.WireBody())
	assert.Equal(t, 1, udp2.ID())
}

func TestAllocator_ScopedPerSession(t *testing.T) {
	ctx := context.Background()
	a := nio.NewSession("hv1", &recordingChannel{})
	b := nio.NewSession("hv2", &recordingChannel{})

	na, err := nio.CreateVDE(ctx, a, "c", "l")
	require.NoError(t, err)
	nb, err := nio.CreateVDE(ctx, b, "c", "l")
	require.NoError(t, err)

	// Each session starts its own sequence
	assert.Equal(t, 0, na.ID())
	assert.Equal(t, 0, nb.ID())
	assert.Equal(t, 1, a.Alloc.Peek(nio.KindVDE))
	assert.Equal(t, 0, a.Alloc.Peek(nio.KindUDP))
}

func TestCreate_RejectionDoesNotConsumeID(t *testing.T) {
	ch := &recordingChannel{reject: true}
	sess := nio.NewSession("hv1", ch)

	_, err := nio.CreateVDE(context.Background(), sess, "c", "l")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBackendCommand)
	assert.Equal(t, 0, sess.Alloc.Peek(nio.KindVDE))

	ch.reject = false
	n, err := nio.CreateVDE(context.Background(), sess, "c", "l")
	require.NoError(t, err)
	assert.Equal(t, "nio_vde0", n.Name())
}

func TestDelete(t *testing.T) {
	ch := &recordingChannel{}
	sess := nio.NewSession("hv1", ch)
	other := nio.NewSession("hv2", &recordingChannel{})

	n, err := nio.CreateTAP(context.Background(), sess, "tap1")
	require.NoError(t, err)

	assert.Error(t, nio.Delete(context.Background(), other, n))
	require.NoError(t, nio.Delete(context.Background(), sess, n))
	assert.Equal(t, "nio delete nio_tap0", ch.commands[len(ch.commands)-1])
}

func TestBindings_AreDetachedSpecs(t *testing.T) {
	specs := []nio.Spec{
		nio.NullBinding(),
		nio.UDPBinding(10001, "10.0.0.2", 20001),
		nio.TAPBinding("tap0"),
		nio.EthernetBinding("eth1"),
	}
	kinds := []nio.Kind{nio.KindNull, nio.KindUDP, nio.KindTAP, nio.KindEthernet}
	for i, s := range specs {
		assert.Equal(t, kinds[i], s.Kind())
	}

	udp := nio.UDPBinding(10001, "10.0.0.2", 20001)
	assert.Equal(t, map[string]any{"type": "nio_udp", "lport": 10001, "rhost": "10.0.0.2", "rport": 20001}, udp.WireBody())
	assert.Empty(t, udp.Session())
	assert.Equal(t, map[string]any{"type": "nio_tap", "tap_device": "tap0"}, nio.TAPBinding("tap0").WireBody())
}
