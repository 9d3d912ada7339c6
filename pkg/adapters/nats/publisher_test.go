package nats_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/topolab/pkg/adapters/nats"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	subject string
	payload []byte
}

// fakeServer speaks just enough of the NATS client protocol to accept
// connections and record PUB messages.
func fakeServer(t *testing.T) (url string, messages chan message) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	messages = make(chan message, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serve(conn, messages)
		}
	}()
	return "nats://" + ln.Addr().String(), messages
}

func serve(conn net.Conn, messages chan<- message) {
	defer conn.Close()
	info := `INFO {"server_id":"fake","version":"2.10.0","proto":1,"max_payload":1048576,"headers":false}` + "\r\n"
	if _, err := conn.Write([]byte(info)); err != nil {
		return
	}
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "PING":
			if _, err := conn.Write([]byte("PONG\r\n")); err != nil {
				return
			}
		case strings.HasPrefix(line, "PUB "):
			fields := strings.Fields(line)
			size, _ := strconv.Atoi(fields[len(fields)-1])
			payload := make([]byte, size+2)
			if _, err := io.ReadFull(r, payload); err != nil {
				return
			}
			messages <- message{subject: fields[1], payload: payload[:size]}
		}
	}
}

func TestSubject(t *testing.T) {
	ev := domain.NewEvent(domain.ActionNodeStarted, "p1", nil)
	assert.Equal(t, "topolab.p1.node.started", nats.Subject(ev))
}

func TestPublisher_PublishesJSONPerProjectSubject(t *testing.T) {
	url, messages := fakeServer(t)
	pub, err := nats.NewPublisher(url, nil)
	require.NoError(t, err)
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ev := domain.NewEvent(domain.ActionLinkCreated, "p7", map[string]any{"link_id": "l1"})
	require.NoError(t, pub.Publish(ctx, ev))
	require.NoError(t, pub.Flush(ctx))

	select {
	case msg := <-messages:
		assert.Equal(t, "topolab.p7.link.created", msg.subject)
		var got domain.Event
		require.NoError(t, json.Unmarshal(msg.payload, &got))
		assert.Equal(t, domain.ActionLinkCreated, got.Action)
		assert.Equal(t, "p7", got.ProjectID)
	case <-ctx.Done():
		t.Fatal("message never reached the server")
	}
}

func TestNewPublisher_UnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = nats.NewPublisher("nats://"+addr, nil)
	assert.ErrorIs(t, err, domain.ErrConnection)
}
