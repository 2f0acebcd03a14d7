package notifier

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"okx-stoch-sentry/pkg/types"
)

// startFakeRedis 解析RESP命令并对每条命令回复 :1
func startFakeRedis(t *testing.T) (string, <-chan []string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	commands := make(chan []string, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				r := bufio.NewReader(conn)
				for {
					args, err := readCommand(r)
					if err != nil {
						return
					}
					commands <- args
					_, _ = conn.Write([]byte(":1\r\n"))
				}
			}(conn)
		}
	}()

	return ln.Addr().String(), commands
}

func readCommand(r *bufio.Reader) ([]string, error) {
	header, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(header, "*") {
		return nil, fmt.Errorf("unexpected header %q", header)
	}
	n, err := strconv.Atoi(strings.TrimSpace(header[1:]))
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(line[1:]))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func TestRedisTransport_Publishes(t *testing.T) {
	addr, commands := startFakeRedis(t)

	transport, err := NewRedisTransport(types.RedisConfig{URL: "redis://" + addr, Channel: "alerts"})
	require.NoError(t, err)
	defer transport.Shutdown()

	d, _ := newTestDispatcher(transport, AsyncOptions())
	require.True(t, d.Send(context.Background(), "subject", "<div>A 1h</div>", []string{"a@example.com"}))

	select {
	case args := <-commands:
		require.Len(t, args, 3)
		assert.Equal(t, "publish", strings.ToLower(args[0]))
		assert.Equal(t, "alerts", args[1])

		var payload redisPayload
		require.NoError(t, json.Unmarshal([]byte(args[2]), &payload))
		assert.Equal(t, "subject", payload.Subject)
		assert.Equal(t, "<div>A 1h</div>", payload.Body)
		assert.True(t, payload.HTML)
		assert.Equal(t, []string{"a@example.com"}, payload.Recipients)
	case <-time.After(5 * time.Second):
		t.Fatal("no PUBLISH received")
	}
}

func TestRedisTransport_DefaultChannel(t *testing.T) {
	transport, err := NewRedisTransport(types.RedisConfig{URL: "redis://127.0.0.1:6379/2"})
	require.NoError(t, err)
	defer transport.Shutdown()

	assert.Equal(t, "okx:stoch:alerts", transport.channel)
	assert.Equal(t, 2, transport.client.Options().DB)
}

func TestRedisTransport_InvalidURL(t *testing.T) {
	_, err := NewRedisTransport(types.RedisConfig{URL: "http://not-redis"})
	assert.Error(t, err)
}
