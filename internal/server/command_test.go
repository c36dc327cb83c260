package server

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(ctx context.Context, args ...string) error {
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func TestCommand_RunsInMemoryUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- execute(ctx, "--memory", "--http-addr", "127.0.0.1:0", "--grpc-addr", "", "--log-level", "error")
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server command did not return after cancel")
	}
}

func TestCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad log level", []string{"--memory", "--log-level", "loud"}},
		{"unexpected argument", []string{"--memory", "extra"}},
		{"migrate in memory", []string{"migrate", "--memory"}},
		{"missing dsn", []string{"--database-dsn", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, execute(context.Background(), tt.args...))
		})
	}
}
