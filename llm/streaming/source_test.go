package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/structflow/llm"
	"github.com/BaSui01/structflow/types"
)

func drain(t *testing.T, src Source) ([]string, error) {
	t.Helper()
	var out []string
	for d, err := range src {
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
	return out, nil
}

func TestFromStrings(t *testing.T) {
	got, err := drain(t, FromStrings("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	// break stops the producer
	var seen []string
	for d := range FromStrings("x", "y", "z") {
		seen = append(seen, d)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"x", "y"}, seen)
}

func TestFromBytes(t *testing.T) {
	got, err := drain(t, FromBytes([]byte(`{"a":1}`), 3))
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a`, `":1`, `}`}, got)
}

func TestFromChunks(t *testing.T) {
	ch := make(chan llm.StreamChunk, 4)
	ch <- llm.StreamChunk{Delta: llm.Message{Content: `{"name":`}}
	ch <- llm.StreamChunk{FinishReason: ""}
	ch <- llm.StreamChunk{Delta: llm.Message{ToolCalls: []llm.ToolCall{{Arguments: json.RawMessage(`"Ada"}`)}}}}
	close(ch)

	got, err := drain(t, FromChunks(context.Background(), ch))
	require.NoError(t, err)
	assert.Equal(t, []string{`{"name":`, `"Ada"}`}, got)
}

func TestFromChunks_UpstreamError(t *testing.T) {
	ch := make(chan llm.StreamChunk, 2)
	ch <- llm.StreamChunk{Delta: llm.Message{Content: `{"a":`}}
	ch <- llm.StreamChunk{Provider: "mock", Err: &llm.Error{Code: llm.ErrRateLimited, Message: "slow down", Retryable: true}}
	close(ch)

	got, err := drain(t, FromChunks(context.Background(), ch))
	assert.Equal(t, []string{`{"a":`}, got)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
	assert.True(t, types.IsRetryable(err))

	var llmErr *llm.Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, llm.ErrRateLimited, llmErr.Code)

	e, _ := types.AsError(err)
	assert.Equal(t, "mock", e.Provider)
}

func TestFromChunks_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan llm.StreamChunk)
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := drain(t, FromChunks(ctx, ch))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCancelled))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromReader(t *testing.T) {
	r := iotest.OneByteReader(strings.NewReader(`[1,2]`))
	got, err := drain(t, FromReader(context.Background(), r, 8))
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", strings.Join(got, ""))
	assert.Len(t, got, 5)
}

func TestFromReader_Error(t *testing.T) {
	r := iotest.TimeoutReader(strings.NewReader("abc"))

	got, err := drain(t, FromReader(context.Background(), r, 2))
	assert.Equal(t, []string{"ab"}, got)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
	assert.ErrorIs(t, err, iotest.ErrTimeout)
}
