package streaming

import (
	"context"
	"errors"
	"io"
	"iter"

	"github.com/BaSui01/structflow/llm"
	"github.com/BaSui01/structflow/types"
)

// Source 是解码流水线的上游：按到达顺序产出文本增量，或者一个终止错误。
// 消费方 break 时 yield 返回 false，生产方必须立即停止。
type Source = iter.Seq2[string, error]

// FromStrings 依次产出给定片段。
func FromStrings(deltas ...string) Source {
	return func(yield func(string, error) bool) {
		for _, d := range deltas {
			if !yield(d, nil) {
				return
			}
		}
	}
}

// FromBytes 把 data 切成 chunkSize 字节的片段。切分点可能落在多字节字符内部。
func FromBytes(data []byte, chunkSize int) Source {
	return func(yield func(string, error) bool) {
		r := NewChunkReader(data, chunkSize)
		for {
			chunk, ok := r.Next()
			if !ok {
				return
			}
			if !yield(string(chunk), nil) {
				return
			}
		}
	}
}

// FromChunks 适配 Provider.Stream 返回的分片通道。
//
// 每个分片贡献 StreamChunk.Text()；分片携带 Err 时以 UPSTREAM_ERROR 终止。
// ctx 取消时以 CANCELLED 终止。通道关闭即正常结束。
func FromChunks(ctx context.Context, ch <-chan llm.StreamChunk) Source {
	return func(yield func(string, error) bool) {
		for {
			select {
			case <-ctx.Done():
				yield("", types.NewError(types.ErrCancelled, "stream cancelled").WithCause(ctx.Err()))
				return
			case chunk, ok := <-ch:
				if !ok {
					return
				}
				if chunk.Err != nil {
					yield("", upstreamError(chunk))
					return
				}
				text := chunk.Text()
				if text == "" {
					continue
				}
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

func upstreamError(chunk llm.StreamChunk) *types.Error {
	provider := chunk.Err.Provider
	if provider == "" {
		provider = chunk.Provider
	}
	return types.NewError(types.ErrUpstreamError, "upstream stream error: "+chunk.Err.Message).
		WithCause(chunk.Err).
		WithRetryable(chunk.Err.Retryable).
		WithProvider(provider)
}

// FromReader 以最多 chunkSize 字节为单位读取 r。读取错误（io.EOF 除外）
// 以 UPSTREAM_ERROR 终止；ctx 取消在两次读取之间检查。
func FromReader(ctx context.Context, r io.Reader, chunkSize int) Source {
	if chunkSize < 1 {
		chunkSize = 4096
	}
	return func(yield func(string, error) bool) {
		buf := make([]byte, chunkSize)
		for {
			if err := ctx.Err(); err != nil {
				yield("", types.NewError(types.ErrCancelled, "stream cancelled").WithCause(err))
				return
			}
			n, err := r.Read(buf)
			if n > 0 {
				if !yield(string(buf[:n]), nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", types.NewError(types.ErrUpstreamError, "read stream").WithCause(err))
				return
			}
		}
	}
}
