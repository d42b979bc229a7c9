package streaming

import (
	"unsafe"
)

// DeltaBuffer 累积流式增量文本。只追加、不回收：已写入的字节永不修改，
// 因此 String 返回的零拷贝视图在后续 Append 之后依然有效。
//
// DeltaBuffer 由单个解码流独占，不做并发保护。
type DeltaBuffer struct {
	data   []byte
	deltas int
}

// NewDeltaBuffer 创建预分配 size 字节的缓冲。
func NewDeltaBuffer(size int) *DeltaBuffer {
	if size < 0 {
		size = 0
	}
	return &DeltaBuffer{data: make([]byte, 0, size)}
}

// Append 追加一个增量片段。
func (b *DeltaBuffer) Append(delta string) {
	if len(delta) == 0 {
		return
	}
	if need := len(b.data) + len(delta); need > cap(b.data) {
		// 按倍数增长，避免逐 token 重新分配
		newCap := cap(b.data) * 2
		if newCap < need {
			newCap = need
		}
		grown := make([]byte, len(b.data), newCap)
		copy(grown, b.data)
		b.data = grown
	}
	b.data = append(b.data, delta...)
	b.deltas++
}

// Write 实现 io.Writer。
func (b *DeltaBuffer) Write(p []byte) (int, error) {
	b.Append(BytesToString(p))
	return len(p), nil
}

// Bytes 返回已累积的全部字节（内部缓冲，调用方不得修改）。
func (b *DeltaBuffer) Bytes() []byte {
	return b.data[:len(b.data):len(b.data)]
}

// String 返回累积文本的零拷贝视图。
func (b *DeltaBuffer) String() string {
	return BytesToString(b.data)
}

// Len 返回已累积字节数。
func (b *DeltaBuffer) Len() int { return len(b.data) }

// Deltas 返回已追加的非空片段数。
func (b *DeltaBuffer) Deltas() int { return b.deltas }

// BytesToString 不复制便将字节转换为字符串。
// 调用方须保证 b 之后不再被修改。
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// ChunkReader 提供零拷贝块读取.
type ChunkReader struct {
	data      []byte
	chunkSize int
	pos       int
}

// NewChunkReader 创建新的块读取器。chunkSize 小于 1 时按 1 处理。
func NewChunkReader(data []byte, chunkSize int) *ChunkReader {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &ChunkReader{
		data:      data,
		chunkSize: chunkSize,
	}
}

// Next 返回下一个块（不复制）。
func (r *ChunkReader) Next() ([]byte, bool) {
	if r.pos >= len(r.data) {
		return nil, false
	}

	end := min(r.pos+r.chunkSize, len(r.data))
	chunk := r.data[r.pos:end]
	r.pos = end
	return chunk, true
}
