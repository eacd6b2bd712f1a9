package logstream

// Buffer is the bounded transcript shown to the operator. Once full, each
// Push drops the oldest line.
type Buffer struct {
	lines    []string
	capacity int
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 100
	}
	return &Buffer{lines: make([]string, 0, capacity), capacity: capacity}
}

func (b *Buffer) Push(line string) {
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.capacity; over > 0 {
		b.lines = b.lines[over:]
	}
}

func (b *Buffer) Len() int { return len(b.lines) }

func (b *Buffer) Capacity() int { return b.capacity }

// Lines returns a copy, oldest first.
func (b *Buffer) Lines() []string {
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Tail returns up to n of the newest lines, oldest first.
func (b *Buffer) Tail(n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(b.lines) {
		n = len(b.lines)
	}
	out := make([]string, n)
	copy(out, b.lines[len(b.lines)-n:])
	return out
}

func (b *Buffer) Reset() {
	b.lines = b.lines[:0]
}
