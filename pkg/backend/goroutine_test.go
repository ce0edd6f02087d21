package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const stackDump = `goroutine 7 [running]:
main.worker(0xc000012345)
	/src/app/main.go:40 +0x25
main.(*Server).handle(0xc0000a0000, {0x1, 0x2})
	/src/app/server.go:88 +0x6b
main.main.func1()
	/src/app/main.go:21 +0x1d
created by main.main in goroutine 1
	/src/app/main.go:19 +0x4f

goroutine 1 [chan receive]:
main.main()
	/src/app/main.go:25 +0x85
`

func TestParseGoroutineHeader(t *testing.T) {
	id, ok := parseGoroutineHeader("goroutine 42 [select]:")
	assert.True(t, ok)
	assert.Equal(t, uint64(42), id)

	_, ok = parseGoroutineHeader("main.main()")
	assert.False(t, ok)

	_, ok = parseGoroutineHeader("goroutine x [running]:")
	assert.False(t, ok)
}

func TestGoroutineFrames(t *testing.T) {
	tests := []struct {
		name  string
		id    uint64
		depth int
		want  []string
	}{
		{
			name:  "full stack root first",
			id:    7,
			depth: 200,
			want:  []string{"main.main.func1", "main.(*Server).handle", "main.worker"},
		},
		{
			name:  "depth keeps innermost frames",
			id:    7,
			depth: 2,
			want:  []string{"main.(*Server).handle", "main.worker"},
		},
		{
			name:  "last goroutine in dump",
			id:    1,
			depth: 200,
			want:  []string{"main.main"},
		},
		{
			name:  "missing goroutine",
			id:    99,
			depth: 200,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, goroutineFrames([]byte(stackDump), tt.id, tt.depth))
		})
	}
}

func TestFunctionName(t *testing.T) {
	assert.Equal(t, "main.worker", functionName("main.worker(0xc000012345)"))
	assert.Equal(t, "main.main", functionName("main.main()"))
	assert.Equal(t, "runtime.gopark", functionName("runtime.gopark"))
}

func TestCurrentGoroutineID(t *testing.T) {
	id := currentGoroutineID()
	assert.NotZero(t, id)

	frames := goroutineFrames(allGoroutineStacks(), id, 200)
	assert.NotEmpty(t, frames)
	assert.Contains(t, frames[len(frames)-1], "allGoroutineStacks")
}
