package backend

import (
	"bufio"
	"bytes"
	"runtime"
	"strconv"
	"strings"
)

// currentGoroutineID returns the id of the calling goroutine, read from the
// "goroutine N [status]:" header of its own stack dump.
func currentGoroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	id, _ := parseGoroutineHeader(string(buf))
	return id
}

// parseGoroutineHeader parses a "goroutine N [status]:" line.
func parseGoroutineHeader(line string) (uint64, bool) {
	rest, ok := strings.CutPrefix(line, "goroutine ")
	if !ok {
		return 0, false
	}
	end := strings.IndexByte(rest, ' ')
	if end < 0 {
		return 0, false
	}
	id, err := strconv.ParseUint(rest[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// allGoroutineStacks returns the text stack dump of every goroutine.
func allGoroutineStacks() []byte {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}

// goroutineFrames extracts the stack of goroutine id from a runtime.Stack dump
// and returns at most depth innermost frames, root first. It returns nil when
// the goroutine is not in the dump.
func goroutineFrames(dump []byte, id uint64, depth int) []string {
	scanner := bufio.NewScanner(bytes.NewReader(dump))
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var (
		inTarget bool
		frames   []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		if !inTarget {
			if gid, ok := parseGoroutineHeader(line); ok && gid == id {
				inTarget = true
			}
			continue
		}
		if line == "" || strings.HasPrefix(line, "created by ") {
			break
		}
		if strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "...") {
			continue
		}
		frames = append(frames, functionName(line))
	}

	if depth > 0 && len(frames) > depth {
		frames = frames[:depth]
	}
	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
	return frames
}

// functionName strips the argument list from a stack dump call line:
// "main.(*T).Run(0xc000010000, 0x2)" -> "main.(*T).Run".
func functionName(line string) string {
	if !strings.HasSuffix(line, ")") {
		return line
	}
	if idx := strings.LastIndexByte(line, '('); idx > 0 {
		return line[:idx]
	}
	return line
}
