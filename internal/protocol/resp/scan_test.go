package resp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feed hands wire to the scanner in chunks of size bytes, the way a
// connection read loop does, and returns the first frame produced.
func feed(t *testing.T, s *Scanner, wire []byte, size int) (Frame, int) {
	t.Helper()
	for end := size; ; end += size {
		end = min(end, len(wire))
		f, n, err := s.Next(wire[:end])
		if err == nil {
			return f, n
		}
		require.ErrorIs(t, err, ErrIncomplete, "after %d bytes", end)
		require.Less(t, end, len(wire), "complete frame reported incomplete")
	}
}

func TestScanner_MatchesDecode(t *testing.T) {
	frames := []Frame{
		Command("SET", "key", "a value with spaces"),
		Array(Integer(-12), NullBulk(), NullArray(), Null(), Array(Error("ERR nested"))),
		Array(Array(Array()), Array(BulkString("x")), Integer(1)),
		BulkString(""),
		SimpleString("OK"),
		NullArray(),
		Array(),
	}

	for _, f := range frames {
		wire := Encode(f)
		for _, size := range []int{1, 3, len(wire)} {
			t.Run(fmt.Sprintf("%s/%d", f, size), func(t *testing.T) {
				got, n := feed(t, NewScanner(NewDecoder()), wire, size)
				assert.Equal(t, len(wire), n)
				assert.True(t, f.Equal(got), "got %s", got)
			})
		}
	}
}

func TestScanner_ResumesWhereItStopped(t *testing.T) {
	s := NewRequestScanner(NewDecoder())

	first := []byte("*3\r\n$3\r\nDEL\r\n$1\r\na\r\n")
	_, _, err := s.Next(first)
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, len(first), s.off, "validated prefix")
	assert.Equal(t, []int64{1}, s.open)

	full := append(first, "$1\r\nb\r\n"...)
	f, n, err := s.Next(full)
	require.NoError(t, err)
	assert.Equal(t, len(full), n)
	assert.True(t, Command("DEL", "a", "b").Equal(f))
	assert.Zero(t, s.off)
	assert.Empty(t, s.open)
}

func TestScanner_Pipelined(t *testing.T) {
	s := NewRequestScanner(NewDecoder())
	buf := []byte("*1\r\n$4\r\nPING\r\n*2\r\n$4\r\nECHO\r\n$2\r\nhi\r\n")

	f, n, err := s.Next(buf)
	require.NoError(t, err)
	assert.True(t, Command("PING").Equal(f))

	buf = buf[n:]
	f, n, err = s.Next(buf)
	require.NoError(t, err)
	assert.True(t, Command("ECHO", "hi").Equal(f))
	assert.Equal(t, len(buf), n)
}

func TestScanner_Inline(t *testing.T) {
	d := NewDecoder()
	d.AllowInline = true
	s := NewRequestScanner(d)

	_, _, err := s.Next([]byte("SET k"))
	require.ErrorIs(t, err, ErrIncomplete)

	f, n, err := s.Next([]byte("SET k v\r\nGET k\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.True(t, Command("SET", "k", "v").Equal(f))

	d.MaxLineLen = 4
	_, _, err = s.Next([]byte("GET longkey"))
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestScanner_Malformed(t *testing.T) {
	inputs := []string{
		"*2\r\n$1\r\na\r\n?x\r\n",
		"*1\r\n$3\r\nfooXY",
		"*1\r\n:x\r\n",
		"*-2\r\n",
	}

	for _, in := range inputs {
		s := NewScanner(NewDecoder())
		_, _, err := s.Next([]byte(in))
		assert.ErrorIs(t, err, ErrMalformed, "input %q", in)
		assert.Zero(t, s.off)
	}
}

func TestScanner_Limits(t *testing.T) {
	d := NewDecoder()
	d.MaxArrayLen = 2
	d.MaxDepth = 2

	for _, in := range []string{"*3\r\n", "*1\r\n*1\r\n*0\r\n"} {
		_, _, err := NewScanner(d).Next([]byte(in))
		assert.ErrorIs(t, err, ErrLimitExceeded, "input %q", in)
	}
}

// largeDel builds a DEL request with n keys.
func largeDel(n int) []byte {
	args := make([]string, n+1)
	args[0] = "DEL"
	for i := 1; i <= n; i++ {
		args[i] = fmt.Sprintf("key%08d", i)
	}
	return Encode(Command(args...))
}

func TestScanner_LargeRequestInReadSizedChunks(t *testing.T) {
	wire := largeDel(200_000)

	s := NewRequestScanner(NewDecoder())
	calls, walked := 0, 0
	for end := 16 * 1024; ; end += 16 * 1024 {
		end = min(end, len(wire))
		before := s.off
		f, n, err := s.Next(wire[:end])
		calls++
		if err == nil {
			require.Equal(t, len(wire), n)
			require.Len(t, f.Elems, 200_001)
			break
		}
		require.ErrorIs(t, err, ErrIncomplete)
		require.GreaterOrEqual(t, s.off, before)
		walked += s.off - before
	}

	// Every byte but the final chunk is validated exactly once.
	assert.LessOrEqual(t, walked, len(wire))
	assert.Equal(t, (len(wire)+16*1024-1)/(16*1024), calls)
}

func BenchmarkScanner_LargeRequest(b *testing.B) {
	wire := largeDel(100_000)
	b.SetBytes(int64(len(wire)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		s := NewRequestScanner(NewDecoder())
		for end := 16 * 1024; ; end += 16 * 1024 {
			end = min(end, len(wire))
			if _, _, err := s.Next(wire[:end]); err == nil {
				break
			}
		}
	}
}
