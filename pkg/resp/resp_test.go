package resp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandSetRequest(t *testing.T) {
	raw := "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"
	args, consumed, ok := ParseCommand([]byte(raw))
	require.True(t, ok)
	assert.Equal(t, len(raw), consumed)
	assert.Equal(t, []string{"SET", "foo", "bar"}, args)
}

func TestParseCommandIncompleteReturnsNotOK(t *testing.T) {
	raw := "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nba"
	_, _, ok := ParseCommand([]byte(raw))
	assert.False(t, ok)
}

func TestParseCommandNonArrayIsMalformed(t *testing.T) {
	raw := "PING\r\n"
	args, consumed, ok := ParseCommand([]byte(raw))
	require.True(t, ok)
	assert.Empty(t, args)
	assert.Equal(t, len(raw), consumed)
}

func TestParseCommandEmptyBuffer(t *testing.T) {
	_, _, ok := ParseCommand(nil)
	assert.False(t, ok)
}

func TestParseCommandLeavesTrailingBytesUnconsumed(t *testing.T) {
	raw := "*1\r\n$4\r\nPING\r\n" + "*1\r\n$4\r\nPING\r\n"
	args, consumed, ok := ParseCommand([]byte(raw))
	require.True(t, ok)
	assert.Equal(t, []string{"PING"}, args)
	assert.Less(t, consumed, len(raw))

	args2, consumed2, ok2 := ParseCommand([]byte(raw)[consumed:])
	require.True(t, ok2)
	assert.Equal(t, []string{"PING"}, args2)
	assert.Equal(t, len(raw)-consumed, consumed2)
}

func TestEncodeReplyKinds(t *testing.T) {
	assert.Equal(t, "+OK\r\n", string(SimpleString("OK")))
	assert.Equal(t, "-ERR bad command\r\n", string(Error("bad command")))
	assert.Equal(t, ":3\r\n", string(Integer(3)))
	assert.Equal(t, "$3\r\nbar\r\n", string(BulkString("bar")))
	assert.Equal(t, "$-1\r\n", string(NullBulkString()))
}

func TestEncodeArray(t *testing.T) {
	got := Array(BulkString("maxmemory"), BulkString("100"))
	assert.Equal(t, "*2\r\n$9\r\nmaxmemory\r\n$3\r\n100\r\n", string(got))
}

func TestRoundTripRequestThenReply(t *testing.T) {
	raw := "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"
	args, _, ok := ParseCommand([]byte(raw))
	require.True(t, ok)
	require.Equal(t, []string{"GET", "foo"}, args)

	reply := BulkString("bar")
	assert.Equal(t, "$3\r\nbar\r\n", string(reply))
}
