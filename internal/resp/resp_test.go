package resp_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/resp"
)

func TestReadCommandParsesArrayOfBulkStrings(t *testing.T) {
	r := resp.NewReader(strings.NewReader("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"))

	args, err := r.ReadCommand()
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("GET"), []byte("foo")}, args)
}

func TestReadCommandParsesInlineForm(t *testing.T) {
	r := resp.NewReader(strings.NewReader("PING\r\n"))

	args, err := r.ReadCommand()
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("PING")}, args)
}

func TestReadCommandSkipsBlankLines(t *testing.T) {
	r := resp.NewReader(strings.NewReader("\r\nPING\r\n"))

	args, err := r.ReadCommand()
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("PING")}, args)
}

func TestReadCommandRejectsBadArrayLength(t *testing.T) {
	r := resp.NewReader(strings.NewReader("*x\r\n"))

	_, err := r.ReadCommand()
	require.ErrorIs(t, err, resp.ErrProtocol)
}

func TestReadCommandRejectsNonBulkArrayElement(t *testing.T) {
	r := resp.NewReader(strings.NewReader("*1\r\n+foo\r\n"))

	_, err := r.ReadCommand()
	require.ErrorIs(t, err, resp.ErrProtocol)
}

func TestReadCommandNegativeArrayLengthIsEmptyCommand(t *testing.T) {
	r := resp.NewReader(strings.NewReader("*-1\r\n"))

	args, err := r.ReadCommand()
	require.NoError(t, err)
	require.Nil(t, args)
}

func TestWriteValueEncodesEachType(t *testing.T) {
	cases := []struct {
		name string
		v    resp.Value
		want string
	}{
		{"simple", resp.Simple("OK"), "+OK\r\n"},
		{"error", resp.Err("ERR boom"), "-ERR boom\r\n"},
		{"integer", resp.Int(42), ":42\r\n"},
		{"bulk", resp.BulkStr("hi"), "$2\r\nhi\r\n"},
		{"null bulk", resp.NullBulk(), "$-1\r\n"},
		{"null array", resp.NullArray(), "*-1\r\n"},
		{"array", resp.Array(resp.Int(1), resp.BulkStr("x")), "*2\r\n:1\r\n$1\r\nx\r\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer

			w := resp.NewWriter(&buf)
			require.NoError(t, w.WriteValue(tc.v))
			require.Equal(t, tc.want, buf.String())
		})
	}
}

func TestWriteValueFlushesWithoutExplicitFlush(t *testing.T) {
	var buf bytes.Buffer

	w := resp.NewWriter(&buf)
	require.NoError(t, w.WriteValue(resp.OK()))

	// No explicit Flush call: WriteValue must have flushed already.
	require.Equal(t, "+OK\r\n", buf.String())
}

func TestBulkOrNullDistinguishesNilFromEmpty(t *testing.T) {
	require.True(t, resp.BulkOrNull(nil).Null)

	v := resp.BulkOrNull([]byte{})
	require.False(t, v.Null)
	require.Equal(t, []byte{}, v.Bulk)
}
