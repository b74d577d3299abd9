package authctl

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func stubTerminal(t *testing.T, terminal bool, read func(int) ([]byte, error)) {
	t.Helper()
	oldRead, oldIs := readPassword, isTerminal
	t.Cleanup(func() { readPassword, isTerminal = oldRead, oldIs })
	isTerminal = func(int) bool { return terminal }
	if read != nil {
		readPassword = read
	}
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Equal(t, "Name?\n> ", out.String())

	got, err = GetSimpleText(rdr("lastline"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)
}

func TestGetPassword_Terminal(t *testing.T) {
	stubTerminal(t, true, func(int) ([]byte, error) { return []byte("s3cret pass"), nil })

	var out bytes.Buffer
	got, err := GetPassword(rdr(""), "Password", &out)
	require.NoError(t, err)
	assert.Equal(t, "s3cret pass", got)
	assert.Equal(t, "Password: \n", out.String())
}

func TestGetPassword_TerminalError(t *testing.T) {
	stubTerminal(t, true, func(int) ([]byte, error) { return nil, errors.New("boom") })

	var out bytes.Buffer
	_, err := GetPassword(rdr(""), "Password", &out)
	assert.Error(t, err)
}

func TestGetPassword_Piped(t *testing.T) {
	stubTerminal(t, false, nil)

	in := rdr("first one\r\nsecond")
	var out bytes.Buffer

	got, err := GetPassword(in, "Password", &out)
	require.NoError(t, err)
	assert.Equal(t, "first one", got)

	got, err = GetPassword(in, "Password", &out)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	_, err = GetPassword(in, "Password", &out)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}

func TestGetNewPassword(t *testing.T) {
	stubTerminal(t, false, nil)
	var out bytes.Buffer

	got, err := GetNewPassword(rdr("long enough pw\nlong enough pw\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "long enough pw", got)

	_, err = GetNewPassword(rdr("long enough pw\nsomething else\n"), &out)
	assert.ErrorIs(t, err, ErrPasswordMismatch)
}
