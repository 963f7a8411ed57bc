package launcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystem_Command(t *testing.T) {
	testCases := []struct {
		goos string
		name string
		args []string
	}{
		{"darwin", "open", []string{"http://127.0.0.1:5009"}},
		{"linux", "xdg-open", []string{"http://127.0.0.1:5009"}},
		{"freebsd", "xdg-open", []string{"http://127.0.0.1:5009"}},
		{"windows", "rundll32", []string{"url.dll,FileProtocolHandler", "http://127.0.0.1:5009"}},
	}
	for _, tc := range testCases {
		t.Run(tc.goos, func(t *testing.T) {
			name, args := System{GOOS: tc.goos}.Command("http://127.0.0.1:5009")
			assert.Equal(t, tc.name, name)
			assert.Equal(t, tc.args, args)
		})
	}
}

func TestSystem_Open(t *testing.T) {
	var gotName string
	var gotArgs []string
	s := System{GOOS: "linux", start: func(name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	}}

	require.NoError(t, s.Open("http://127.0.0.1:5009/screenshots"))
	assert.Equal(t, "xdg-open", gotName)
	assert.Equal(t, []string{"http://127.0.0.1:5009/screenshots"}, gotArgs)
}

func TestSystem_OpenErrors(t *testing.T) {
	boom := errors.New("executable file not found")
	s := System{GOOS: "linux", start: func(string, ...string) error { return boom }}

	assert.ErrorIs(t, s.Open("http://x"), boom)
	assert.Error(t, s.Open("  "))
}
