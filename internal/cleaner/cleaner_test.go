package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t\n\r  ", ""},
		{"already clean", "hello world", "hello world"},
		{"collapses spaces", "hello    world", "hello world"},
		{"collapses mixed runs", "a\t\tb\n\nc\r\nd", "a b c d"},
		{"trims edges", "  padded text  \n", "padded text"},
		{"page breaks", "end of page\n\n\nstart of page", "end of page start of page"},
		{"keeps unicode", "señal  única", "señal única"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Clean(tc.in))
		})
	}
}

func TestCleanIdempotent(t *testing.T) {
	in := "  one\ttwo\n three  "
	once := Clean(in)
	assert.Equal(t, once, Clean(once))
}
