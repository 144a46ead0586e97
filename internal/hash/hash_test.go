package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestID(t *testing.T) {
	tests := []struct {
		name string
		data string
		id   uint64
	}{
		{"empty string", "", 0xef46db3751d8e999},
		{"short string", "test", 0x4fdcca5ddb678139},
		{"channel-ish name", "this is a longer test string to hash", 0x69275f7f7ee59dbd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.id, ID(tt.data))
		})
	}
}

func TestIDIsDeterministic(t *testing.T) {
	first := ID("ASAM.M.SCALAR.UBYTE.HYPERBOLIC")
	for range 10 {
		assert.Equal(t, first, ID("ASAM.M.SCALAR.UBYTE.HYPERBOLIC"))
	}
}
