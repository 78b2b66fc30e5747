package wasmengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateTo(t *testing.T) {
	assert.Equal(t, []byte("hel"), truncateTo([]byte("hello"), 3))
	assert.Equal(t, []byte("hello"), truncateTo([]byte("hello"), 10))
	assert.Equal(t, []byte{}, truncateTo([]byte("hello"), 0))
}

func TestTrimNulTail(t *testing.T) {
	assert.Equal(t, "hello", trimNulTail("hello\x00\x00\x00"))
	assert.Equal(t, "", trimNulTail("\x00\x00"))
	assert.Equal(t, "hello", trimNulTail("hello"))
}
