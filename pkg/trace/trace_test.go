package trace

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), "abc")
	assert.Equal(t, "abc", FromContext(ctx))
	assert.Empty(t, FromContext(context.Background()))
}

func TestFromHeader(t *testing.T) {
	assert.Equal(t, "req-1", FromHeader(" req-1 "))

	generated := FromHeader("")
	assert.Len(t, generated, 32)

	tooLong := FromHeader(strings.Repeat("x", 200))
	assert.Len(t, tooLong, 32)
}
