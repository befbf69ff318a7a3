package advisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"ferret/internal/logger"
	"ferret/internal/ports"
)

var _ ports.Advisor = (*Client)(nil)

func TestDisabledWithoutAPIKey(t *testing.T) {
	c := New("", "gpt-4o-mini", logger.Nop())
	_, err := c.Summarize(context.Background(), "example.com", nil)
	assert.ErrorIs(t, err, ErrDisabled)
}
