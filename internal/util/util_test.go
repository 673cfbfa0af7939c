package util

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitLogger(t *testing.T) {
	assert.NoError(t, InitLogger("development", "debug"))
	assert.NotNil(t, GetLogger())
	assert.Error(t, InitLogger("production", "loud"))
}

func TestSpanHelpersWithoutProvider(t *testing.T) {
	tp, err := InitTracer("storefront-test", "", 1)
	assert.NoError(t, err)
	assert.Nil(t, tp)

	ctx, span := StartSpan(context.Background(), "test")
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))
}
