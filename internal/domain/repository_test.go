package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage_Normalize(t *testing.T) {
	assert.Equal(t, Page{Limit: DefaultLimit}, Page{}.Normalize())
	assert.Equal(t, Page{Limit: MaxLimit, Offset: 10}, Page{Limit: 10_000, Offset: 10}.Normalize())
	assert.Equal(t, Page{Limit: 5}, Page{Limit: 5, Offset: -3}.Normalize())
}

func TestHookRegistry_RunsInOrderAndStopsOnError(t *testing.T) {
	r := NewHookRegistry[string]()
	var calls []string
	boom := errors.New("boom")

	r.On(AfterDelete, func(_ context.Context, s string) error {
		calls = append(calls, "first:"+s)
		return nil
	})
	r.On(AfterDelete, func(_ context.Context, s string) error {
		calls = append(calls, "second:"+s)
		return boom
	})
	r.On(AfterDelete, func(_ context.Context, s string) error {
		calls = append(calls, "third:"+s)
		return nil
	})

	err := r.Run(context.Background(), AfterDelete, "x")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first:x", "second:x"}, calls)

	assert.NoError(t, r.Run(context.Background(), AfterCreate, "y"))
}
