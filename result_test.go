package evproc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timerScope struct{}

func (s *timerScope) Enter(context.Context) error { return nil }

func (s *timerScope) Exit(_ context.Context, err error) error { return err }

func TestTruthy(t *testing.T) {
	type payload struct{ ID string }
	var nilPtr *payload
	var nilScope *timerScope

	tests := map[string]struct {
		value any
		want  string
	}{
		"nil":              {nil, "stop"},
		"false":            {false, "stop"},
		"true":             {true, "continue"},
		"empty string":     {"", "stop"},
		"string":           {"abc", "continue"},
		"string false":     {"false", "continue"},
		"zero int":         {0, "stop"},
		"int":              {7, "continue"},
		"zero float":       {0.0, "stop"},
		"negative float":   {-0.5, "continue"},
		"empty slice":      {[]int{}, "stop"},
		"slice":            {[]int{1}, "continue"},
		"empty map":        {map[string]any{}, "stop"},
		"map":              {map[string]any{"a": 1}, "continue"},
		"nil pointer":      {nilPtr, "stop"},
		"pointer":          {&payload{}, "continue"},
		"zero struct":      {payload{}, "stop"},
		"struct":           {payload{ID: "1"}, "continue"},
		"result passes":    {Continue(), "continue"},
		"scope is entered": {Defer(func(context.Context) {}), "enter"},
		"nil scope stops":  {nilScope, "stop"},
		"pointer scope":    {&timerScope{}, "enter"},
		"uint":             {uint8(1), "continue"},
		"zero uint":        {uint8(0), "stop"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truthy(tt.value).String())
		})
	}
}

func TestResult(t *testing.T) {
	t.Run("zero value stops", func(t *testing.T) {
		var r Result
		assert.False(t, r.Continues())
		assert.Equal(t, "stop", r.String())
	})

	t.Run("enter carries scope and continues", func(t *testing.T) {
		sc := Defer(func(context.Context) {})
		r := Enter(sc)
		assert.True(t, r.Continues())
		assert.NotNil(t, r.Scope())
	})

	t.Run("enter nil scope continues", func(t *testing.T) {
		r := Enter(nil)
		assert.True(t, r.Continues())
		assert.Nil(t, r.Scope())
	})

	t.Run("enter typed nil scope continues without a scope", func(t *testing.T) {
		var sc *timerScope
		r := Enter(sc)
		assert.Equal(t, "continue", r.String())
		assert.Nil(t, r.Scope())
	})

	t.Run("await is unresolved", func(t *testing.T) {
		r := Await(func(context.Context) (bool, error) { return true, nil })
		assert.False(t, r.Continues())
		assert.Equal(t, "await", r.String())
	})

	t.Run("await nil stops", func(t *testing.T) {
		assert.Equal(t, "stop", Await(nil).String())
	})

	t.Run("bool", func(t *testing.T) {
		assert.True(t, Bool(true).Continues())
		assert.False(t, Bool(false).Continues())
	})
}
