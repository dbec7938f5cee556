package lifecycle

import (
	"context"
	"errors"
	"testing"

	kratoslog "github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordHook(name string, priority int, calls *[]string, startErr error) Hook {
	return Hook{
		Name:     name,
		Priority: priority,
		OnStart: func(context.Context) error {
			*calls = append(*calls, "start:"+name)
			return startErr
		},
		OnStop: func(context.Context) error {
			*calls = append(*calls, "stop:"+name)
			return nil
		},
	}
}

func TestLifecycle_OrderAndReverseStop(t *testing.T) {
	var calls []string
	lm := NewLifecycleManager(kratoslog.DefaultLogger)
	lm.AddHook(recordHook("server", 200, &calls, nil))
	lm.AddHook(recordHook("db", 10, &calls, nil))
	lm.AddHook(recordHook("repair", 100, &calls, nil))

	require.NoError(t, lm.Start())
	require.NoError(t, lm.Stop())

	assert.Equal(t, []string{
		"start:db", "start:repair", "start:server",
		"stop:server", "stop:repair", "stop:db",
	}, calls)
	assert.Error(t, lm.Context().Err())

	select {
	case <-lm.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestLifecycle_StartFailureRollsBack(t *testing.T) {
	var calls []string
	lm := NewLifecycleManager(kratoslog.DefaultLogger)
	lm.AddHook(recordHook("db", 10, &calls, nil))
	lm.AddHook(recordHook("kafka", 20, &calls, errors.New("boom")))
	lm.AddHook(recordHook("server", 200, &calls, nil))

	err := lm.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka")

	assert.Equal(t, []string{"start:db", "start:kafka", "stop:db"}, calls)
}

func TestLifecycle_StopIdempotent(t *testing.T) {
	var calls []string
	lm := NewLifecycleManager(kratoslog.DefaultLogger)
	lm.AddHook(recordHook("db", 10, &calls, nil))
	require.NoError(t, lm.Start())

	require.NoError(t, lm.Stop())
	require.NoError(t, lm.Stop())
	assert.Equal(t, []string{"start:db", "stop:db"}, calls)
}
