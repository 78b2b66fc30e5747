package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandRegistersRun(t *testing.T) {
	root := newRootCommand()

	run, _, err := root.Find([]string{"run"})
	assert.NoError(t, err)
	assert.Equal(t, "run", run.Name())
}

func TestRunCommandHasRepeatableConfigFlag(t *testing.T) {
	run := newRunCommand()

	flag := run.Flags().Lookup("config")
	assert.NotNil(t, flag)
	assert.Equal(t, "stringArray", flag.Value.Type())

	level := run.Flags().Lookup("log-level")
	assert.NotNil(t, level)
	assert.Equal(t, "info", level.DefValue)
}
