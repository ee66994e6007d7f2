package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	t.Run("stream", func(t *testing.T) {
		opts, err := parseFlags([]string{"-file", "voice.wav", "-lane", "mic", "-loops", "3"})
		require.NoError(t, err)

		assert.Equal(t, "voice.wav", opts.File)
		assert.Equal(t, "mic", opts.Lane)
		assert.Equal(t, 3, opts.Loops)
		assert.Equal(t, -1, opts.SetLane)
		assert.Equal(t, "ws://localhost:8765/mixer", opts.URL)
	})

	t.Run("volume", func(t *testing.T) {
		opts, err := parseFlags([]string{"-set-lane", "2", "-volume", "50"})
		require.NoError(t, err)

		assert.Equal(t, 2, opts.SetLane)
		assert.Equal(t, 50, opts.Volume)
	})

	t.Run("nothing to do", func(t *testing.T) {
		_, err := parseFlags(nil)
		assert.Error(t, err)
	})

	t.Run("bad loops", func(t *testing.T) {
		_, err := parseFlags([]string{"-file", "x.wav", "-loops", "0"})
		assert.Error(t, err)
	})

	t.Run("help", func(t *testing.T) {
		_, err := parseFlags([]string{"-h"})
		assert.ErrorIs(t, err, flag.ErrHelp)
	})
}
