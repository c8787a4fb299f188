package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRunMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{name: "default is web", cfg: Config{}, want: RunModeWeb},
		{name: "poll flag", cfg: Config{PollRunner: true}, want: RunModePoll},
		{name: "poll once implies poll mode", cfg: Config{PollOnce: true}, want: RunModePoll},
		{name: "worker", cfg: Config{WorkerRunner: true}, want: RunModeWorker},
		{name: "lambda", cfg: Config{AwsLambdaRunner: true}, want: RunModeAwsLambda},
		{name: "lambda beats worker", cfg: Config{AwsLambdaRunner: true, WorkerRunner: true}, want: RunModeAwsLambda},
		{name: "worker beats poll", cfg: Config{WorkerRunner: true, PollRunner: true}, want: RunModeWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, resolveRunMode(&tt.cfg))
		})
	}
}

func TestRenderBox(t *testing.T) {
	box := renderBox([]string{"hello"}, 40)

	lines := strings.Split(strings.TrimRight(box, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "╔"))
	assert.Contains(t, lines[1], "hello")
	assert.True(t, strings.HasPrefix(lines[2], "╚"))
}

func TestWrapToWidth(t *testing.T) {
	lines := wrapToWidth("abcdef", 3)
	require.Equal(t, []string{"abc", "def"}, lines)

	// Wide runes count by display cells, not bytes.
	lines = wrapToWidth("ααββ", 2)
	require.Equal(t, []string{"αα", "ββ"}, lines)
}
