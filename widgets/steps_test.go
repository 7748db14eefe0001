package widgets

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go-epg/theme"
)

func TestStepString(t *testing.T) {
	th := theme.New(nil)
	seq := []bool{true, false, false, true, false, false, true, false}

	assert.Equal(t, "●··●··●·", StepString(th, seq, -1))
	assert.Equal(t, "◉··●··●·", StepString(th, seq, 0))
	assert.Equal(t, "●▶·●··●·", StepString(th, seq, 1))
	assert.Equal(t, "", StepString(th, nil, 0))
}

func TestRenderKeyHelp(t *testing.T) {
	out := RenderKeyHelp([]KeySection{
		{Title: "Transport", Keys: []KeyBinding{{Key: "p", Desc: "play/stop"}}},
	})
	assert.Equal(t, "Transport\n  p            play/stop", out)
}
