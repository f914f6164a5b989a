package logfields

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHelpersUseCanonicalKeys(t *testing.T) {
	assert.Equal(t, KeyRunID, RunID(7).Key)
	assert.Equal(t, uint64(7), RunID(7).Value.Uint64())
	assert.Equal(t, KeyStage, Stage("fetching").Key)
	assert.Equal(t, 250.0, Duration(250*time.Millisecond).Value.Float64())
}

func TestErrorNil(t *testing.T) {
	assert.Equal(t, "", Error(nil).Value.String())
	assert.Equal(t, "boom", Error(errors.New("boom")).Value.String())
}
