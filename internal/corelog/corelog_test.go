package corelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvFromStringRecognizesKnownValues(t *testing.T) {
	assert.Equal(t, EnvProd, EnvFromString("prod"))
	assert.Equal(t, EnvStage, EnvFromString("stage"))
}

func TestEnvFromStringDefaultsToDev(t *testing.T) {
	assert.Equal(t, EnvDev, EnvFromString(""))
	assert.Equal(t, EnvDev, EnvFromString("whatever"))
}
