package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrent(t *testing.T) {
	prev := Version
	Version = "v1.2.3"
	defer func() { Version = prev }()

	info := Current()
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, GitSHA, info.GitSHA)
	assert.Contains(t, String(), "evacsim v1.2.3")
}
