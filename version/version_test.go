package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	old := GitSHA
	GitSHA = "abc123"
	defer func() { GitSHA = old }()

	info := Get("analyze-service", "stub", "stream")
	assert.Equal(t, "analyze-service", info.Service)
	assert.Equal(t, BuildVersion, info.Version)
	assert.Equal(t, "abc123", info.GitSHA)
	assert.Equal(t, "stub", info.Provider)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}
