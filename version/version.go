package version

import (
	"runtime"
	"runtime/debug"
	"strconv"
)

// Populated at build time via -ldflags; debug.ReadBuildInfo fills the gaps.
var (
	BuildVersion = "dev"
	GitSHA       = ""
	BuildTime    = ""
)

type Info struct {
	Service     string `json:"service"`
	Version     string `json:"version"`
	Provider    string `json:"provider,omitempty"`
	Mode        string `json:"mode,omitempty"`
	GitSHA      string `json:"git_sha,omitempty"`
	BuildTime   string `json:"build_time,omitempty"`
	VCSModified *bool  `json:"vcs_modified,omitempty"`
	GoVersion   string `json:"go_version"`
}

// Get describes the running binary. provider and mode are the relay's
// configured upstream and delivery mode.
func Get(service, provider, mode string) Info {
	info := Info{
		Service:   service,
		Version:   BuildVersion,
		Provider:  provider,
		Mode:      mode,
		GitSHA:    GitSHA,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitSHA == "" {
				info.GitSHA = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			if b, err := strconv.ParseBool(s.Value); err == nil && info.VCSModified == nil {
				info.VCSModified = &b
			}
		}
	}
	return info
}
