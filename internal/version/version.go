package version

import (
	"strconv"
	"strings"
)

// Version values are set at build time using -ldflags.
var Version = "dev"
var Major = "0"
var Minor = "0"
var Patch = "0"
var Built = ""
var GitCommit = ""

type VersionInfo struct {
	Version   string `json:"version"`
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
	Patch     int    `json:"patch"`
	Built     string `json:"built"`
	GitCommit string `json:"git_commit,omitempty"`
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		Major:     parseInt(Major),
		Minor:     parseInt(Minor),
		Patch:     parseInt(Patch),
		Built:     Built,
		GitCommit: GitCommit,
	}
}

// String renders the version for --version output.
func (info VersionInfo) String() string {
	var b strings.Builder
	b.WriteString("hotreload ")
	b.WriteString(info.Version)
	if info.GitCommit != "" {
		b.WriteString(" (")
		b.WriteString(info.GitCommit)
		b.WriteString(")")
	}
	if info.Built != "" {
		b.WriteString(" built ")
		b.WriteString(info.Built)
	}
	return b.String()
}

func parseInt(value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}
