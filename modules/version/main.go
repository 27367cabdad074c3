package version

import (
	"strings"
)

var (
	Program    = "Rigbridge"
	Commit     = ""
	Version    = ""
	Copyright  = "(c) 2024-2026 the rigbridge authors"
	Disclaimer = "This program comes with ABSOLUTELY NO WARRANTY"
)

func ProgramVersionShort() string {
	return strings.Trim(Program+" "+VersionStringShort(), " ")
}

func VersionStringShort() string {
	result := ""
	if Version != "" {
		result += Version
		if strings.Contains(Version, "-") {
			result += " (non-release)"
		}
	}
	if Commit != "" && !strings.Contains(Version, Commit) {
		result += " (commit " + Commit + ")"
	}
	if result == "" {
		result = "(unknown build)"
	}
	return result
}

func VersionString() string {
	result := ProgramVersionShort()
	result += ", " + Copyright + ", " + Disclaimer
	return result
}
