package core

// Version is the version of deepseek-agent.
const Version = "0.2.0"

// CodeVersion returns the version of the deepseek-agent code.
func CodeVersion() string {
	return Version
}
