package scm_domain

import "strings"

// ScmBaseDomain is the host (and optional path) of a self-hosted SCM instance. It
// implements pflag.Value so it can back a command line flag directly.
type ScmBaseDomain string

const DefaultGitHubDomain string = "github.com"
const DefaultGitLabDomain string = "gitlab.com"

var schemePrefixes = []string{"https://", "http://"}

func (d *ScmBaseDomain) Set(value string) error {
	*d = ScmBaseDomain(Normalize(value))
	return nil
}

func (d *ScmBaseDomain) String() string {
	if d == nil {
		return ""
	}
	return string(*d)
}

func (d *ScmBaseDomain) Type() string {
	return "string"
}

// Normalize strips the scheme and trailing slashes from a base URL.
func Normalize(value string) string {
	value = strings.TrimSpace(value)
	for _, prefix := range schemePrefixes {
		value = strings.TrimPrefix(value, prefix)
	}
	return strings.TrimRight(value, "/")
}

// Resolve picks the first non-empty domain, falling back to the provider's public host.
func Resolve(provider string, candidates ...string) string {
	for _, c := range candidates {
		if d := Normalize(c); d != "" {
			return d
		}
	}
	if provider == "gitlab" {
		return DefaultGitLabDomain
	}
	return DefaultGitHubDomain
}
