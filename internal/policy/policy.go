// Package policy decides which telemetry events are not worth reporting at
// all: expected operational errors, noise from browser extensions and
// development-only framework errors.
package policy

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/andersoncleaning/telemetry/internal/event"
)

// Drop reasons.
const (
	ReasonIgnoredError     = "ignored_error"
	ReasonDeniedURL        = "denied_url"
	ReasonDevelopmentNoise = "development_noise"
)

// Rules is one rule set. An event is dropped when its message or an
// exception contains an ignore pattern, or when a stack frame's script URL
// matches a deny pattern.
type Rules struct {
	IgnoreErrors      []string `yaml:"ignore_errors"`      // substrings of message or exception
	DenyURLs          []string `yaml:"deny_urls"`          // case-insensitive regexps over stack frame URLs
	DevelopmentIgnore []string `yaml:"development_ignore"` // applied only in the development environment
}

// File is the on-disk policy. Server rules apply to events raised by this
// process, browser rules to events arriving through the tunnel.
type File struct {
	Server  Rules `yaml:"server"`
	Browser Rules `yaml:"browser"`
}

// Default returns the built-in policy.
func Default() File {
	return File{
		Server: Rules{
			IgnoreErrors: []string{
				// upstream connection errors, handled by retries
				"ECONNREFUSED",
				"ETIMEDOUT",
				"ENOTFOUND",
				// rate limiting is expected behavior
				"Too Many Requests",
				"Rate limit exceeded",
				// client went away
				"aborted",
				"ECONNRESET",
				"EPIPE",
				// framework control flow
				"NEXT_NOT_FOUND",
				"NEXT_REDIRECT",
			},
		},
		Browser: Rules{
			IgnoreErrors: []string{
				"top.GLOBALS",
				"chrome-extension://",
				"moz-extension://",
				"Network request failed",
				"Failed to fetch",
				"NetworkError",
				"Load failed",
				"ResizeObserver loop limit exceeded",
				"ResizeObserver loop completed with undelivered notifications",
				"AbortError",
				"The operation was aborted",
				"Non-Error promise rejection captured",
				"ChunkLoadError",
				"Loading chunk",
			},
			DenyURLs: []string{
				`extensions/`,
				`^chrome://`,
				`^moz-extension://`,
				`googlesyndication\.com`,
				`doubleclick\.net`,
			},
			DevelopmentIgnore: []string{
				"Hydration",
				"Fast Refresh",
			},
		},
	}
}

// Load reads a YAML policy file. Sections missing from the file keep their
// defaults; an empty path returns Default().
func Load(path string) (File, error) {
	f := Default()
	if path == "" {
		return f, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return f, nil
}

// Filter applies one set of Rules.
type Filter struct {
	ignore      []string
	denyURLs    []*regexp.Regexp
	development []string
	devMode     bool
}

// NewFilter compiles rules for the given environment. Development-only rules
// are active when environment is "development".
func NewFilter(r Rules, environment string) (*Filter, error) {
	f := &Filter{
		ignore:  r.IgnoreErrors,
		devMode: environment == "development",
	}
	if f.devMode {
		f.development = r.DevelopmentIgnore
	}
	for _, expr := range r.DenyURLs {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("deny url %q: %w", expr, err)
		}
		f.denyURLs = append(f.denyURLs, re)
	}
	return f, nil
}

// Drop reports whether e should be discarded, and why. A nil Filter keeps
// everything.
func (f *Filter) Drop(e *event.Event) (string, bool) {
	if f == nil || e == nil {
		return "", false
	}

	texts := errorTexts(e)
	if containsAny(texts, f.ignore) {
		return ReasonIgnoredError, true
	}
	if f.devMode && containsAny(texts, f.development) {
		return ReasonDevelopmentNoise, true
	}
	if len(f.denyURLs) > 0 {
		for _, u := range frameURLs(e) {
			for _, re := range f.denyURLs {
				if re.MatchString(u) {
					return ReasonDeniedURL, true
				}
			}
		}
	}
	return "", false
}

// errorTexts are the strings an ignore pattern is matched against: the
// message, and each exception as "Type: value" (which also covers matching
// the type or the value alone).
func errorTexts(e *event.Event) []string {
	var texts []string
	if msg := e.Message(); msg != "" {
		texts = append(texts, msg)
	}
	for _, exc := range e.Exceptions() {
		switch {
		case exc.Type != "" && exc.Value != "":
			texts = append(texts, exc.Type+": "+exc.Value)
		case exc.Type != "":
			texts = append(texts, exc.Type)
		case exc.Value != "":
			texts = append(texts, exc.Value)
		}
	}
	return texts
}

func containsAny(texts, patterns []string) bool {
	for _, t := range texts {
		for _, p := range patterns {
			if p != "" && strings.Contains(t, p) {
				return true
			}
		}
	}
	return false
}

// frameURLs collects the script URL of every exception stack frame. The
// request URL is the page the error happened on, not where the code came
// from, so it is never matched.
func frameURLs(e *event.Event) []string {
	var urls []string
	v, ok := e.Get(event.KeyException)
	if !ok {
		return urls
	}
	list, _ := event.Values(v)
	for _, item := range list {
		exc, ok := item.(event.Map)
		if !ok {
			continue
		}
		st, ok := exc.GetMap("stacktrace")
		if !ok {
			continue
		}
		frames, _ := st.Get("frames")
		frameList, _ := frames.(event.List)
		for _, fr := range frameList {
			frame, ok := fr.(event.Map)
			if !ok {
				continue
			}
			if u, ok := frame.GetString("abs_path"); ok && u != "" {
				urls = append(urls, u)
			} else if u, ok := frame.GetString("filename"); ok && u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}
