package logging

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level letters, from most to least verbose.
// V and D both enable debug output; F suppresses everything below fatal conditions.
const levelLetters = "VDIWEF"

var zapLevels = map[byte]zapcore.Level{
	'V': zap.DebugLevel,
	'D': zap.DebugLevel,
	'I': zap.InfoLevel,
	'W': zap.WarnLevel,
	'E': zap.ErrorLevel,
	'F': zap.DPanicLevel,
}

// ParseLevel converts a level string to its letter.
// Only the first character is significant, so "debug" and "D" are equivalent.
func ParseLevel(input string) (byte, error) {
	if input == "" {
		return 'I', nil
	}
	lvl := strings.ToUpper(input[:1])[0]
	if _, ok := zapLevels[lvl]; !ok {
		return 0, fmt.Errorf("unknown log level %q, expecting one of %s", input, levelLetters)
	}
	return lvl, nil
}

// PkgLevel represents log level of a package.
type PkgLevel struct {
	pkg string
	lvl byte
	al  zap.AtomicLevel
	cb  func()
}

// Package returns package name.
func (pl PkgLevel) Package() string {
	return pl.pkg
}

// Level returns log level letter.
func (pl PkgLevel) Level() byte {
	return pl.lvl
}

// SetCallback sets a callback invoked after each level change.
func (pl *PkgLevel) SetCallback(cb func()) {
	pl.cb = cb
}

// SetLevel assigns log level. Unrecognized input selects level I.
func (pl *PkgLevel) SetLevel(input string) {
	lvl, e := ParseLevel(input)
	if e != nil {
		lvl = 'I'
	}
	pl.apply(lvl)
}

// TrySetLevel assigns log level, or returns an error without change if input is unrecognized.
func (pl *PkgLevel) TrySetLevel(input string) error {
	lvl, e := ParseLevel(input)
	if e != nil {
		return e
	}
	pl.apply(lvl)
	return nil
}

func (pl *PkgLevel) apply(lvl byte) {
	pl.lvl = lvl
	pl.al.SetLevel(zapLevels[lvl])
	if pl.cb != nil {
		pl.cb()
	}
}

type registry struct {
	mu   sync.Mutex
	pkgs map[string]*PkgLevel
}

var levels = registry{pkgs: map[string]*PkgLevel{}}

// ListLevels returns all package levels, sorted by package name.
func ListLevels() (list []PkgLevel) {
	levels.mu.Lock()
	defer levels.mu.Unlock()
	for _, pl := range levels.pkgs {
		list = append(list, *pl)
	}
	slices.SortFunc(list, func(a, b PkgLevel) int { return strings.Compare(a.pkg, b.pkg) })
	return list
}

// FindLevel returns package log level object, or nil if the package has no logger.
func FindLevel(pkg string) *PkgLevel {
	levels.mu.Lock()
	defer levels.mu.Unlock()
	return levels.pkgs[pkg]
}

// GetLevel finds or creates package log level object.
// A new object takes its initial level from the environment.
func GetLevel(pkg string) *PkgLevel {
	levels.mu.Lock()
	defer levels.mu.Unlock()
	if pl := levels.pkgs[pkg]; pl != nil {
		return pl
	}
	pl := &PkgLevel{pkg: pkg, al: zap.NewAtomicLevel()}
	pl.SetLevel(envLevel(pkg))
	levels.pkgs[pkg] = pl
	return pl
}

func envLevel(pkg string) string {
	if v, ok := os.LookupEnv("SYMOFFLOAD_LOG_" + pkg); ok {
		return v
	}
	return os.Getenv("SYMOFFLOAD_LOG")
}
