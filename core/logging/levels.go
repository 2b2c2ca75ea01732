package logging

import (
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel parses a level letter.
// V and D are debug, I is info, W is warning, E is error, F and N suppress everything below fatal.
// Unrecognized input is info.
func ParseLevel(input string) (letter byte, lvl zapcore.Level) {
	if input == "" {
		return 'I', zapcore.InfoLevel
	}
	switch letter = input[0]; letter {
	case 'V', 'D':
		return letter, zapcore.DebugLevel
	case 'I':
		return letter, zapcore.InfoLevel
	case 'W':
		return letter, zapcore.WarnLevel
	case 'E':
		return letter, zapcore.ErrorLevel
	case 'F', 'N':
		return letter, zapcore.DPanicLevel
	}
	return 'I', zapcore.InfoLevel
}

// PkgLevel is the adjustable log level of a package.
type PkgLevel struct {
	pkg    string
	letter byte
	al     zap.AtomicLevel
}

// Package returns package name.
func (pl *PkgLevel) Package() string {
	return pl.pkg
}

// Level returns level letter.
func (pl *PkgLevel) Level() byte {
	levelsLock.Lock()
	defer levelsLock.Unlock()
	return pl.letter
}

// SetLevel changes log level; see ParseLevel for input syntax.
func (pl *PkgLevel) SetLevel(input string) {
	levelsLock.Lock()
	defer levelsLock.Unlock()
	pl.set(input)
}

func (pl *PkgLevel) set(input string) {
	var lvl zapcore.Level
	pl.letter, lvl = ParseLevel(input)
	pl.al.SetLevel(lvl)
}

var (
	levelsLock sync.Mutex
	pkgLevels  = map[string]*PkgLevel{}
)

// GetLevel finds or creates the level of a package, initialized from environment.
func GetLevel(pkg string) *PkgLevel {
	levelsLock.Lock()
	defer levelsLock.Unlock()
	if pl := pkgLevels[pkg]; pl != nil {
		return pl
	}

	pl := &PkgLevel{pkg: pkg, al: zap.NewAtomicLevel()}
	input, ok := os.LookupEnv("TMDRV_LOG_" + pkg)
	if !ok {
		input = os.Getenv("TMDRV_LOG")
	}
	pl.set(input)
	pkgLevels[pkg] = pl
	return pl
}

// FindLevel returns the level of a package, or nil if the package has no logger.
func FindLevel(pkg string) *PkgLevel {
	levelsLock.Lock()
	defer levelsLock.Unlock()
	return pkgLevels[pkg]
}

// ListLevels returns levels of all packages, sorted by package name.
func ListLevels() (list []*PkgLevel) {
	levelsLock.Lock()
	defer levelsLock.Unlock()
	for _, pl := range pkgLevels {
		list = append(list, pl)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].pkg < list[j].pkg })
	return list
}

// SetAll changes log level of every package.
func SetAll(input string) {
	levelsLock.Lock()
	defer levelsLock.Unlock()
	for _, pl := range pkgLevels {
		pl.set(input)
	}
}
