package runner

import shlex "github.com/anmitsu/go-shlex"

// SplitHook tokenizes a configured hook command line (e.g. the value of a
// prehook.git.imp.<branch> key) the same way surgeon/inner.go's
// runProcess tokenizes a dispatch command before exec.Command.
func SplitHook(line string) ([]string, error) {
	return shlex.Split(line, true)
}
