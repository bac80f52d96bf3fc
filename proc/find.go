package proc

import (
	"fmt"
	"regexp"
)

// FindByName returns handles for all processes whose name matches exactly.
// Processes that vanish or refuse access during the scan are skipped.
func FindByName(name string) ([]*Process, error) {
	return findWithBackend(activeBackend, func(p *Process) bool {
		n, err := p.Name()
		return err == nil && n == name
	})
}

// FindByPattern returns handles for all processes whose name matches the
// regular expression pattern.
func FindByPattern(pattern string) ([]*Process, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return findWithBackend(activeBackend, func(p *Process) bool {
		n, err := p.Name()
		return err == nil && re.MatchString(n)
	})
}

// FindByCmdlinePattern returns handles for all processes with a command
// line argument matching the regular expression pattern.
func FindByCmdlinePattern(pattern string) ([]*Process, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return findWithBackend(activeBackend, func(p *Process) bool {
		args, err := p.Cmdline()
		if err != nil {
			return false
		}
		for _, arg := range args {
			if re.MatchString(arg) {
				return true
			}
		}
		return false
	})
}

func findWithBackend(b Backend, match func(*Process) bool) ([]*Process, error) {
	procs, err := processesImpl(b, true)
	if err != nil {
		return nil, err
	}

	var found []*Process
	for _, p := range procs {
		if match(p) {
			found = append(found, p)
		}
	}
	return found, nil
}
