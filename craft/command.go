/*
	This file holds the command-line request type shared by the craft2 binary and server.
*/

package craft

import "strings"

// Keys for setting optional arguments within a command line via "key=value" strings.
const (
	KeyFormat = "format"
)

var setKeys = map[string]bool{
	KeyFormat: true,
}

// Command is a parsed command line.  The first item is the command name and the rest are
// positional arguments or optional settings of the form "<key>=<value>".
type Command []string

// String returns a space-separated command line
func (cmd Command) String() string {
	return strings.Join([]string(cmd), " ")
}

// Name returns the first argument which is assumed to be the name of the command.
func (cmd Command) Name() string {
	if len(cmd) == 0 {
		return ""
	}
	return cmd[0]
}

// Parameter scans a command for any "key=value" argument and returns
// the value of the passed 'key'.
func (cmd Command) Parameter(key string) (value string, found bool) {
	if len(cmd) > 1 {
		for _, arg := range cmd[1:] {
			elems := strings.SplitN(arg, "=", 2)
			if len(elems) == 2 && elems[0] == key {
				return elems[1], true
			}
		}
	}
	return
}

// CommandArgs sets a variadic argument set of string pointers to the positional
// arguments, skipping settings of the form "<key>=<value>".  Targets without an argument
// are set to the empty string.  It returns the positional arguments left over.
func (cmd Command) CommandArgs(targets ...*string) (overflow []string) {
	for _, target := range targets {
		*target = ""
	}
	if len(cmd) < 2 {
		return
	}
	cur := 0
	for _, arg := range cmd[1:] {
		if elems := strings.SplitN(arg, "=", 2); len(elems) == 2 && setKeys[elems[0]] {
			continue
		}
		if cur < len(targets) {
			*targets[cur] = arg
		} else {
			overflow = append(overflow, arg)
		}
		cur++
	}
	return
}
