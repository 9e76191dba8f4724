package commands

import "strconv"

// argUint parses the single positional argument as an unsigned number no
// larger than limit. Hex with a 0x prefix is accepted.
func argUint(args []string, name string, limit uint64) (uint64, error) {
	if len(args) != 1 {
		return 0, usagef("%s required", name)
	}
	v, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil || v > limit {
		return 0, usagef("invalid %s %q", name, args[0])
	}
	return v, nil
}
