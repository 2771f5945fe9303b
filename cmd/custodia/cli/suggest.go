// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// Suggestions fire at edit distance 3 or less, which covers the
// common typo classes: dropped letters, doubled letters, and
// transpositions.
const suggestionThreshold = 3

// suggestCommand returns the closest subcommand name to the unknown
// input, or "" when nothing is within the threshold.
func suggestCommand(unknown string, commands []*Command) string {
	best, bestDistance := "", suggestionThreshold+1
	for _, command := range commands {
		if d := editDistance(unknown, command.Name); d < bestDistance {
			best, bestDistance = command.Name, d
		}
	}
	return best
}

// suggestFlag finds the first flag-shaped argument the set does not
// define and returns the nearest defined flag, "--"-prefixed. Returns
// "" when every flag is known or nothing is close.
func suggestFlag(args []string, fs *pflag.FlagSet) string {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name := strings.TrimLeft(arg, "-")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name = name[:eq]
		}
		if name == "" || fs.Lookup(name) != nil {
			continue
		}

		best, bestDistance := "", suggestionThreshold+1
		fs.VisitAll(func(f *pflag.Flag) {
			if d := editDistance(name, f.Name); d < bestDistance {
				best, bestDistance = f.Name, d
			}
		})
		if best == "" {
			return ""
		}
		return "--" + best
	}
	return ""
}

// editDistance is the Levenshtein distance between a and b, computed
// with two rolling rows.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
