// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoString(t *testing.T) {
	info := Info{Version: "1.2.3", Commit: "abc1234", Date: "2026-08-01T00:00:00Z"}
	if got := info.String(); got != "1.2.3 (abc1234, 2026-08-01T00:00:00Z)" {
		t.Errorf("String() = %q", got)
	}

	info.Dirty = true
	if got := info.String(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("String() = %q, want -dirty marker", got)
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	full := Full()
	for _, want := range []string{"Go:", "Platform:"} {
		if !strings.Contains(full, want) {
			t.Errorf("Full() = %q, missing %q", full, want)
		}
	}
}
