package version

import "testing"

func TestShort(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	defer func() { Version, GitCommit = oldVersion, oldCommit }()

	Version, GitCommit = "v1.2.0", "0123456789abcdef"
	if got := Short(); got != "v1.2.0 (0123456)" {
		t.Errorf("Short() = %q", got)
	}

	GitCommit = "unknown"
	if got := Short(); got != "v1.2.0 (unknown)" {
		t.Errorf("Short() = %q", got)
	}
}
