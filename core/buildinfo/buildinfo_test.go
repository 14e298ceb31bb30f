package buildinfo

import "testing"

func TestString(t *testing.T) {
	prevV, prevC, prevD := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = prevV, prevC, prevD })

	Version, Commit, Date = "v0.4.0", "abc1234", ""
	if got := String(); got != "docshelf v0.4.0 (abc1234)" {
		t.Fatalf("String() = %q", got)
	}
	Date = "2025-08-30T12:00:00Z"
	if got := String(); got != "docshelf v0.4.0 (abc1234, 2025-08-30T12:00:00Z)" {
		t.Fatalf("String() = %q", got)
	}
}
