package chattr

import "testing"

func TestPresenceSnapshotReplace(t *testing.T) {
	p := newPresence()
	if p.IsOnline("u1") {
		t.Fatalf("u1 online before any snapshot")
	}

	p.replace([]string{"u1", "u2"})
	if !p.IsOnline("u1") || !p.IsOnline("u2") || p.IsOnline("u3") {
		t.Fatalf("unexpected set after first snapshot: %v", p.Online())
	}

	// Each snapshot replaces the set wholesale.
	p.replace([]string{"u3"})
	if p.IsOnline("u1") || p.IsOnline("u2") || !p.IsOnline("u3") {
		t.Fatalf("unexpected set after second snapshot: %v", p.Online())
	}

	p.replace(nil)
	if got := p.Online(); len(got) != 0 {
		t.Fatalf("set not emptied: %v", got)
	}
}

func TestPresenceOnChange(t *testing.T) {
	p := newPresence()
	var got []string
	p.OnChange(func(online []string) { got = online })

	p.replace([]string{"u2", "u1"})
	if len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
		t.Fatalf("callback got %v, want sorted [u1 u2]", got)
	}
}
