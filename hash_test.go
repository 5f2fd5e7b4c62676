package redis

import "testing"

func TestHashTagExtraction(t *testing.T) {
	cases := []struct {
		key     string
		want    string
		tagged  bool
	}{
		{"foo", "foo", false},
		{"{tag}suffix", "tag", true},
		{"prefix{tag}", "tag", true},
		{"{}key", "{}key", false},
		{"{unterminated", "{unterminated", false},
		{"{a}{b}", "a", true},
	}
	for _, c := range cases {
		got, tagged := HashTag([]byte(c.key))
		if string(got) != c.want || tagged != c.tagged {
			t.Errorf("HashTag(%q) = (%q, %v), want (%q, %v)", c.key, got, tagged, c.want, c.tagged)
		}
	}
}

func TestHashSlotCoLocatesSharedTags(t *testing.T) {
	a := HashSlot([]byte("{user1000}.following"))
	b := HashSlot([]byte("{user1000}.followers"))
	if a != b {
		t.Errorf("tagged keys landed in different slots: %d vs %d", a, b)
	}

	c := HashSlot([]byte("user1000"))
	if a != c {
		t.Errorf("{user1000}.following should hash the same as user1000, got %d vs %d", a, c)
	}
}

func TestHashSlotEmptyBraceUsesWholeKey(t *testing.T) {
	a := HashSlot([]byte("{}key"))
	b := HashSlot([]byte("key"))
	if a == b {
		t.Error("{}key should not collapse to the same slot as key (empty tag is not a tag)")
	}
}

func TestHashSlotWithinRange(t *testing.T) {
	for _, k := range []string{"a", "abc", "{tag}", "a very long key indeed with many characters in it"} {
		slot := HashSlot([]byte(k))
		if slot < 0 || slot >= NumSlots {
			t.Errorf("HashSlot(%q) = %d, out of range", k, slot)
		}
	}
}

func TestHashSlotKnownVector(t *testing.T) {
	// well-known reference vectors from Redis Cluster documentation.
	cases := map[string]int{
		"123456789": 12739,
	}
	for key, want := range cases {
		if got := HashSlot([]byte(key)); got != want {
			t.Errorf("HashSlot(%q) = %d, want %d", key, got, want)
		}
	}
}
