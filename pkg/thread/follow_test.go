package thread

import "testing"

func TestShouldFollow(t *testing.T) {
	cases := []struct {
		name                          string
		firstLoad, nearBottom, ownMsg bool
		want                          bool
	}{
		{"first load", true, false, false, true},
		{"near bottom", false, true, false, true},
		{"own message while scrolled up", false, false, true, true},
		{"incoming while reading history", false, false, false, false},
	}
	for _, c := range cases {
		if got := ShouldFollow(c.firstLoad, c.nearBottom, c.ownMsg); got != c.want {
			t.Errorf("%s: ShouldFollow = %v, want %v", c.name, got, c.want)
		}
	}
}
