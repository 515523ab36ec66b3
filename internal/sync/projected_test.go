package sync

import "testing"

func TestSanitizeKey(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"already clean", "foo_bar-baz", "foo_bar-baz"},
		{"dots become underscore", "a.b.c", "a_b_c"},
		{"collapses consecutive dashes", "a---b", "a-b"},
		{"trims leading and trailing dash", "-foo-", "foo"},
		{"brackets and dots", "a.b[0].c", "a_b_0__c"},
		{"spaces", "hello world", "hello_world"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sanitizeKey(tc.in); got != tc.want {
				t.Errorf("sanitizeKey(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestProjectedName(t *testing.T) {
	cases := []struct {
		name           string
		prefix, suffix string
		key            string
		want           string
	}{
		{"no prefix or suffix", "", "", "db.password", "db_password"},
		{"prefix only", "myapp", "", "db.password", "myapp-db_password"},
		{"prefix and suffix", "myapp", "prod", "db.password", "myapp-db_password-prod"},
		{"messy key collapses with dashes", "myapp", "", "a--b..c", "myapp-a-b__c"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ProjectedName(tc.prefix, tc.key, tc.suffix); got != tc.want {
				t.Errorf("ProjectedName(%q, %q, %q) = %q, want %q", tc.prefix, tc.key, tc.suffix, got, tc.want)
			}
		})
	}
}
