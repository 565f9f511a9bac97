package session

import "testing"

func TestValidateName(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"main", true},
		{"work-account", true},
		{"team_2", true},
		{"", false},
		{"UPPER", false},
		{"has space", false},
		{"dot.name", false},
	}
	for _, tc := range cases {
		err := ValidateName(tc.name)
		if tc.valid && err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", tc.name, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", tc.name)
		}
	}
}
