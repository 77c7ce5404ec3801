package routepath

import "testing"

func TestPathBuildersEscapeIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		got  string
		want string
	}{
		{Plan("travel-basic"), "/api/plans/travel-basic"},
		{PlanConvert("a b"), "/api/plans/a%20b/convert"},
		{ComparePlan("x/y"), "/api/compare/x%2Fy"},
		{CompareToggle("p1"), "/api/compare/p1/toggle"},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Fatalf("path = %q, want %q", tc.got, tc.want)
		}
	}
}
