package pagination

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   Params
		want Params
	}{
		{in: Params{}, want: Params{Limit: 50}},
		{in: Params{Limit: 500, Offset: 10}, want: Params{Limit: 100, Offset: 10}},
		{in: Params{Limit: 5, Offset: -3}, want: Params{Limit: 5}},
	}
	for _, tc := range cases {
		if got := tc.in.Normalize(50, 100); got != tc.want {
			t.Fatalf("Normalize(%+v) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("expected default limit, got %d", got)
	}
}

func TestBuildPage(t *testing.T) {
	params := Params{Limit: 2, Offset: 4}

	page := BuildPage([]int{1, 2, 3}, params)
	if !page.HasMore || len(page.Items) != 2 || page.Offset != 4 {
		t.Fatalf("unexpected page %+v", page)
	}

	page = BuildPage([]int{1}, params)
	if page.HasMore || len(page.Items) != 1 {
		t.Fatalf("unexpected last page %+v", page)
	}

	empty := BuildPage[int](nil, params)
	if empty.Items == nil {
		t.Fatal("expected empty slice rather than nil")
	}
}
