package store

import "testing"

func TestImportanceDisplayName(t *testing.T) {
	tests := []struct {
		importance int
		want       string
	}{
		{1, "①极其重要"},
		{2, "②非常重要"},
		{3, "③重要"},
		{4, "④一般"},
		{5, "⑤次要"},
		{9, "9"},
	}
	for _, tt := range tests {
		if got := ImportanceDisplayName(tt.importance); got != tt.want {
			t.Errorf("ImportanceDisplayName(%d) = %q, want %q", tt.importance, got, tt.want)
		}
	}
}

func TestEventTypeDisplayName(t *testing.T) {
	tests := map[EventType]string{
		EventTypeWar:      "战争",
		EventTypeCulture:  "文化",
		EventTypePolitics: "政治",
		EventTypeScience:  "科技",
		"unknown":         "unknown",
	}
	for in, want := range tests {
		if got := in.DisplayName(); got != want {
			t.Errorf("%q.DisplayName() = %q, want %q", in, got, want)
		}
	}
	if EventType("unknown").Valid() {
		t.Error("unknown type should not be valid")
	}
}

func TestDynastyHelpers(t *testing.T) {
	d := Dynasty{StartYear: -206, EndYear: 9}
	if d.Duration() != 215 {
		t.Errorf("Duration() = %d, want 215", d.Duration())
	}
	for year, want := range map[int]bool{-207: false, -206: true, 0: true, 9: true, 10: false} {
		if got := d.ContainsYear(year); got != want {
			t.Errorf("ContainsYear(%d) = %v, want %v", year, got, want)
		}
	}
}
