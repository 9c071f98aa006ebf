package core

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "simple", title: "Intro To Go!", want: "intro-to-go"},
		{name: "already clean", title: "intro-to-go", want: "intro-to-go"},
		{name: "collapses runs", title: "Data   --  Structures & Algorithms", want: "data-structures-algorithms"},
		{name: "trims hyphens", title: "  ...Databases...  ", want: "databases"},
		{name: "folds diacritics", title: "Café Société", want: "cafe-societe"},
		{name: "digits kept", title: "Go 101", want: "go-101"},
		{name: "only punctuation", title: "!!!", want: ""},
		{name: "empty", title: "", want: ""},
		{name: "whitespace only", title: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.title); got != tt.want {
				t.Errorf("Slugify(%q) = %q; want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestAssignSlug(t *testing.T) {
	never := func(string) bool { return false }
	in := func(taken ...string) func(string) bool {
		set := make(map[string]bool, len(taken))
		for _, s := range taken {
			set[s] = true
		}
		return func(c string) bool { return set[c] }
	}

	tests := []struct {
		name     string
		title    string
		fallback string
		maxLen   int
		exists   func(string) bool
		want     string
		wantErr  error
	}{
		{name: "no collision", title: "Intro To Go!", fallback: "course", maxLen: 200, exists: never, want: "intro-to-go"},
		{name: "fallback on empty slug", title: "!!!", fallback: "course", maxLen: 200, exists: never, want: "course"},
		{name: "fallback on empty title", title: "", fallback: "user", maxLen: 60, exists: never, want: "user"},
		{
			name:     "collision resolution",
			title:    "Intro To Go",
			fallback: "course",
			maxLen:   200,
			exists:   in("intro-to-go", "intro-to-go-1"),
			want:     "intro-to-go-2",
		},
		{
			name:     "fallback collides too",
			title:    "???",
			fallback: "user",
			maxLen:   60,
			exists:   in("user"),
			want:     "user-1",
		},
		{
			name:     "base trimmed to width",
			title:    "aaaaaaaaab",
			fallback: "user",
			maxLen:   8,
			exists:   never,
			want:     "aaaaaaaa",
		},
		{
			name:     "counter suffix fits within width",
			title:    "aaaaaaaa",
			fallback: "user",
			maxLen:   8,
			exists:   in("aaaaaaaa", "aaaaaa-1"),
			want:     "aaaaaa-2",
		},
		{
			name:     "trim drops dangling hyphen",
			title:    "long-ish title",
			fallback: "course",
			maxLen:   7,
			exists:   in("long-is"),
			want:     "long-1",
		},
		{
			name:     "exhausted",
			title:    "Popular",
			fallback: "course",
			maxLen:   200,
			exists:   func(string) bool { return true },
			wantErr:  ErrSlugExhausted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AssignSlug(tt.title, tt.fallback, tt.maxLen, tt.exists)
			if err != tt.wantErr {
				t.Fatalf("AssignSlug() error = %v; wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("AssignSlug() = %q; want %q", got, tt.want)
			}
			if len(got) > tt.maxLen {
				t.Errorf("AssignSlug() = %q is %d bytes; must not exceed %d", got, len(got), tt.maxLen)
			}
			if err == nil && got == "" {
				t.Error("AssignSlug() returned an empty slug")
			}
		})
	}
}
