package browser

import "testing"

func TestPickCompletedDownload(t *testing.T) {
	before := map[string]struct{}{"old.mp4": {}}

	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{"nothing new", []string{"old.mp4"}, ""},
		{"new completed file", []string{"old.mp4", "clip.mp4"}, "clip.mp4"},
		{"still downloading", []string{"old.mp4", "clip.mp4.crdownload"}, ""},
		{"partial shadows final name", []string{"old.mp4", "clip.mp4", "clip.mp4.crdownload"}, ""},
		{"firefox partial", []string{"clip.mp4.part"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pickCompletedDownload(tt.files, before); got != tt.want {
				t.Errorf("pickCompletedDownload(%v) = %q, want %q", tt.files, got, tt.want)
			}
		})
	}
}
