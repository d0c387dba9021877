package attachments

import "testing"

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		expected string
	}{
		{"plain name", "report.pdf", "tasks/7/comments/3/report.pdf"},
		{"spaces become hyphens", "sprint notes.txt", "tasks/7/comments/3/sprint-notes.txt"},
		{"path traversal stripped", "../../etc/passwd", "tasks/7/comments/3/passwd"},
		{"windows separators stripped", `c:\tmp\evil.exe`, "tasks/7/comments/3/evil.exe"},
		{"everything stripped", "???", "tasks/7/comments/3/attachment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ObjectKey(7, 3, tt.fileName); got != tt.expected {
				t.Errorf("ObjectKey = %q, want %q", got, tt.expected)
			}
		})
	}
}
