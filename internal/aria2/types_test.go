package aria2

import "testing"

func TestStatus_Progress(t *testing.T) {
	tests := []struct {
		name      string
		total     string
		completed string
		want      string
	}{
		{"metadata not resolved", "0", "0", "0%"},
		{"missing lengths", "", "", "0%"},
		{"garbage length", "abc", "10", "0%"},
		{"complete", "1048576", "1048576", "100%"},
		{"floors", "3", "2", "66%"},
		{"half", "1000", "500", "50%"},
		{"over-reported", "10", "11", "100%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Status{TotalLength: tt.total, CompletedLength: tt.completed}
			if got := s.Progress(); got != tt.want {
				t.Errorf("Progress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatus_DisplayName(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   string
	}{
		{
			name: "torrent name wins",
			status: Status{
				GID:        "g",
				BitTorrent: &BitTorrent{Info: &TorrentInfo{Name: "Ubuntu ISO"}},
				Files:      []File{{Path: "/dl/ubuntu/ubuntu.iso"}},
			},
			want: "Ubuntu ISO",
		},
		{
			name:   "first file base name",
			status: Status{GID: "g", Files: []File{{Path: "/dl/a/file.zip"}, {Path: "/dl/b.zip"}}},
			want:   "file.zip",
		},
		{
			name: "torrent without info falls back to file",
			status: Status{
				GID:        "g",
				BitTorrent: &BitTorrent{},
				Files:      []File{{Path: "/dl/[METADATA]abc"}},
			},
			want: "[METADATA]abc",
		},
		{
			name:   "path not resolved uses uri",
			status: Status{GID: "g", Files: []File{{URIs: []URI{{URI: "http://host/x/video.mp4"}}}}},
			want:   "video.mp4",
		},
		{
			name:   "nothing known",
			status: Status{GID: "2089b05ecca3d829"},
			want:   "2089b05ecca3d829",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}
