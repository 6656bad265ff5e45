package signal

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTitleParser_Parse(t *testing.T) {
	tests := []struct {
		name  string
		title string
		app   string
		want  ParsedTitle
	}{
		{
			name:  "empty title",
			title: "",
			app:   "Code.exe",
			want:  ParsedTitle{},
		},
		{
			name:  "vscode triple",
			title: "main.py - myproj - Visual Studio Code",
			app:   "Code.exe",
			want: ParsedTitle{
				Raw:           "main.py - myproj - Visual Studio Code",
				AppName:       "Code.exe",
				FileName:      "main.py",
				FileExtension: ".py",
				ProjectName:   "myproj",
				ContentTitle:  "main.py",
			},
		},
		{
			name:  "vscode with en dash and no app",
			title: "server.go – rin – Visual Studio Code",
			want: ParsedTitle{
				Raw:           "server.go – rin – Visual Studio Code",
				AppName:       "Visual Studio Code",
				FileName:      "server.go",
				FileExtension: ".go",
				ProjectName:   "rin",
				ContentTitle:  "server.go",
			},
		},
		{
			name:  "youtube suffix",
			title: "Lo-fi Beats - YouTube",
			app:   "chrome.exe",
			want: ParsedTitle{
				Raw:          "Lo-fi Beats - YouTube",
				AppName:      "chrome.exe",
				URLDomain:    "youtube",
				Platform:     "YouTube",
				ContentTitle: "Lo-fi Beats",
			},
		},
		{
			name:  "github middot",
			title: "rin/issues · GitHub - Mozilla Firefox",
			want: ParsedTitle{
				Raw:          "rin/issues · GitHub - Mozilla Firefox",
				AppName:      "Mozilla Firefox",
				URLDomain:    "github",
				Platform:     "GitHub",
				ContentTitle: "rin/issues",
			},
		},
		{
			name:  "chat channel",
			title: "#general - Discord",
			want: ParsedTitle{
				Raw:          "#general - Discord",
				AppName:      "Discord",
				URLDomain:    "discord",
				Platform:     "Discord",
				ContentTitle: "#general",
			},
		},
		{
			name:  "spotify only applies to the spotify app",
			title: "Song Name - Some Artist",
			app:   "Spotify.exe",
			want: ParsedTitle{
				Raw:          "Song Name - Some Artist",
				AppName:      "Spotify.exe",
				Platform:     "Spotify",
				ContentTitle: "Song Name",
			},
		},
		{
			name:  "unknown extension keeps file name",
			title: "notes.txt - Notepad",
			want: ParsedTitle{
				Raw:          "notes.txt - Notepad",
				AppName:      "Notepad",
				FileName:     "notes.txt",
				ContentTitle: "notes.txt",
			},
		},
		{
			name:  "lower-case trailing segment is not an app name",
			title: "Inbox - someone@example",
			want: ParsedTitle{
				Raw:          "Inbox - someone@example",
				ContentTitle: "Inbox",
			},
		},
	}

	p := NewTitleParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.title, tt.app)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q, %q) mismatch (-want +got):\n%s", tt.title, tt.app, diff)
			}
		})
	}
}

func TestLanguageFor(t *testing.T) {
	if lang, ok := LanguageFor(".GO"); !ok || lang != "Go" {
		t.Fatalf("LanguageFor(.GO) = %q, %v", lang, ok)
	}
	if _, ok := LanguageFor(".txt"); ok {
		t.Fatalf("LanguageFor(.txt) should not be whitelisted")
	}
}
