package signal

import (
	"regexp"
	"strings"
	"unicode"
)

// codeExtensions is the closed whitelist of file extensions that count as code.
var codeExtensions = map[string]string{
	".py":   "Python",
	".js":   "JavaScript",
	".ts":   "TypeScript",
	".tsx":  "React TypeScript",
	".jsx":  "React JavaScript",
	".html": "HTML",
	".css":  "CSS",
	".json": "JSON",
	".md":   "Markdown",
	".cpp":  "C++",
	".c":    "C",
	".rs":   "Rust",
	".go":   "Go",
	".java": "Java",
}

// LanguageFor returns the language name for a whitelisted extension.
func LanguageFor(ext string) (string, bool) {
	lang, ok := codeExtensions[strings.ToLower(ext)]
	return lang, ok
}

// domainPlatform maps a title substring to the platform it identifies.
// Order matters: the first hit wins.
var domainPlatform = []struct {
	needle   string
	platform string
}{
	{"youtube", "YouTube"},
	{"github", "GitHub"},
	{"stackoverflow", "Stack Overflow"},
	{"stack overflow", "Stack Overflow"},
	{"reddit", "Reddit"},
	{"twitter", "Twitter"},
	{"twitch", "Twitch"},
	{"netflix", "Netflix"},
	{"discord", "Discord"},
	{"slack", "Slack"},
	{"spotify", "Spotify"},
}

// sep matches the separators apps put between title segments.
const sep = `\s+[-–—]\s+`

var sepRe = regexp.MustCompile(sep)

// fileRe finds the first word.ext pair in a title.
var fileRe = regexp.MustCompile(`(\w+\.(\w+))`)

// titlePattern is one entry of the app-specific pattern table.
type titlePattern struct {
	name string
	re   *regexp.Regexp
	// appHint restricts the pattern to apps whose name contains it.
	appHint string
	// Submatch indexes; 0 means the pattern does not capture that field.
	file, project, content, app int
	platform                     string
	appName                      string
}

// titlePatterns is evaluated in order; the first match wins.
var titlePatterns = []titlePattern{
	{
		name:    "editor",
		re:      regexp.MustCompile(`^(.+?)` + sep + `(.+?)` + sep + `(Visual Studio Code|VSCodium|Cursor|Zed)$`),
		file:    1,
		project: 2,
		app:     3,
	},
	{
		name:     "youtube",
		re:       regexp.MustCompile(`^(.+?)` + sep + `YouTube`),
		content:  1,
		platform: "YouTube",
	},
	{
		name:     "twitch",
		re:       regexp.MustCompile(`^(.+?)` + sep + `Twitch`),
		content:  1,
		platform: "Twitch",
	},
	{
		name:     "netflix",
		re:       regexp.MustCompile(`^(.+?)` + sep + `Netflix`),
		content:  1,
		platform: "Netflix",
	},
	{
		name:     "github",
		re:       regexp.MustCompile(`^(.+?)\s+·\s+GitHub`),
		content:  1,
		platform: "GitHub",
	},
	{
		name:     "stackoverflow",
		re:       regexp.MustCompile(`^(.+?)` + sep + `Stack Overflow`),
		content:  1,
		platform: "Stack Overflow",
	},
	{
		name:    "chat",
		re:      regexp.MustCompile(`^(.+?)` + sep + `(Discord|Slack|Microsoft Teams|Telegram)$`),
		content: 1,
		app:     2,
	},
	{
		name:     "spotify",
		re:       regexp.MustCompile(`^(.+?)` + sep + `(.+?)$`),
		appHint:  "spotify",
		content:  1,
		platform: "Spotify",
		appName:  "Spotify",
	},
	{
		name:    "browser",
		re:      regexp.MustCompile(`^(.+?)` + sep + `(Google Chrome|Mozilla Firefox|Microsoft Edge|Brave|Zen Browser|Opera|Vivaldi)$`),
		content: 1,
		app:     2,
	},
}

// TitleParser parses window titles into structured components.
// It holds no state and is safe for concurrent use.
type TitleParser struct{}

// NewTitleParser creates a TitleParser.
func NewTitleParser() *TitleParser {
	return &TitleParser{}
}

// Parse turns a window title into a ParsedTitle. appName, when provided,
// takes precedence over anything inferred from the title.
func (p *TitleParser) Parse(title, appName string) ParsedTitle {
	result := ParsedTitle{Raw: title}
	title = strings.TrimSpace(title)
	if title == "" {
		return result
	}

	appLower := strings.ToLower(appName)
	matched := false
	for _, pat := range titlePatterns {
		if pat.appHint != "" && !strings.Contains(appLower, pat.appHint) {
			continue
		}
		m := pat.re.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		matched = true
		if pat.file > 0 {
			result.FileName = strings.TrimSpace(m[pat.file])
		}
		if pat.project > 0 {
			result.ProjectName = strings.TrimSpace(m[pat.project])
		}
		if pat.content > 0 {
			result.ContentTitle = strings.TrimSpace(m[pat.content])
		}
		if pat.app > 0 {
			result.AppName = m[pat.app]
		}
		if pat.appName != "" {
			result.AppName = pat.appName
		}
		result.Platform = pat.platform
		break
	}

	// Generic word.ext extraction. An editor pattern may already have set
	// the file name; the extension still comes from the whitelist.
	if fm := fileRe.FindStringSubmatch(title); fm != nil {
		if result.FileName == "" {
			result.FileName = fm[1]
		}
		ext := "." + strings.ToLower(fm[2])
		if _, ok := codeExtensions[ext]; ok {
			result.FileExtension = ext
		}
	}
	if result.FileExtension == "" && result.FileName != "" {
		if i := strings.LastIndexByte(result.FileName, '.'); i >= 0 {
			ext := strings.ToLower(result.FileName[i:])
			if _, ok := codeExtensions[ext]; ok {
				result.FileExtension = ext
			}
		}
	}

	titleLower := strings.ToLower(title)
	for _, d := range domainPlatform {
		if strings.Contains(titleLower, d.needle) {
			result.URLDomain = d.needle
			if result.Platform == "" {
				result.Platform = d.platform
			}
			break
		}
	}

	if result.ContentTitle == "" {
		if parts := sepRe.Split(title, -1); len(parts) >= 2 {
			result.ContentTitle = strings.TrimSpace(parts[0])
		}
	}

	switch {
	case appName != "":
		result.AppName = appName
	case !matched || result.AppName == "":
		result.AppName = extractAppName(title)
	}

	return result
}

// extractAppName guesses the app from the trailing title segment:
// "Content - AppName" is the common layout.
func extractAppName(title string) string {
	parts := sepRe.Split(title, -1)
	if len(parts) < 2 {
		return ""
	}
	last := strings.TrimSpace(parts[len(parts)-1])
	if last == "" || len([]rune(last)) >= 30 {
		return ""
	}
	if first := []rune(last)[0]; !unicode.IsUpper(first) {
		return ""
	}
	return last
}
