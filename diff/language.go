package diff

import (
	"path/filepath"
	"strings"
)

// languageByExtension maps file extensions to language tags. Tags are used
// for prompt fencing and for the prioritizer's language weight lookup.
var languageByExtension = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".sql":   "sql",
	".sh":    "shell",
	".bash":  "shell",
	".yml":   "yaml",
	".yaml":  "yaml",
	".json":  "json",
	".toml":  "toml",
	".md":    "markdown",
	".txt":   "text",
	".html":  "html",
	".css":   "css",
}

// DetectLanguage infers a language tag from the file extension.
// Unrecognized extensions return "unknown", which the prioritizer maps to
// the lowest weight.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageByExtension[ext]; ok {
		return lang
	}
	return "unknown"
}
