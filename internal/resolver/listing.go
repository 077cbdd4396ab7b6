package resolver

import (
	"fmt"
	"html"
	"path"
	"strings"
)

// CountFunc reports the hit count for a canonical resource path. The listing
// renderer uses it to annotate entries; a nil func disables annotations.
type CountFunc func(resourcePath string) uint64

// RenderListing produces the directory listing HTML for urlPath.
//
// The page contains the listed path as its title, a parent-directory link
// when urlPath is not the served root, and one list item per entry in the
// order given. Directories are displayed with a trailing slash. When counts
// is non-nil each entry carries its hit count and the page shows the
// process-wide request total.
func RenderListing(urlPath string, entries []DirectoryEntry, counts CountFunc, total uint64) []byte {
	var sb strings.Builder

	escaped := html.EscapeString(urlPath)
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	fmt.Fprintf(&sb, "    <title>Directory listing for %s</title>\n", escaped)
	sb.WriteString(`    <style>
        body { font-family: sans-serif; margin: 40px; }
        h1 { color: #333; }
        ul { list-style: none; padding: 0; }
        li { padding: 8px; border-bottom: 1px solid #eee; }
        a { text-decoration: none; color: #0066cc; }
        a:hover { text-decoration: underline; }
        .dir { font-weight: bold; }
        .count { color: #4caf50; float: right; font-size: 0.9em; }
    </style>
`)
	sb.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&sb, "    <h1>Directory listing for %s</h1>\n", escaped)
	if counts != nil {
		fmt.Fprintf(&sb, "    <p class=\"stats\">Total server requests: %d</p>\n", total)
	}
	sb.WriteString("    <hr>\n    <ul>\n")

	if urlPath != "/" {
		parent := path.Dir(strings.TrimSuffix(urlPath, "/"))
		fmt.Fprintf(&sb, "        <li><a href=\"%s\">[Parent Directory]</a></li>\n",
			html.EscapeString(parent))
	}

	base := strings.TrimSuffix(urlPath, "/")
	for _, entry := range entries {
		link := base + "/" + entry.Name
		name := entry.Name
		class := ""
		if entry.IsDir {
			link += "/"
			name += "/"
			class = " class=\"dir\""
		}

		fmt.Fprintf(&sb, "        <li%s><a href=\"%s\">%s</a>",
			class, html.EscapeString(link), html.EscapeString(name))
		if counts != nil {
			fmt.Fprintf(&sb, "<span class=\"count\">%d requests</span>",
				counts(base+"/"+entry.Name))
		}
		sb.WriteString("</li>\n")
	}

	sb.WriteString("    </ul>\n    <hr>\n</body>\n</html>\n")
	return []byte(sb.String())
}
