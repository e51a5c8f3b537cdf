package challenge

import (
	"fmt"
	"regexp"

	"github.com/ctfpack/ctfpack/internal/config"
)

var schemePrefix = regexp.MustCompile(`.*?://`)

func stripScheme(url string) string {
	return schemePrefix.ReplaceAllString(url, "")
}

// ContextShortcuts derives convenience template variables from the
// challenge's expose configuration: host, port, an nc connection string,
// a url, and a markdown link. Shortcuts exist only for the single simple
// exposure case of exactly one target with exactly one rule; anything more
// is too ambiguous to shortcut and is left to the template author.
//
// When a rule carries both tcp and http, the http-derived url wins while
// nc keeps the tcp form.
func (c *Challenge) ContextShortcuts() map[string]any {
	shortcuts := make(map[string]any)

	expose := c.Config.Expose
	if len(expose) != 1 {
		return shortcuts
	}
	var rules []config.ExposeRule
	for _, target := range expose {
		rules = target
	}
	if len(rules) != 1 {
		return shortcuts
	}
	rule := rules[0]

	host := rule.Host
	// An http value is a hostname only when it is a string; configs also
	// use a bare boolean to flag plain HTTP exposure.
	if s, ok := rule.HTTP.(string); ok && s != "" {
		host = s
	}
	if host != "" {
		shortcuts["host"] = host
	}
	hasURL := false
	if rule.TCP != nil {
		shortcuts["port"] = *rule.TCP
		shortcuts["nc"] = fmt.Sprintf("nc %s %d", host, *rule.TCP)
		shortcuts["url"] = fmt.Sprintf("http://%s:%d", host, *rule.TCP)
		hasURL = true
	}
	if rule.HTTP != nil {
		shortcuts["url"] = fmt.Sprintf("https://%s", host)
		hasURL = true
	}
	if hasURL {
		url := shortcuts["url"].(string)
		shortcuts["link"] = fmt.Sprintf("[%s](%s)", stripScheme(url), url)
	}
	return shortcuts
}
