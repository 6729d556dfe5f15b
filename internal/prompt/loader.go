package prompt

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/Conceptual-Machines/travel-guide-api/pkg/embedded"
)

// Image template keys in image_prompts.txt
const (
	imageTemplateCity     = "city"
	imageTemplateInterest = "interest"
)

type Loader struct{}

func NewPromptLoader() *Loader {
	return &Loader{}
}

// GetSystemPrompt loads the travel planner system prompt
func (l *Loader) GetSystemPrompt() (string, error) {
	return strings.TrimSpace(string(embedded.SystemPromptTxt)), nil
}

// GetUserPromptTemplate loads the per-request prompt template
func (l *Loader) GetUserPromptTemplate() (string, error) {
	return strings.TrimSpace(string(embedded.UserPromptTxt)), nil
}

// GetImagePromptTemplates loads the key=template lines for image prompts
func (l *Loader) GetImagePromptTemplates() (map[string]string, error) {
	templates := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(string(embedded.ImagePromptsTxt)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, tmpl, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("malformed image prompt line: %q", line)
		}
		templates[strings.TrimSpace(key)] = strings.TrimSpace(tmpl)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, required := range []string{imageTemplateCity, imageTemplateInterest} {
		if templates[required] == "" {
			return nil, fmt.Errorf("image prompt template %q is missing", required)
		}
	}
	return templates, nil
}
