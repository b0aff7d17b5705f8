package engine

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadTargets reads a line-oriented target list. Blank lines and lines
// starting with '#' are ignored; bare hostnames get an https scheme.
func LoadTargets(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to open targets file: %w", err)
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "://") {
			line = "https://" + line
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("engine: failed to read targets file: %w", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("engine: targets file %s contains no targets", path)
	}
	return targets, nil
}
