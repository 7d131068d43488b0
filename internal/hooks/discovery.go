package hooks

import (
	"fmt"
	"os"
	"path/filepath"
)

// DiscoverAgents searches for executable agents in the given paths and returns
// a map of agent name to full path. With no paths the search order is:
// 1. ./agents/
// 2. $TRENDKEEPER_HOME/agents/
// 3. /usr/local/lib/trendkeeper/agents/
func DiscoverAgents(paths []string) (map[string]string, error) {
	agents := make(map[string]string)

	if len(paths) == 0 {
		paths = defaultAgentPaths()
	}

	for _, path := range paths {
		dir := expandPath(path)

		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			full := filepath.Join(dir, entry.Name())
			if !isExecutable(full) {
				continue
			}
			// Earlier paths have priority.
			if _, exists := agents[entry.Name()]; !exists {
				agents[entry.Name()] = full
			}
		}
	}

	return agents, nil
}

func defaultAgentPaths() []string {
	paths := []string{"./agents/"}
	if home := os.Getenv("TRENDKEEPER_HOME"); home != "" {
		paths = append(paths, filepath.Join(home, "agents"))
	}
	return append(paths, "/usr/local/lib/trendkeeper/agents/")
}

// expandPath expands environment variables and resolves relative paths.
func expandPath(path string) string {
	expanded := os.ExpandEnv(path)
	if !filepath.IsAbs(expanded) {
		if abs, err := filepath.Abs(expanded); err == nil {
			return abs
		}
	}
	return expanded
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&0o111 != 0
}

// FindAgent looks up an agent by name in the discovered agents map.
func FindAgent(agents map[string]string, name string) (string, error) {
	path, exists := agents[name]
	if !exists {
		return "", fmt.Errorf("agent not found: %s", name)
	}
	return path, nil
}
