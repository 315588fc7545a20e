package config

import (
	"os"
	"path/filepath"
	"strings"
)

// runtimeBaseDir anchors relative runtime paths: the directory of the loaded
// config file, then the executable, then the working directory.
func runtimeBaseDir(configDir string) string {
	if dir := strings.TrimSpace(configDir); dir != "" {
		return dir
	}
	if exe, err := os.Executable(); err == nil && exe != "" {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// resolveRuntimePath returns raw (or fallback when raw is empty) as an
// absolute path. An empty result means neither was set.
func resolveRuntimePath(configDir, raw, fallback string) string {
	target := strings.TrimSpace(raw)
	if target == "" {
		target = strings.TrimSpace(fallback)
	}
	if target == "" {
		return ""
	}
	if strings.HasPrefix(target, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, target[2:])
		}
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(runtimeBaseDir(configDir), target)
}
