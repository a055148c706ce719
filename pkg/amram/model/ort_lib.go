package model

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// resolveORTLibPath finds the ONNX Runtime shared library. Search order:
//  1. AMRAM_ORT_LIB_PATH
//  2. lib/<goos>-<goarch>/ and ../lib/<goos>-<goarch>/ next to the executable
//  3. the same two paths under the working directory, only with AMRAM_DEV_MODE=1
func resolveORTLibPath() (string, error) {
	if envPath := os.Getenv("AMRAM_ORT_LIB_PATH"); envPath != "" {
		info, err := os.Stat(envPath)
		if err != nil {
			return "", fmt.Errorf("ort: AMRAM_ORT_LIB_PATH=%q does not exist", envPath)
		}
		if info.IsDir() {
			return "", fmt.Errorf("ort: AMRAM_ORT_LIB_PATH=%q is a directory, expected a file", envPath)
		}
		return envPath, nil
	}

	filename := ortLibFilename()
	platform := platformDir()
	candidates := []string{
		filepath.Join("lib", platform, filename),
		filepath.Join("..", "lib", platform, filename),
	}

	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		for _, rel := range candidates {
			path := filepath.Join(exeDir, rel)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	if os.Getenv("AMRAM_DEV_MODE") == "1" {
		if dir, err := os.Getwd(); err == nil {
			for _, rel := range candidates {
				path := filepath.Join(dir, rel)
				if _, err := os.Stat(path); err == nil {
					return path, nil
				}
			}
		}
	}

	return "", fmt.Errorf("ort: shared library not found; searched lib/%s/%s relative to executable (set AMRAM_ORT_LIB_PATH, or AMRAM_DEV_MODE=1 for CWD lookup)", platform, filename)
}

func ortLibFilename() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}

// modelPath is where an exported model named name is expected.
func modelPath(modelsDir, name string) string {
	if modelsDir == "" {
		modelsDir = "models"
	}
	return filepath.Join(modelsDir, name+".onnx")
}

func platformDir() string {
	return runtime.GOOS + "-" + runtime.GOARCH
}
