package embeddings

import (
	"os"
	"path/filepath"
	"runtime"
)

// libraryNames maps GOOS to the ONNX runtime shared library filename.
var libraryNames = map[string]string{
	"linux":   "libonnxruntime.so",
	"darwin":  "libonnxruntime.dylib",
	"windows": "onnxruntime.dll",
}

func getLibraryName(goos string) string {
	if name, ok := libraryNames[goos]; ok {
		return name
	}
	return "libonnxruntime.so"
}

// LibraryPath returns the ONNX runtime library fastembed-go should load.
// ONNX_PATH wins; otherwise dir is searched for the platform library.
// Returns "" when neither is present.
func LibraryPath(dir string) string {
	if envPath := os.Getenv("ONNX_PATH"); envPath != "" {
		return envPath
	}
	if dir == "" {
		return ""
	}
	candidate := filepath.Join(dir, getLibraryName(runtime.GOOS))
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}
