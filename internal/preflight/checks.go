package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"assetwatch/internal/config"
	"assetwatch/internal/deps"
)

// CheckOrigin verifies that the FastDL origin answers HTTP. Any response,
// including 403 or 404 for the bare base URL, counts as reachable; only
// transport failures fail the check.
func CheckOrigin(ctx context.Context, baseURL, userAgent string) Result {
	const name = "Origin"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base_url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, base+"/", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeOriginError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("origin error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable, %d)", base, resp.StatusCode)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the ffmpeg toolchain for the given config. Both
// the daemon and the CLI status command use this to avoid duplicating the
// requirements list. The binaries are optional while conversion is disabled.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	optional := !cfg.Conversion.Enabled
	probeOptional := optional || !cfg.Conversion.VerifyOutput
	return []deps.Status{
		deps.CheckFFmpeg(ctx, "FFmpeg", cfg.FFmpegBinary(), "Assembles texture frames into MP4", optional),
		deps.CheckFFmpeg(ctx, "FFprobe", cfg.FFprobeBinary(), "Verifies assembled videos", probeOptional),
	}
}

func summarizeOriginError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out (origin unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out (origin unreachable)"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("dns lookup failed for %s", dnsErr.Name)
	}
	return err.Error()
}
