// Command headlessterm-demo drives a real shell under a PTY through a
// headlessterm.Terminal and periodically prints the resolved render
// descriptor to stdout. It exists to exercise the engine end to end
// (UTF-8 decode, escape parsing, grid mutation, render-descriptor
// resolution) against a live process rather than canned byte strings.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creack/pty"

	headlessterm "github.com/kitty-core/headlessterm"
)

// demoConfig mirrors the subset of Terminal tunables worth exposing on the
// command line, loaded from an optional TOML file (-config).
type demoConfig struct {
	Rows          int    `toml:"rows"`
	Cols          int    `toml:"cols"`
	ScrollbackCap int    `toml:"scrollback_cap"`
	ImageQuota    int64  `toml:"image_quota_bytes"`
	Shell         string `toml:"shell"`
}

func defaultConfig() demoConfig {
	return demoConfig{
		Rows:          24,
		Cols:          80,
		ScrollbackCap: 10000,
		ImageQuota:    320 * 1024 * 1024,
	}
}

func loadConfig(path string) (demoConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (rows, cols, scrollback_cap, image_quota_bytes, shell)")
	interval := flag.Duration("interval", 200*time.Millisecond, "render-descriptor dump interval")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	term := headlessterm.New(
		headlessterm.WithSize(cfg.Rows, cfg.Cols),
		headlessterm.WithScrollbackCap(cfg.ScrollbackCap),
		headlessterm.WithImageQuota(cfg.ImageQuota),
	)

	shell := cfg.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell)
	cmd.Env = append(os.Environ(), "TERM=xterm-kitty")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(cfg.Rows), Cols: uint16(cfg.Cols)})
	if err != nil {
		log.Fatalf("starting pty: %v", err)
	}
	defer ptmx.Close()

	logger.Info("spawned shell under pty", "shell", shell, "rows", cfg.Rows, "cols", cfg.Cols)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	readErrCh := make(chan error, 1)
	buf := make([]byte, 32*1024)
	go func() {
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				if _, werr := term.Write(buf[:n]); werr != nil {
					logger.Error("terminal write failed", "error", werr)
				}
			}
			if err != nil {
				readErrCh <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			cmd.Process.Kill()
			return
		case err := <-readErrCh:
			if err.Error() != "EOF" {
				logger.Warn("pty read ended", "error", err)
			}
			return
		case <-ticker.C:
			dumpFrame(term)
		}
	}
}

// dumpFrame renders the current frame descriptor as plain text to stdout.
// A real consumer would instead feed FrameDescriptor into a GPU paint
// pass; this harness has no rendering backend, so it prints glyphs.
func dumpFrame(term *headlessterm.Terminal) {
	fd := term.RenderDescriptor()

	var sb strings.Builder
	fmt.Fprintf(&sb, "\x1b[H\x1b[2J--- frame v%d cursor=(%d,%d) ---\n", fd.Version, fd.Cursor.Row, fd.Cursor.Col)
	for _, row := range fd.Cells {
		for _, cell := range row {
			if cell.Char == 0 {
				sb.WriteRune(' ')
				continue
			}
			sb.WriteRune(cell.Char)
		}
		sb.WriteByte('\n')
	}
	if fd.BellRung {
		sb.WriteString("(bell)\n")
	}
	os.Stdout.WriteString(sb.String())
}
