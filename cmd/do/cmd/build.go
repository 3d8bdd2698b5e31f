package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

// binaries are the deployable commands built by "do build".
var binaries = []string{"server", "reaper"}

func BuildCmd() *cobra.Command {
	var goos, goarch, out string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the server and reaper binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return build(goos, goarch, out)
		},
	}

	cmd.Flags().StringVar(&goos, "os", "linux", "target GOOS")
	cmd.Flags().StringVar(&goarch, "arch", "amd64", "target GOARCH")
	cmd.Flags().StringVar(&out, "out", "bin", "output directory")
	return cmd
}

func build(goos, goarch, out string) error {
	err := os.MkdirAll(out, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}

	for _, name := range binaries {
		target := filepath.Join(out, name)
		fmt.Printf("==> Building %s (%s/%s)\n", target, goos, goarch)

		err := runEnv([]string{"GOOS=" + goos, "GOARCH=" + goarch, "CGO_ENABLED=0"},
			"go", "build", "-trimpath", "-o", target, "./cmd/"+name)
		if err != nil {
			return fmt.Errorf("build %s failed: %w", name, err)
		}
	}

	fmt.Println("==> Done!")
	return nil
}

func runEnv(env []string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
