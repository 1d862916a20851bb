// Package installer lays out a runtime directory: prompt files, a default
// persona and the .env the start command reads.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sandevgo/companion/pkg/env"
	"github.com/sandevgo/companion/pkg/log"
)

const defaultPersonaDir = "avatars/default"

type Options struct {
	RuntimePath string
	Persona     string
	// Force overwrites files that already exist.
	Force bool
	// Configs are pointers to env-tagged structs written to .env.
	Configs []any
}

type Result struct {
	Written []string
	Skipped []string
}

// Install copies the embedded markdown files from src into opts.RuntimePath
// and writes the .env file.
func Install(ctx context.Context, src fs.FS, opts Options) (*Result, error) {
	logger := log.FromCtx(ctx)
	res := &Result{}

	if opts.Persona == "" {
		opts.Persona = "default"
	}
	if err := os.MkdirAll(opts.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	err := fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}

		data, err := fs.ReadFile(src, path)
		if err != nil {
			return fmt.Errorf("failed to read embedded %s: %w", path, err)
		}
		dst := filepath.Join(opts.RuntimePath, targetPath(path, opts.Persona))
		return res.write(dst, data, 0644, opts.Force)
	})
	if err != nil {
		return nil, err
	}

	content, err := envContent(opts.Configs)
	if err != nil {
		return nil, err
	}
	if err := res.write(filepath.Join(opts.RuntimePath, ".env"), []byte(content), 0600, opts.Force); err != nil {
		return nil, err
	}

	logger.Info().
		Str("path", opts.RuntimePath).
		Int("written", len(res.Written)).
		Int("skipped", len(res.Skipped)).
		Msg("runtime directory initialized")
	return res, nil
}

// targetPath moves the bundled default persona under the chosen name.
func targetPath(path, persona string) string {
	if rest, ok := strings.CutPrefix(path, defaultPersonaDir+"/"); ok {
		return filepath.Join("avatars", persona, filepath.FromSlash(rest))
	}
	return filepath.FromSlash(path)
}

func envContent(configs []any) (string, error) {
	var sb strings.Builder
	for _, c := range configs {
		s, err := env.MarshalEnv(c)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func (r *Result) write(dst string, data []byte, perm os.FileMode, force bool) error {
	if !force {
		if _, err := os.Stat(dst); err == nil {
			r.Skipped = append(r.Skipped, dst)
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}
	if err := os.WriteFile(dst, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	r.Written = append(r.Written, dst)
	return nil
}
