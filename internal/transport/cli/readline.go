package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sandevgo/companion/internal/config"
	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/service/ui"
	"github.com/sandevgo/companion/pkg/log"
)

const (
	TransportName    = "cli"
	defaultSessionID = "cli-local"
	localSender      = "You"
)

type ReadLine struct {
	cfg        *config.AppConfig
	dispatcher core.Dispatcher
	rl         *readline.Instance
	onExit     func()
}

var _ core.Replier = (*ReadLine)(nil)

// NewReadLine builds the interactive console. onExit runs when the user
// leaves the prompt and may be nil.
func NewReadLine(dispatcher core.Dispatcher, cfg *config.AppConfig, onExit func()) (*ReadLine, error) {
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.RuntimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		cfg:        cfg,
		dispatcher: dispatcher,
		rl:         rl,
		onExit:     onExit,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("ReadLine chat started. Type 'exit' to quit.")

	defer func() {
		if r.onExit != nil {
			r.onExit()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return nil
				}
				continue
			} else if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		r.dispatcher.Dispatch(ctx, line, LocalMeta())
	}
}

// LocalMeta describes the single local console user.
func LocalMeta() core.SenderMeta {
	return core.SenderMeta{
		Transport:  TransportName,
		ChatID:     defaultSessionID,
		SenderName: localSender,
		Username:   localSender,
	}
}

// Reply prints a reply above the prompt. Replies arrive after the debounce
// window, so readline redraws the prompt line afterwards.
func (r *ReadLine) Reply(_ context.Context, _ core.SenderMeta, text string) error {
	style := ui.ReplyStyle
	if core.IsErrorReply(text) {
		style = ui.ErrorStyle
	}
	_, err := fmt.Fprintln(r.rl.Stdout(), style.Render(text))
	r.rl.Refresh()
	return err
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
