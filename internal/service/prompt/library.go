package prompt

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/pkg/log"
)

// DefaultGroupPreamble is used when the runtime has no group.md.
const DefaultGroupPreamble = `You are in a group chat. Each message is wrapped as <user NAME>...</user>.
Reply only to the person who wrote the latest message and do not speak for others.`

// Library caches the static prompt files and drops cached entries when
// the files change on disk.
type Library struct {
	cfg core.PromptConfig

	mu      sync.RWMutex
	cache   map[string]string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewLibrary(cfg core.PromptConfig) *Library {
	return &Library{
		cfg:   cfg,
		cache: make(map[string]string),
	}
}

func (l *Library) Base(ctx context.Context) string {
	return l.load(ctx, l.cfg.GetBasePromptPath())
}

func (l *Library) Persona(ctx context.Context) string {
	return l.load(ctx, l.cfg.GetPersonaPath())
}

func (l *Library) GroupPreamble(ctx context.Context) string {
	if s := l.load(ctx, l.cfg.GetGroupPromptPath()); s != "" {
		return s
	}
	return DefaultGroupPreamble
}

// MemoryTemplate returns the consolidation template or "" when none is installed.
func (l *Library) MemoryTemplate(ctx context.Context) string {
	return l.load(ctx, l.cfg.GetMemoryPromptPath())
}

// DiaryTemplate returns the diary instructions or "" when none are installed.
func (l *Library) DiaryTemplate(ctx context.Context) string {
	return l.load(ctx, l.cfg.GetDiaryPromptPath())
}

// ReminderTemplate returns the reminder recognition prompt or "".
func (l *Library) ReminderTemplate(ctx context.Context) string {
	return l.load(ctx, l.cfg.GetReminderPromptPath())
}

// SystemPrompt assembles the full system prompt for one reply.
func (l *Library) SystemPrompt(ctx context.Context, coreMemory string, isGroup bool) string {
	group := ""
	if isGroup {
		group = l.GroupPreamble(ctx)
	}
	return BuildPrompt(l.Base(ctx), coreMemory, l.Persona(ctx), isGroup, group)
}

func (l *Library) load(ctx context.Context, path string) string {
	path = filepath.Clean(path)

	l.mu.RLock()
	content, ok := l.cache[path]
	l.mu.RUnlock()
	if ok {
		return content
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.FromCtx(ctx).Debug().Str("path", path).Msg("prompt file not found")
	case err != nil:
		log.FromCtx(ctx).Warn().Err(err).Str("path", path).Msg("failed to read prompt file")
		return ""
	default:
		content = strings.TrimSpace(string(data))
	}

	l.mu.Lock()
	l.cache[path] = content
	l.mu.Unlock()
	return content
}

func (l *Library) invalidate(path string) {
	l.mu.Lock()
	delete(l.cache, filepath.Clean(path))
	l.mu.Unlock()
}

// Start watches the prompt directories. Missing directories are skipped.
func (l *Library) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	logger := log.FromCtx(ctx)
	dirs := map[string]struct{}{
		filepath.Dir(l.cfg.GetBasePromptPath()): {},
		filepath.Dir(l.cfg.GetPersonaPath()):    {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.Debug().Err(err).Str("dir", dir).Msg("prompt dir not watched")
		}
	}

	l.mu.Lock()
	l.watcher = watcher
	l.done = make(chan struct{})
	l.mu.Unlock()

	go l.run(ctx, watcher, l.done)
	return nil
}

func (l *Library) run(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	logger := log.FromCtx(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			l.invalidate(event.Name)
			logger.Debug().Str("path", event.Name).Msg("prompt file changed")
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("prompt watcher error")
		}
	}
}

func (l *Library) Shutdown(context.Context) error {
	l.mu.Lock()
	watcher, done := l.watcher, l.done
	l.watcher = nil
	l.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-done
	return err
}
