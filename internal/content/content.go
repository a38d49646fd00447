// Package content loads the static world data: boss templates and the world
// context document. Both are read once at startup and never mutated.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/isekai-engine/pkg/combat"
)

const (
	WorldContextFile = "world_context.md"
	BossesDir        = "bosses"
)

var guardianFile = regexp.MustCompile(`^floor_(\d+)_guardian\.json$`)

// Boss is a floor guardian or named enemy template.
type Boss struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Title       string              `json:"title,omitempty"`
	Floor       int                 `json:"floor"`
	Description string              `json:"description"`
	Principle   string              `json:"principle,omitempty"`
	Skills      []combat.EnemySkill `json:"skills"`
	Weakness    string              `json:"weakness,omitempty"`
}

// Validate checks the template against the combat tables.
func (b Boss) Validate() error {
	var errs []error
	if strings.TrimSpace(b.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if b.Floor < 1 {
		errs = append(errs, fmt.Errorf("floor must be at least 1, got %d", b.Floor))
	}
	if b.Principle != "" && !slices.Contains(combat.Principles, b.Principle) {
		errs = append(errs, fmt.Errorf("unknown principle %q", b.Principle))
	}
	for i, s := range b.Skills {
		if _, ok := combat.DomainFor(s.Category); !ok {
			errs = append(errs, fmt.Errorf("skill %d (%s): unknown category %q", i, s.Name, s.Category))
		}
		if s.Tier < 1 {
			errs = append(errs, fmt.Errorf("skill %d (%s): tier must be at least 1", i, s.Name))
		}
	}
	return errors.Join(errs...)
}

// PromptBlock describes the guardian for the planner without numbers.
func (b Boss) PromptBlock() string {
	var sb strings.Builder
	sb.WriteString(b.Name)
	if b.Title != "" {
		sb.WriteString(", " + b.Title)
	}
	sb.WriteString(": " + b.Description)
	if len(b.Skills) > 0 {
		names := make([]string, len(b.Skills))
		for i, s := range b.Skills {
			names[i] = s.Name
		}
		sb.WriteString("\nThủ đoạn: " + strings.Join(names, ", "))
	}
	if b.Weakness != "" {
		sb.WriteString("\nĐiểm yếu được đồn đại: " + b.Weakness)
	}
	return sb.String()
}

// Library is the read-only content table shared by all pipeline runs.
type Library struct {
	worldContext string
	bosses       map[string]Boss
	guardians    map[int]Boss
}

// Load reads dir concurrently. A missing world context or bosses directory is
// tolerated; a malformed boss file is an error.
func Load(ctx context.Context, dir string, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lib := &Library{bosses: make(map[string]Boss), guardians: make(map[int]Boss)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := os.ReadFile(filepath.Join(dir, WorldContextFile))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("World context not found, writer runs without it", "dir", dir)
				return nil
			}
			return fmt.Errorf("failed to read world context: %w", err)
		}
		lib.worldContext = strings.TrimSpace(string(data))
		return nil
	})
	g.Go(func() error {
		return lib.loadBosses(gctx, filepath.Join(dir, BossesDir), logger)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("Content loaded", "dir", dir, "bosses", len(lib.bosses), "guardians", len(lib.guardians))
	return lib, nil
}

func (l *Library) loadBosses(ctx context.Context, dir string, logger *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("Bosses directory does not exist", "path", dir)
			return nil
		}
		return fmt.Errorf("failed to list bosses: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		name := e.Name()
		g.Go(func() error {
			b, err := readBoss(filepath.Join(dir, name))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return nil
			}
			if _, dup := l.bosses[b.ID]; dup {
				errs = append(errs, fmt.Errorf("%s: duplicate boss id %q", name, b.ID))
				return nil
			}
			l.bosses[b.ID] = b
			if m := guardianFile.FindStringSubmatch(name); m != nil {
				floor, _ := strconv.Atoi(m[1])
				if floor != b.Floor {
					errs = append(errs, fmt.Errorf("%s: file names floor %d but template says %d", name, floor, b.Floor))
					return nil
				}
				l.guardians[floor] = b
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func readBoss(path string) (Boss, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Boss{}, fmt.Errorf("failed to read boss template: %w", err)
	}
	var b Boss
	if err := json.Unmarshal(data, &b); err != nil {
		return Boss{}, fmt.Errorf("failed to unmarshal boss template: %w", err)
	}
	if b.ID == "" {
		b.ID = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	if err := b.Validate(); err != nil {
		return Boss{}, err
	}
	return b, nil
}

// Empty returns a library with no content, for tests and offline tools.
func Empty() *Library {
	return &Library{bosses: map[string]Boss{}, guardians: map[int]Boss{}}
}

// WorldContext is prepended to the writer's system prompt.
func (l *Library) WorldContext() string {
	return l.worldContext
}

func (l *Library) Boss(id string) (Boss, bool) {
	b, ok := l.bosses[id]
	return b, ok
}

// Guardian returns the guardian of a floor.
func (l *Library) Guardian(floor int) (Boss, bool) {
	b, ok := l.guardians[floor]
	return b, ok
}

// Bosses lists all templates sorted by floor, then id.
func (l *Library) Bosses() []Boss {
	out := make([]Boss, 0, len(l.bosses))
	for _, b := range l.bosses {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b Boss) int {
		if a.Floor != b.Floor {
			return a.Floor - b.Floor
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
