// Package watch streams project events to a terminal or a JSONL consumer.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/dyluth/compass/internal/store"
	"github.com/dyluth/compass/pkg/canvas"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSON    OutputFormat = "json"
)

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, "":
		return OutputFormatDefault, nil
	case OutputFormatJSON:
		return OutputFormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format: %s (valid formats: default, json)", s)
	}
}

// Source delivers project events. *store.Subscription and *Poller satisfy it.
type Source interface {
	Events() <-chan *store.Event
	Errors() <-chan error
}

// Stream writes events from src until ctx is done or src closes.
// Errors from src are logged and skipped; a write failure ends the stream.
func Stream(ctx context.Context, src Source, format OutputFormat, w io.Writer, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	f := newFormatter(format, w)

	events, errs := src.Events(), src.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn("skipping project event", "error", err)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := f.FormatEvent(ev); err != nil {
				return err
			}
		}
	}
}

type formatter interface {
	FormatEvent(ev *store.Event) error
}

func newFormatter(format OutputFormat, w io.Writer) formatter {
	if format == OutputFormatJSON {
		return &jsonFormatter{writer: w}
	}
	return &defaultFormatter{writer: w}
}

// defaultFormatter writes one human-readable line per event.
type defaultFormatter struct {
	writer io.Writer
}

func (f *defaultFormatter) FormatEvent(ev *store.Event) error {
	ts := "--:--:--"
	if ev.UpdatedAt > 0 {
		ts = time.UnixMilli(ev.UpdatedAt).Format("15:04:05")
	}
	id := ev.ProjectID
	if len(id) > 8 {
		id = id[:8]
	}

	var line string
	switch ev.Type {
	case store.EventSaved:
		line = fmt.Sprintf("[%s] 💾 Saved      %q id=%s items=%d links=%d", ts, ev.Name, id, ev.Items, ev.Threads)
	case store.EventRenamed:
		line = fmt.Sprintf("[%s] ✏️  Renamed    %q id=%s", ts, ev.Name, id)
	case store.EventDeleted:
		line = fmt.Sprintf("[%s] 🗑  Deleted    id=%s", ts, id)
	default:
		line = fmt.Sprintf("[%s] %s id=%s", ts, ev.Type, id)
	}
	_, err := fmt.Fprintln(f.writer, line)
	return err
}

// jsonFormatter writes events as line-delimited JSON.
type jsonFormatter struct {
	writer io.Writer
}

func (f *jsonFormatter) FormatEvent(ev *store.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(f.writer, "%s\n", data)
	return err
}

// Lister is the store surface the poller reads. A failed read must return an
// error rather than an empty listing. *store.Store satisfies it.
type Lister interface {
	Scan(ctx context.Context) ([]canvas.Project, error)
}

// Poller synthesizes project events by diffing successive store listings.
// Used for backends without pub/sub, such as SQLite.
type Poller struct {
	events chan *store.Event
	errors chan error
	cancel context.CancelFunc
}

// Poll starts polling st every interval. The first successful listing is the
// baseline and produces no events. A failed listing is reported on Errors and
// leaves the last known state in place. Close or cancel ctx to stop.
func Poll(ctx context.Context, st Lister, interval time.Duration) *Poller {
	ctx, cancel := context.WithCancel(ctx)
	p := &Poller{
		events: make(chan *store.Event, 10),
		errors: make(chan error),
		cancel: cancel,
	}

	go func() {
		defer close(p.events)
		defer close(p.errors)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var seen map[string]canvas.Project
		scan := func() (map[string]canvas.Project, bool) {
			projects, err := st.Scan(ctx)
			if err != nil {
				select {
				case p.errors <- fmt.Errorf("failed to list projects: %w", err):
				case <-ctx.Done():
				}
				return nil, false
			}
			return index(projects), true
		}

		seen, _ = scan()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				current, ok := scan()
				if !ok {
					continue
				}
				if seen == nil {
					seen = current
					continue
				}
				for _, ev := range diff(seen, current) {
					select {
					case p.events <- ev:
					case <-ctx.Done():
						return
					}
				}
				seen = current
			}
		}
	}()

	return p
}

// Events returns the synthesized events.
func (p *Poller) Events() <-chan *store.Event { return p.events }

// Errors delivers listing failures.
func (p *Poller) Errors() <-chan error { return p.errors }

// Close stops polling.
func (p *Poller) Close() error {
	p.cancel()
	return nil
}

func index(projects []canvas.Project) map[string]canvas.Project {
	m := make(map[string]canvas.Project, len(projects))
	for _, p := range projects {
		m[p.ID] = p
	}
	return m
}

// diff reports saves for new or newer projects and deletes for vanished ones,
// oldest first.
func diff(before, after map[string]canvas.Project) []*store.Event {
	var out []*store.Event
	for id, p := range after {
		prev, existed := before[id]
		if existed && prev.UpdatedAt == p.UpdatedAt {
			continue
		}
		typ := store.EventSaved
		if existed && prev.Name != p.Name && prev.ItemCount() == p.ItemCount() && len(prev.Threads) == len(p.Threads) {
			typ = store.EventRenamed
		}
		out = append(out, &store.Event{
			Type:      typ,
			ProjectID: id,
			Name:      p.Name,
			Items:     p.ItemCount(),
			Threads:   len(p.Threads),
			UpdatedAt: p.UpdatedAt,
		})
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			out = append(out, &store.Event{Type: store.EventDeleted, ProjectID: id, UpdatedAt: time.Now().UnixMilli()})
		}
	}
	sortEvents(out)
	return out
}

func sortEvents(evs []*store.Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		if evs[i].UpdatedAt != evs[j].UpdatedAt {
			return evs[i].UpdatedAt < evs[j].UpdatedAt
		}
		return evs[i].ProjectID < evs[j].ProjectID
	})
}
