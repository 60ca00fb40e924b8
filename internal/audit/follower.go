package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Follower tails the NDJSON ledger stream and delivers newly appended
// entries on a channel. It exists for consumers outside this engine
// (dashboards, exporters) that want live entries without polling the file.
type Follower struct {
	path    string
	watcher *fsnotify.Watcher
	out     chan Entry
	done    chan struct{}
	offset  int64
}

// NewFollower starts tailing the ledger file at path from its current end.
func NewFollower(path string) (*Follower, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory: the file may not exist yet, and appends surface
	// as writes on the parent in either case.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch ledger directory: %w", err)
	}

	f := &Follower{
		path:    path,
		watcher: watcher,
		out:     make(chan Entry, 64),
		done:    make(chan struct{}),
	}

	if info, err := os.Stat(path); err == nil {
		f.offset = info.Size()
	}

	go f.loop()

	return f, nil
}

// Entries returns the channel of newly appended entries. It is closed when
// the follower stops.
func (f *Follower) Entries() <-chan Entry {
	return f.out
}

// Close stops tailing and closes the entries channel.
func (f *Follower) Close() error {
	close(f.done)
	return f.watcher.Close()
}

func (f *Follower) loop() {
	defer close(f.out)

	for {
		select {
		case <-f.done:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if event.Name != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			f.drain()
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("WARNING: ledger follower watch error: %v", err)
		}
	}
}

// drain reads entries appended since the last offset.
func (f *Follower) drain() {
	file, err := os.Open(f.path)
	if err != nil {
		return
	}
	defer file.Close()

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return
	}

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			// A partial line means the writer has not flushed the newline
			// yet; leave the offset before it and pick it up next event.
			break
		}
		f.offset += int64(len(line))

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}

		select {
		case f.out <- e:
		case <-f.done:
			return
		}
	}
}
