// Package journal implements the lock registry's on-disk persistence
// (spec §4.2/§6): a line-oriented file of open-scoped lock tokens, and an
// optional sqlite audit mirror for historical queries the flat file
// can't answer.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/lock"
)

// FileStore persists lock records to a single line-oriented file,
// guarded by an OS file lock so multiple process instances never
// interleave writes, grounded on the teacher's Workspace.flock use of
// `gofrs/flock` to guard its own lock file.
type FileStore struct {
	path string
	fl   *flock.Flock
}

// NewFileStore creates a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, fl: flock.New(path + ".lck")}
}

// Save overwrites the journal with one line per record:
// "<token>[,<timeout-hint-millis>]\n", in the order given (spec §6: the
// registry always calls Save with records already in trie traversal
// order).
func (s *FileStore) Save(records []*lock.Record) error {
	if err := s.fl.Lock(); err != nil {
		return fmt.Errorf("journal: acquire file lock: %w", err)
	}
	defer s.fl.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("journal: create %s: %w", s.path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, rec := range records {
		line := rec.Token()
		if rec.TimeoutHint != lock.InfiniteTimeout {
			line += "," + strconv.FormatInt(rec.TimeoutHint.Milliseconds(), 10)
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("journal: write: %w", err)
		}
	}
	return w.Flush()
}

// Load parses the journal file back into records with Live=false
// (the registry is responsible for setting Live=true only for entries
// whose node still resolves). A missing file is treated as empty, not an
// error: a fresh workspace has no journal yet.
func (s *FileStore) Load() ([]*lock.Record, error) {
	if err := s.fl.Lock(); err != nil {
		return nil, fmt.Errorf("journal: acquire file lock: %w", err)
	}
	defer s.fl.Unlock()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", s.path, err)
	}
	defer f.Close()

	var out []*lock.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		rec, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("journal: parse line %q: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("journal: scan: %w", err)
	}
	return out, nil
}

func parseLine(line string) (*lock.Record, error) {
	token := line
	timeout := lock.InfiniteTimeout
	if idx := strings.LastIndexByte(line, ','); idx >= 0 {
		token = line[:idx]
		millis, err := strconv.ParseInt(line[idx+1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout hint: %w", err)
		}
		timeout = time.Duration(millis) * time.Millisecond
	}

	nid, err := ident.DecodeToken(token)
	if err != nil {
		return nil, err
	}

	return &lock.Record{
		HolderNID:     nid,
		SessionScoped: false,
		TimeoutHint:   timeout,
		CreatedAt:     time.Now(),
	}, nil
}
