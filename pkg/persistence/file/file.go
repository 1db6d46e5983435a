// Package file provides file-based persistence implementation for workflows, tickets and the
// employee directory.
//
// Every document is a JSON file written through a temporary file and an atomic rename. Locks
// are held in memory, so a data directory must be owned by a single process.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/ticketflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	ticketRepo    *TicketRepository
	directoryRepo *DirectoryRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	locks := newKeyedLocks()

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot, locks),
		ticketRepo:    NewTicketRepository(cleanRoot, locks),
		directoryRepo: NewDirectoryRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) TicketRepository() persistence.TicketRepository {
	return fp.ticketRepo
}

func (fp *Persistence) DirectoryRepository() persistence.DirectoryRepository {
	return fp.directoryRepo
}

// keyedLocks hands out one RWMutex per key. Entries are never released; the number of keys is
// bounded by the number of workflows and tickets in the directory.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.RWMutex)}
}

func (k *keyedLocks) get(key string) *sync.RWMutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.RWMutex{}
		k.locks[key] = lock
	}

	return lock
}

func workflowLockKey(id string) string { return "workflow:" + id }

func ticketLockKey(id string) string { return "ticket:" + id }

// documentPath returns the file holding id inside dir. Ids that are not a plain file name are
// rejected so a document can never land outside its own directory.
func documentPath(dir, id string) (string, error) {
	if id == "" || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) || !filepath.IsLocal(id) {
		return "", fmt.Errorf("%w: %q", persistence.ErrInvalidID, id)
	}

	return filepath.Join(dir, id+".json"), nil
}

// readJSON decodes path into v. It reports false when the file does not exist.
func readJSON(path string, v any) (bool, error) {
	body, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return true, nil
}

// writeJSON replaces path with the encoding of v atomically.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}

	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}

	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	err = os.Rename(tmpName, path)
	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

// listJSON returns the ids of the JSON documents in dir.
func listJSON(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}
