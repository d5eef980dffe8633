package party

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

type fileState struct {
	Parties []Party `json:"parties"`
}

// FileRepo is a persistent party directory backed by a JSON file. It wraps
// a MemoryRepo and writes through on every mutation.
type FileRepo struct {
	mu   sync.Mutex
	path string
	mem  *MemoryRepo
}

func NewFileRepo(dataDir string) (*FileRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	r := &FileRepo{
		path: filepath.Join(dataDir, "parties.json"),
		mem:  NewMemoryRepo(),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRepo) load() error {
	b, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var st fileState
	if err := json.Unmarshal(b, &st); err != nil {
		return err
	}
	r.mem.replaceAll(st.Parties)
	return nil
}

func (r *FileRepo) save() error {
	st := fileState{Parties: r.mem.List()}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, b, 0o644)
}

func (r *FileRepo) PartyOf(userID uuid.UUID) (Party, bool) { return r.mem.PartyOf(userID) }
func (r *FileRepo) Get(id string) (Party, bool)            { return r.mem.Get(id) }
func (r *FileRepo) List() []Party                          { return r.mem.List() }

func (r *FileRepo) Create(name string, founder uuid.UUID) (Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.mem.Create(name, founder)
	if err != nil {
		return Party{}, err
	}
	return p, r.save()
}

func (r *FileRepo) Join(partyID string, userID uuid.UUID) (Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.mem.Join(partyID, userID)
	if err != nil {
		return Party{}, err
	}
	return p, r.save()
}

func (r *FileRepo) Leave(userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.mem.Leave(userID); err != nil {
		return err
	}
	return r.save()
}
