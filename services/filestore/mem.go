package filesvc

import (
	"context"
	"io/ioutil"
	"path"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shulehub/shule/core"
)

// memStore keeps uploads in memory. Test use only.
type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

var _ core.FileStorage = (*memStore)(nil)

func NewMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (st *memStore) Store(ctx context.Context, file core.UploadedFile, folder string) (string, error) {
	content, err := ioutil.ReadAll(file.Content)
	if err != nil {
		return "", errors.Wrap(err, "reading file")
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	url := "mem://" + folder + "/" + uuid.New().String() + path.Ext(file.Name)
	st.files[url] = content
	return url, nil
}

func (st *memStore) Delete(ctx context.Context, url string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.files, url)
	return nil
}

// Exists reports whether a stored URL is still present.
func (st *memStore) Exists(url string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.files[url]
	return ok
}
