// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

// Repositories bundles the repositories sharing one backend.
type Repositories struct {
	Backend   *Backend
	Documents *DocumentRepository
	Segments  *SegmentRepository
	Graph     *GraphRepository
}

// Close closes the repositories and the backend.
func (m *Repositories) Close() error {
	m.Documents.Close()
	m.Segments.Close()
	m.Graph.Close()
	return m.Backend.Close()
}

// NewMemoryRepositories creates in-memory document, segment and graph repositories for testing.
// Caller must Close the result when done.
func NewMemoryRepositories() (*Repositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return newRepositories(backend)
}

// OpenRepositories opens a persistent database at path with all repositories.
func OpenRepositories(path string) (*Repositories, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return newRepositories(backend)
}

func newRepositories(backend *Backend) (*Repositories, error) {
	docs, err := NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	segs, err := NewSegmentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	graph, err := NewGraphRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return &Repositories{Backend: backend, Documents: docs, Segments: segs, Graph: graph}, nil
}
