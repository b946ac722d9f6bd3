package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Storage 세션 정보를 프로세스 재시작 후에도 유지하기 위한 키-값 저장소입니다.
// 키가 없으면 Get은 ErrKeyNotFound를 반환하고, Remove는 아무 일도 하지 않습니다.
type Storage interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var (
	_ Storage = (*FileStorage)(nil)
	_ Storage = (*MemoryStorage)(nil)
)

// ============================================================================
// MemoryStorage
// ============================================================================

// MemoryStorage 메모리에만 보관하는 저장소입니다. 테스트와 일회성 실행에 사용합니다.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStorage MemoryStorage를 생성합니다.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (s *MemoryStorage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStorage) Set(key string, value []byte) error {
	if key == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// ============================================================================
// FileStorage
// ============================================================================

// tempFilePattern 저장 중 생성되는 임시 파일의 이름 패턴입니다.
const tempFilePattern = ".pops-session-*.tmp"

// FileStorage 모든 키를 JSON 객체 하나로 묶어 파일 하나에 저장합니다.
//
//	{"pops.auth": {"user": {...}, "token": "...", "expiresAt": "..."}}
//
// 쓰기는 "임시 파일 쓰기 → fsync → rename" 순서로 원자적으로 수행하므로,
// 저장 중에 프로세스가 종료되어도 파일이 반쯤 쓰인 상태로 남지 않습니다.
type FileStorage struct {
	path string

	mu sync.Mutex
}

// NewFileStorage path 파일을 사용하는 FileStorage를 생성합니다. 상대 경로는 절대 경로로 바뀝니다.
func NewFileStorage(path string) (*FileStorage, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, newErrStorageWriteFailed(err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, newErrStorageWriteFailed(err)
	}
	return &FileStorage{path: abs}, nil
}

// Path 저장 파일 경로
func (s *FileStorage) Path() string {
	return s.path
}

func (s *FileStorage) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}
	v, ok := entries[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

func (s *FileStorage) Set(key string, value []byte) error {
	if key == "" {
		return ErrInvalidKey
	}
	if !json.Valid(value) {
		// 파일 전체가 JSON 객체이므로 값도 JSON이어야 합니다.
		b, err := json.Marshal(string(value))
		if err != nil {
			return newErrStorageWriteFailed(err)
		}
		value = b
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return err
	}
	entries[key] = json.RawMessage(value)
	return s.writeAll(entries)
}

func (s *FileStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)

	if len(entries) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return newErrStorageWriteFailed(err)
		}
		return nil
	}
	return s.writeAll(entries)
}

func (s *FileStorage) readAll() (map[string]json.RawMessage, error) {
	entries := make(map[string]json.RawMessage)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, newErrStorageReadFailed(err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, newErrStorageCorrupted(err)
	}
	return entries, nil
}

// writeAll 임시 파일에 쓰고 동기화한 뒤 이름을 바꿔 원자적으로 교체합니다.
func (s *FileStorage) writeAll(entries map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "\t")
	if err != nil {
		return newErrStorageWriteFailed(err)
	}

	dir := filepath.Dir(s.path)

	// 같은 디렉토리에 만들어야 rename이 원자적으로 동작합니다.
	tmp, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return newErrStorageWriteFailed(err)
	}
	tmpPath := tmp.Name()

	// Windows에서는 열린 파일을 지울 수 없으므로 Close가 Remove보다 먼저 실행되어야 합니다.
	defer os.Remove(tmpPath)
	defer tmp.Close()

	if _, err := tmp.Write(data); err != nil {
		return newErrStorageWriteFailed(err)
	}
	if err := tmp.Sync(); err != nil {
		return newErrStorageWriteFailed(err)
	}
	if err := tmp.Close(); err != nil {
		return newErrStorageWriteFailed(err)
	}
	if err := renameWithRetry(tmpPath, s.path); err != nil {
		return newErrStorageWriteFailed(err)
	}

	// 디렉토리 엔트리까지 기록합니다. 실패해도 치명적이지 않습니다.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}

// renameWithRetry 백신이나 인덱서가 파일을 잠시 잡고 있는 경우를 위해 짧게 재시도합니다.
func renameWithRetry(oldPath, newPath string) error {
	const maxRetries = 5
	const retryDelay = 10 * time.Millisecond

	var lastErr error
	for range maxRetries {
		err := os.Rename(oldPath, newPath)
		if err == nil {
			return nil
		}

		lastErr = err
		time.Sleep(retryDelay)
	}
	return lastErr
}
