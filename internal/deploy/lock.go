package deploy

import (
	"sync"

	"github.com/google/uuid"
)

// keyedMutex — набор мьютексов по ключу проекта.
//
// Сериализует admission check и вставку deployment внутри одного
// процесса. Мьютексы создаются лениво и не освобождаются: число
// проектов ограничено, утечка не накапливается.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock блокирует мьютекс ключа, создавая его при первом обращении.
func (k *keyedMutex) Lock(key uuid.UUID) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
}

// Unlock освобождает мьютекс ключа.
func (k *keyedMutex) Unlock(key uuid.UUID) {
	k.mu.Lock()
	m := k.locks[key]
	k.mu.Unlock()

	if m != nil {
		m.Unlock()
	}
}
