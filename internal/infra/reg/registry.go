package reg

import (
	"sync"

	"github.com/groupmate/groupmate/internal/db"
)

// registry is an in-process cache of chat and group records, keyed by id.
// It saves a round trip to sqlite on the hot command path.
type registry struct {
	mu         sync.RWMutex
	chatCache  map[int64]*db.Chat
	groupCache map[int64]*db.Group
}

var instance *registry
var once sync.Once

func Get() *registry {
	once.Do(func() {
		instance = &registry{
			chatCache:  map[int64]*db.Chat{},
			groupCache: map[int64]*db.Group{},
		}
	})
	return instance
}

func (r *registry) GetChat(id int64) *db.Chat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chatCache[id]
}

func (r *registry) SetChat(chat *db.Chat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chatCache[chat.ID] = chat
}

func (r *registry) RemoveChat(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chatCache, id)
}

func (r *registry) GetGroup(id int64) *db.Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groupCache[id]
}

func (r *registry) SetGroup(group *db.Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groupCache[group.ID] = group
}

func (r *registry) RemoveGroup(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.groupCache, id)
}

// RemoveGroupChats evicts the group and every cached chat referencing it.
// Cascade deletes go through here so the cache never outlives the rows.
func (r *registry) RemoveGroupChats(groupID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, chat := range r.chatCache {
		if chat.GroupID == groupID {
			delete(r.chatCache, id)
		}
	}
	delete(r.groupCache, groupID)
}

// Flush drops every cached record.
func (r *registry) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chatCache = map[int64]*db.Chat{}
	r.groupCache = map[int64]*db.Group{}
}
