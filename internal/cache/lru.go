package cache

import "container/list"

// lru is a fixed-capacity least-recently-used map used as the
// in-memory front tier of the persistent cache.
type lru struct {
	capacity int
	order    *list.List // front = most recent
	items    map[string]*list.Element
}

type lruItem struct {
	key   string
	entry *Entry
}

func newLRU(capacity int) *lru {
	return &lru{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (l *lru) get(key string) (*Entry, bool) {
	el, ok := l.items[key]
	if !ok {
		return nil, false
	}
	l.order.MoveToFront(el)
	return el.Value.(*lruItem).entry, true
}

func (l *lru) put(key string, entry *Entry) {
	if el, ok := l.items[key]; ok {
		el.Value.(*lruItem).entry = entry
		l.order.MoveToFront(el)
		return
	}
	l.items[key] = l.order.PushFront(&lruItem{key: key, entry: entry})
	if l.order.Len() > l.capacity {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.items, oldest.Value.(*lruItem).key)
	}
}

func (l *lru) remove(key string) {
	if el, ok := l.items[key]; ok {
		l.order.Remove(el)
		delete(l.items, key)
	}
}

func (l *lru) clear() {
	l.order.Init()
	l.items = make(map[string]*list.Element)
}

func (l *lru) len() int {
	return l.order.Len()
}
