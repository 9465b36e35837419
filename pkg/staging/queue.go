// Package staging collects title updates between a feature deciding on them
// and the task-list provider committing them.
package staging

import (
	"sort"
	"sync"

	"github.com/harrisonrobin/taskbutler/pkg/model"
)

// Queue holds the latest pending title per task. Staging the same task twice
// keeps only the last title.
type Queue struct {
	titles map[string]string
	order  []string
	mu     sync.RWMutex
}

func NewQueue() *Queue {
	return &Queue{titles: make(map[string]string)}
}

func (q *Queue) Set(taskID, title string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.titles[taskID]; !exists {
		q.order = append(q.order, taskID)
	}
	q.titles[taskID] = title
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.titles)
}

// Drain returns all pending updates in staging order and empties the queue.
func (q *Queue) Drain() []model.Update {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.Update, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, model.Update{TaskID: id, Title: q.titles[id]})
	}
	q.titles = make(map[string]string)
	q.order = nil
	return out
}

// Pending returns a sorted copy of the task IDs waiting to be committed.
func (q *Queue) Pending() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	ids := make([]string, 0, len(q.titles))
	for id := range q.titles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
