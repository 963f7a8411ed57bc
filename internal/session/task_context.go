package session

import "sync"

// TaskContext holds the target URL and task description of the current
// evaluation run.
type TaskContext struct {
	mu   sync.RWMutex
	url  string
	task string
}

// SetURLAndTask replaces both values.
func (c *TaskContext) SetURLAndTask(url, task string) {
	c.mu.Lock()
	c.url = url
	c.task = task
	c.mu.Unlock()
}

// Get returns the current URL and task.
func (c *TaskContext) Get() (url, task string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url, c.task
}
