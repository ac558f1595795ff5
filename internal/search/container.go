package search

import "sync"

// View renders question cards in the given order.
type View interface {
	Render(ids []int)
}

// Container is the ordered list of question cards on the page with a
// snapshot of the server-rendered order.
type Container struct {
	mu       sync.Mutex
	original []int
	current  []int
	view     View
}

func NewContainer(ids []int, view View) *Container {
	return &Container{
		original: append([]int(nil), ids...),
		current:  append([]int(nil), ids...),
		view:     view,
	}
}

func (c *Container) IDs() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.current...)
}

// Restore puts back the server-rendered order.
func (c *Container) Restore() {
	c.set(append([]int(nil), c.original...))
}

// Apply reorders the cards by order. An empty order leaves the container
// as it is and returns false.
func (c *Container) Apply(order []int) bool {
	if len(order) == 0 {
		return false
	}
	c.set(Reorder(c.original, order))
	return true
}

func (c *Container) set(ids []int) {
	c.mu.Lock()
	c.current = ids
	view := c.view
	c.mu.Unlock()

	if view != nil {
		view.Render(append([]int(nil), ids...))
	}
}

// Reorder returns ids with the members of order first, in that order,
// followed by the remaining ids in their original order. Ids in order that
// are not present, and repeated ids, are ignored.
func Reorder(ids, order []int) []int {
	present := make(map[int]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}

	out := make([]int, 0, len(ids))
	placed := make(map[int]bool, len(order))
	for _, id := range order {
		if present[id] && !placed[id] {
			out = append(out, id)
			placed[id] = true
		}
	}
	for _, id := range ids {
		if !placed[id] {
			out = append(out, id)
		}
	}
	return out
}
