package domain

import "strings"

// Category — узел дерева категорий. С товарами связь многие-ко-многим.
type Category struct {
	ID       int64
	Name     string
	ParentID int64

	parent   *Category
	children []*Category
	items    []*Item
}

// NewCategory создаёт корневую категорию без идентификатора.
func NewCategory(name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	return &Category{Name: name}, nil
}

// AddChild связывает дочернюю категорию с родителем с обеих сторон.
func (c *Category) AddChild(child *Category) {
	if child.parent != nil && child.parent != c {
		child.parent.removeChild(child)
	}
	child.parent = c
	child.ParentID = c.ID
	for _, existing := range c.children {
		if existing == child {
			return
		}
	}
	c.children = append(c.children, child)
}

// AddItem связывает категорию и товар с обеих сторон.
func (c *Category) AddItem(item *Item) {
	for _, existing := range c.items {
		if existing == item {
			return
		}
	}
	c.items = append(c.items, item)
	item.categories = append(item.categories, c)
}

// Parent возвращает родительскую категорию или nil.
func (c *Category) Parent() *Category { return c.parent }

// Children возвращает дочерние категории.
func (c *Category) Children() []*Category {
	result := make([]*Category, len(c.children))
	copy(result, c.children)
	return result
}

// Items возвращает товары категории.
func (c *Category) Items() []*Item {
	result := make([]*Item, len(c.items))
	copy(result, c.items)
	return result
}

func (c *Category) removeChild(child *Category) {
	for i, existing := range c.children {
		if existing == child {
			c.children = append(c.children[:i], c.children[i+1:]...)
			return
		}
	}
}
