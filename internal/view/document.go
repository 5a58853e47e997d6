package view

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Element 是一个绑定点当前提交的内容
type Element struct {
	Text     string            `json:"text,omitempty"`
	Hidden   bool              `json:"hidden,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []Node            `json:"children,omitempty"`
}

// State 是 Document 在某次 Flush 之后的不可变副本
type State struct {
	Revision  string             `json:"revision"`
	Sequence  uint64             `json:"sequence"`
	UpdatedAt time.Time          `json:"updatedAt"`
	Elements  map[string]Element `json:"elements"`
}

// Document 是 Sink 的内存实现。
// 引擎只在事件循环上写入，但 HTTP 与终端渲染会并发读取，因此它自己加锁。
type Document struct {
	mu       sync.RWMutex
	elements map[string]*Element
	dirty    bool
	state    State
	subs     map[int]chan State
	nextSub  int
}

// NewDocument 创建一个空文档
func NewDocument() *Document {
	return &Document{
		elements: make(map[string]*Element),
		subs:     make(map[int]chan State),
		state:    State{Elements: map[string]Element{}},
	}
}

func (d *Document) element(id string) *Element {
	el, ok := d.elements[id]
	if !ok {
		el = &Element{}
		d.elements[id] = el
	}
	return el
}

func (d *Document) SetText(id, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty = true
	if _, ok := d.elements[id]; !ok {
		if n := d.findChildLocked(id); n != nil {
			n.Text = text
			return
		}
	}
	d.element(id).Text = text
}

func (d *Document) SetVisible(id string, visible bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.element(id).Hidden = !visible
	d.dirty = true
}

// SetAttr 写入绑定点或已提交子节点的属性
func (d *Document) SetAttr(id, name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.elements[id]; !ok {
		if n := d.findChildLocked(id); n != nil {
			if n.Attrs == nil {
				n.Attrs = make(map[string]string)
			}
			n.Attrs[name] = value
			d.dirty = true
			return
		}
	}
	el := d.element(id)
	if el.Attrs == nil {
		el.Attrs = make(map[string]string)
	}
	el.Attrs[name] = value
	d.dirty = true
}

func (d *Document) ReplaceChildren(id string, children []Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.element(id).Children = cloneNodes(children)
	d.dirty = true
}

// Flush 结束一批提交：生成新的修订号并通知订阅者。没有任何变更时不做任何事。
func (d *Document) Flush() {
	d.mu.Lock()
	if !d.dirty {
		d.mu.Unlock()
		return
	}
	d.dirty = false

	revision := uuid.NewString()
	if id, err := uuid.NewV7(); err == nil {
		revision = id.String()
	}
	d.state = State{
		Revision:  revision,
		Sequence:  d.state.Sequence + 1,
		UpdatedAt: time.Now().UTC(),
		Elements:  d.snapshotLocked(),
	}
	state := d.state
	subs := make([]chan State, 0, len(d.subs))
	for _, ch := range d.subs {
		subs = append(subs, ch)
	}
	d.mu.Unlock()

	for _, ch := range subs {
		// 订阅者只关心最新状态，旧的未读状态直接被替换
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}
}

// Current 返回最近一次 Flush 的状态
func (d *Document) Current() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Subscribe 返回一个在每次 Flush 后收到最新状态的channel，以及取消订阅的函数。
func (d *Document) Subscribe() (<-chan State, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSub
	d.nextSub++
	ch := make(chan State, 1)
	d.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.subs, id)
		})
	}
}

// Element 返回绑定点的实时内容（包含尚未 Flush 的变更）
func (d *Document) Element(id string) (Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	el, ok := d.elements[id]
	if !ok {
		return Element{}, false
	}
	return copyElement(el), true
}

// Text 返回绑定点文本
func (d *Document) Text(id string) string {
	el, _ := d.Element(id)
	return el.Text
}

// Visible 返回绑定点是否可见，从未提交过的绑定点视为可见
func (d *Document) Visible(id string) bool {
	el, _ := d.Element(id)
	return !el.Hidden
}

// Attr 返回绑定点或子节点的属性
func (d *Document) Attr(id, name string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if el, ok := d.elements[id]; ok {
		return el.Attrs[name]
	}
	if n := d.findChildLocked(id); n != nil {
		return n.Attrs[name]
	}
	return ""
}

// Children 返回绑定点的子节点副本
func (d *Document) Children(id string) []Node {
	el, _ := d.Element(id)
	return el.Children
}

func (d *Document) snapshotLocked() map[string]Element {
	out := make(map[string]Element, len(d.elements))
	for id, el := range d.elements {
		out[id] = copyElement(el)
	}
	return out
}

func (d *Document) findChildLocked(id string) *Node {
	for _, el := range d.elements {
		if n := findNode(el.Children, id); n != nil {
			return n
		}
	}
	return nil
}

func findNode(nodes []Node, id string) *Node {
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i]
		}
		if n := findNode(nodes[i].Children, id); n != nil {
			return n
		}
	}
	return nil
}

func copyElement(el *Element) Element {
	return Element{
		Text:     el.Text,
		Hidden:   el.Hidden,
		Attrs:    cloneAttrs(el.Attrs),
		Children: cloneNodes(el.Children),
	}
}
