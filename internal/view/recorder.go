package view

import (
	"fmt"
	"strings"
)

// Op 是一次被记录的提交操作
type Op struct {
	Kind     string
	ID       string
	Name     string
	Value    string
	Children []Node
}

func (o Op) String() string {
	switch o.Kind {
	case "text":
		return fmt.Sprintf("text %s=%q", o.ID, o.Value)
	case "visible":
		return fmt.Sprintf("visible %s=%s", o.ID, o.Value)
	case "attr":
		return fmt.Sprintf("attr %s[%s]=%q", o.ID, o.Name, o.Value)
	case "children":
		texts := make([]string, len(o.Children))
		for i, c := range o.Children {
			texts[i] = c.Text
		}
		return fmt.Sprintf("children %s=[%s]", o.ID, strings.Join(texts, "|"))
	case "flush":
		return "flush"
	}
	return o.Kind
}

// Recorder 记录所有提交操作，同时把它们应用到内部的 Document 上，便于断言最终状态。
type Recorder struct {
	ops []Op
	doc *Document
}

func NewRecorder() *Recorder {
	return &Recorder{doc: NewDocument()}
}

func (r *Recorder) SetText(id, text string) {
	r.ops = append(r.ops, Op{Kind: "text", ID: id, Value: text})
	r.doc.SetText(id, text)
}

func (r *Recorder) SetVisible(id string, visible bool) {
	r.ops = append(r.ops, Op{Kind: "visible", ID: id, Value: BoolAttr(visible)})
	r.doc.SetVisible(id, visible)
}

func (r *Recorder) SetAttr(id, name, value string) {
	r.ops = append(r.ops, Op{Kind: "attr", ID: id, Name: name, Value: value})
	r.doc.SetAttr(id, name, value)
}

func (r *Recorder) ReplaceChildren(id string, children []Node) {
	r.ops = append(r.ops, Op{Kind: "children", ID: id, Children: cloneNodes(children)})
	r.doc.ReplaceChildren(id, children)
}

func (r *Recorder) Flush() {
	r.ops = append(r.ops, Op{Kind: "flush"})
	r.doc.Flush()
}

// Ops 返回记录的操作的字符串形式
func (r *Recorder) Ops() []string {
	out := make([]string, len(r.ops))
	for i, op := range r.ops {
		out[i] = op.String()
	}
	return out
}

// Raw 返回记录的原始操作
func (r *Recorder) Raw() []Op {
	return append([]Op(nil), r.ops...)
}

// Reset 清空记录，但保留文档状态
func (r *Recorder) Reset() {
	r.ops = nil
}

// Doc 返回记录器背后的文档
func (r *Recorder) Doc() *Document {
	return r.doc
}
